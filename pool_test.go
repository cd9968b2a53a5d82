package malloc_test

import (
	"errors"
	"io"
	"testing"

	"github.com/dasshiva/malloc"
	"github.com/dasshiva/malloc/backing"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard))
}

func newTestPool(t *testing.T, poolSize int) *malloc.Pool {
	t.Helper()

	pool, err := malloc.New(testLogger(), malloc.PoolCreateInfo{
		PoolSize: poolSize,
		Provider: backing.Heap{},
	})
	require.NoError(t, err)
	return pool
}

// recordingProvider counts acquisitions and can be told to start failing,
// so creation failure paths can be observed from the outside.
type recordingProvider struct {
	failAfter int
	acquired  [][]byte
	released  [][]byte
}

func (r *recordingProvider) Acquire(size int) ([]byte, error) {
	if len(r.acquired) >= r.failAfter {
		return nil, errors.New("region acquisition refused")
	}
	buf := make([]byte, size)
	r.acquired = append(r.acquired, buf)
	return buf, nil
}

func (r *recordingProvider) Release(buf []byte) error {
	r.released = append(r.released, buf)
	return nil
}

func TestNewRoundsPoolSize(t *testing.T) {
	pool := newTestPool(t, 100)
	require.Equal(t, 112, pool.Size())
	require.Equal(t, 7, pool.BlockCount())

	pool = newTestPool(t, 128)
	require.Equal(t, 128, pool.Size())
	require.Equal(t, 8, pool.BlockCount())

	pool = newTestPool(t, 1)
	require.Equal(t, 16, pool.Size())
	require.Equal(t, 1, pool.BlockCount())
}

func TestNewInvalidPoolSize(t *testing.T) {
	_, err := malloc.New(testLogger(), malloc.PoolCreateInfo{PoolSize: 0})
	require.Error(t, err)

	_, err = malloc.New(testLogger(), malloc.PoolCreateInfo{PoolSize: -512})
	require.Error(t, err)
}

func TestNewDefaults(t *testing.T) {
	// nil logger and nil provider are both valid
	pool, err := malloc.New(nil, malloc.PoolCreateInfo{PoolSize: 64})
	require.NoError(t, err)
	require.Equal(t, 64, pool.Size())

	view, err := pool.Alloc(16)
	require.NoError(t, err)
	require.NoError(t, pool.Free(view))
}

func TestNewPoolRegionAcquisitionFails(t *testing.T) {
	provider := &recordingProvider{failAfter: 0}

	_, err := malloc.New(testLogger(), malloc.PoolCreateInfo{
		PoolSize: 256,
		Provider: provider,
	})
	require.Error(t, err)
	require.Empty(t, provider.acquired)
	require.Empty(t, provider.released)
}

func TestNewBitmapAcquisitionFailureReleasesPoolRegion(t *testing.T) {
	provider := &recordingProvider{failAfter: 1}

	_, err := malloc.New(testLogger(), malloc.PoolCreateInfo{
		PoolSize: 256,
		Provider: provider,
	})
	require.Error(t, err)

	// The pool region was acquired first and must be handed back.
	require.Len(t, provider.acquired, 1)
	require.Len(t, provider.released, 1)
	require.Len(t, provider.released[0], 256)
}

func TestAccessors(t *testing.T) {
	pool := newTestPool(t, 256)

	require.Equal(t, 256, pool.Size())
	require.Equal(t, 16, pool.BlockCount())
	require.Equal(t, 0, pool.AllocationCount())
	require.Equal(t, 256, pool.SumFreeSize())
	require.True(t, pool.IsEmpty())

	view, err := pool.Alloc(16)
	require.NoError(t, err)

	require.Equal(t, 1, pool.AllocationCount())
	require.Equal(t, 256-3*malloc.BlockSize, pool.SumFreeSize())
	require.False(t, pool.IsEmpty())

	require.NoError(t, pool.Free(view))
	require.True(t, pool.IsEmpty())
	require.Equal(t, 256, pool.SumFreeSize())
}

func TestAllocationNames(t *testing.T) {
	pool := newTestPool(t, 512)

	named, err := pool.AllocNamed(10, "index cache")
	require.NoError(t, err)

	name, err := pool.AllocationName(named)
	require.NoError(t, err)
	require.Equal(t, "index cache", name)

	anonymous, err := pool.Alloc(10)
	require.NoError(t, err)

	name, err = pool.AllocationName(anonymous)
	require.NoError(t, err)
	require.Equal(t, "", name)

	require.NoError(t, pool.SetAllocationName(anonymous, "scratch"))
	name, err = pool.AllocationName(anonymous)
	require.NoError(t, err)
	require.Equal(t, "scratch", name)
}

func TestAllocationNameUnknownView(t *testing.T) {
	pool := newTestPool(t, 512)

	err := pool.SetAllocationName(make([]byte, 16), "foreign")
	require.Error(t, err)

	_, err = pool.AllocationName(nil)
	require.Error(t, err)

	// A derived slice does not address the payload start.
	view, err := pool.Alloc(32)
	require.NoError(t, err)
	_, err = pool.AllocationName(view[16:])
	require.Error(t, err)

	// Name lookups are queries, not frees: nothing here poisons the pool.
	require.False(t, pool.IsPoisoned())
}
