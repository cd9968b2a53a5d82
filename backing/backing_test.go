package backing_test

import (
	"testing"

	"github.com/dasshiva/malloc/backing"
	"github.com/stretchr/testify/require"
)

func TestHeapAcquire(t *testing.T) {
	var provider backing.Heap

	buf, err := provider.Acquire(100)
	require.NoError(t, err)
	require.Len(t, buf, 100)

	for i, b := range buf {
		require.Zerof(t, b, "expected zero-initialized region, found 0x%x at %d", b, i)
	}

	buf[0] = 0xff
	buf[99] = 0xff
	require.NoError(t, provider.Release(buf))
}

func TestHeapAcquireInvalidSize(t *testing.T) {
	var provider backing.Heap

	_, err := provider.Acquire(0)
	require.Error(t, err)

	_, err = provider.Acquire(-5)
	require.Error(t, err)
}

func TestDefaultProvider(t *testing.T) {
	provider := backing.Default()
	require.NotNil(t, provider)

	buf, err := provider.Acquire(256)
	require.NoError(t, err)
	require.Len(t, buf, 256)
	require.NoError(t, provider.Release(buf))
}
