// Package malloc implements a fixed-capacity block allocator. A Pool carves
// allocations out of a single backing region in 16-byte blocks, tracks
// occupancy with one bit per block, and brackets every allocation with
// sentinel blocks so that buffer overruns and invalid frees are detected
// when the allocation is returned.
//
// A Pool is not safe for concurrent use. Callers that share a Pool across
// goroutines must provide their own synchronization.
package malloc

import (
	"context"

	"github.com/dasshiva/malloc/backing"
	"github.com/dasshiva/malloc/bitmap"
	"github.com/dolthub/swiss"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
)

// BlockSize is the allocation granule in bytes. Every allocation occupies a
// whole number of blocks: its payload rounded up, plus one sentinel block
// on either side.
const BlockSize = 16

// PoolCreateInfo contains parameters for creating a new Pool
type PoolCreateInfo struct {
	// PoolSize is the capacity of the pool in bytes. It is rounded up to the
	// next multiple of BlockSize. Sentinel blocks live inside this capacity,
	// so the usable payload space is smaller.
	PoolSize int

	// Provider acquires the pool's backing regions. When nil,
	// backing.Default is used.
	Provider backing.Provider
}

// Pool is a fixed-capacity block allocator. All methods must be called from
// a single goroutine. A Pool must be created with New; the zero value is
// not usable.
type Pool struct {
	logger *slog.Logger

	memory     []byte
	occupancy  bitmap.Bitmap
	blockCount int
	provider   backing.Provider

	live      *swiss.Map[int, liveAllocation]
	nextMagic uint64
	poisoned  bool

	allocationCount int
	usedBlocks      int
	allocationBytes int
	requestedBytes  int
}

// liveAllocation is the bookkeeping record for one outstanding allocation,
// keyed by its payload block index. The record is auxiliary: Free decides
// from the in-memory sentinels alone.
type liveAllocation struct {
	totalBlocks    int
	requestedBytes int
	name           string
}

// New creates a Pool with capacity info.PoolSize, acquiring its backing
// region and occupancy bitmap up front. Acquisition failures are fatal: no
// Pool is returned and nothing is retried. Both regions stay resident until
// the process exits; there is no teardown.
//
// logger - Debug traces and corruption reports are written here. It is
// valid to pass nil, in which case slog.Default is used.
//
// info - Creation parameters: PoolSize must be at least 1
func New(logger *slog.Logger, info PoolCreateInfo) (*Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if info.PoolSize < 1 {
		return nil, errors.Errorf("invalid pool size %d", info.PoolSize)
	}

	provider := info.Provider
	if provider == nil {
		provider = backing.Default()
	}

	poolSize := AlignUp(info.PoolSize, BlockSize)
	blockCount := poolSize / BlockSize

	memory, err := provider.Acquire(poolSize)
	if err != nil {
		logger.LogAttrs(context.Background(), slog.LevelError,
			"failed to initialize pool",
			slog.Int("poolSize", poolSize),
			slog.Any("error", err))
		return nil, errors.Wrapf(err, "failed to acquire a %d-byte pool region", poolSize)
	}

	table, err := provider.Acquire(bitmap.BytesFor(blockCount))
	if err != nil {
		logger.LogAttrs(context.Background(), slog.LevelError,
			"failed to initialize pool",
			slog.Int("bitmapBytes", bitmap.BytesFor(blockCount)),
			slog.Any("error", err))
		releaseErr := provider.Release(memory)
		if releaseErr != nil {
			logger.LogAttrs(context.Background(), slog.LevelError,
				"failed to release the pool region while backing out of pool creation",
				slog.Any("error", releaseErr))
		}
		return nil, errors.Wrapf(err, "failed to acquire the occupancy bitmap for %d blocks", blockCount)
	}

	occupancy, err := bitmap.New(table, blockCount)
	if err != nil {
		return nil, err
	}

	return &Pool{
		logger:     logger,
		memory:     memory,
		occupancy:  *occupancy,
		blockCount: blockCount,
		provider:   provider,
		live:       swiss.NewMap[int, liveAllocation](42),
		nextMagic:  1,
	}, nil
}

// Size returns the pool capacity in bytes, after rounding.
func (p *Pool) Size() int {
	return p.blockCount * BlockSize
}

// BlockCount returns the pool capacity in blocks.
func (p *Pool) BlockCount() int {
	return p.blockCount
}

// AllocationCount returns the number of outstanding allocations.
func (p *Pool) AllocationCount() int {
	return p.allocationCount
}

// SumFreeSize returns the number of free bytes in the pool. Free bytes are
// rarely allocatable as a single extent: every allocation also needs two
// sentinel blocks and a contiguous run to live in.
func (p *Pool) SumFreeSize() int {
	return (p.blockCount - p.usedBlocks) * BlockSize
}

// IsEmpty reports whether the pool has no outstanding allocations.
func (p *Pool) IsEmpty() bool {
	return p.allocationCount == 0
}

// SetAllocationName attaches a name to an outstanding allocation for
// debugging. view must be the same slice Alloc returned, not a derived
// slice.
func (p *Pool) SetAllocationName(view []byte, name string) error {
	p.logger.Debug("Pool::SetAllocationName")

	payloadIndex, ok := p.viewPayloadIndex(view)
	if !ok {
		return errors.New("view does not address a payload in this pool")
	}
	alloc, found := p.live.Get(payloadIndex)
	if !found {
		return errors.Errorf("no outstanding allocation at offset %d", payloadIndex*BlockSize)
	}
	alloc.name = name
	p.live.Put(payloadIndex, alloc)
	return nil
}

// AllocationName returns the name attached to an outstanding allocation, or
// an empty string if none was set.
func (p *Pool) AllocationName(view []byte) (string, error) {
	p.logger.Debug("Pool::AllocationName")

	payloadIndex, ok := p.viewPayloadIndex(view)
	if !ok {
		return "", errors.New("view does not address a payload in this pool")
	}
	alloc, found := p.live.Get(payloadIndex)
	if !found {
		return "", errors.Errorf("no outstanding allocation at offset %d", payloadIndex*BlockSize)
	}
	return alloc.name, nil
}

type liveEntry struct {
	headerIndex int
	alloc       liveAllocation
}

// sortedLive returns the outstanding allocations in ascending block order.
func (p *Pool) sortedLive() []liveEntry {
	entries := make([]liveEntry, 0, p.live.Count())
	p.live.Iter(func(payloadIndex int, alloc liveAllocation) bool {
		entries = append(entries, liveEntry{headerIndex: payloadIndex - 1, alloc: alloc})
		return false
	})
	slices.SortFunc(entries, func(a, b liveEntry) bool {
		return a.headerIndex < b.headerIndex
	})
	return entries
}
