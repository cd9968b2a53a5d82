package malloc

import (
	"context"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

// Alloc reserves at least size bytes and returns a view of the payload. The
// view's length is size rounded up to a whole number of blocks, so it may
// be up to BlockSize-1 bytes longer than requested; callers may use all of
// it. The view stays valid until it is passed to Free.
//
// Alloc fails with ErrPoisoned while the pool is poisoned and with
// ErrPoolExhausted when no contiguous run of free blocks can hold the
// payload plus its two sentinel blocks. A failed Alloc changes nothing.
func (p *Pool) Alloc(size int) ([]byte, error) {
	p.logger.Debug("Pool::Alloc")

	return p.allocate(size, "")
}

// AllocNamed is Alloc with a debug name attached to the allocation. The
// name shows up in detailed maps and debug logging.
func (p *Pool) AllocNamed(size int, name string) ([]byte, error) {
	p.logger.Debug("Pool::AllocNamed")

	return p.allocate(size, name)
}

func (p *Pool) allocate(size int, name string) ([]byte, error) {
	DebugValidate(p)

	if p.poisoned {
		return nil, ErrPoisoned
	}
	if size < 1 {
		return nil, errors.Errorf("invalid allocation size %d", size)
	}

	payloadBlocks := blocksFor(size)
	totalBlocks := payloadBlocks + 2

	headerIndex, ok := p.occupancy.FindFreeRun(totalBlocks)
	if !ok {
		p.logger.LogAttrs(context.Background(), slog.LevelError,
			"pool exhausted",
			slog.Int("requestedBytes", size),
			slog.Int("requiredBlocks", totalBlocks),
			slog.Int("freeBlocks", p.blockCount-p.usedBlocks))
		return nil, errors.Wrapf(ErrPoolExhausted, "%d blocks required", totalBlocks)
	}

	magic := p.nextMagic
	p.nextMagic++

	p.occupancy.SetRange(headerIndex, totalBlocks)
	p.writeSentinels(headerIndex, totalBlocks, magic)

	payloadIndex := headerIndex + 1
	p.live.Put(payloadIndex, liveAllocation{
		totalBlocks:    totalBlocks,
		requestedBytes: size,
		name:           name,
	})

	p.allocationCount++
	p.usedBlocks += totalBlocks
	p.allocationBytes += payloadBlocks * BlockSize
	p.requestedBytes += size

	from := payloadIndex * BlockSize
	to := from + payloadBlocks*BlockSize
	return p.memory[from:to:to], nil
}
