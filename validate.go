package malloc

import "github.com/pkg/errors"

// Validatable is used by the DebugValidate method to allow it to act upon
// all types with a Validate method
type Validatable interface {
	Validate() error
}

// Validate checks the pool's bookkeeping against itself: the occupancy
// bitmap, the live-allocation index, the in-memory sentinels, and the
// cached counters must all agree. When the implementation is functioning
// correctly, it should not be possible for this method to return an error,
// regardless of what callers have done. Sentinel damage caused by an
// overrun can surface here too, since a damaged header no longer matches
// the index; CheckCorruption is the targeted tool for that.
func (p *Pool) Validate() error {
	used := p.occupancy.UsedCount()
	if used != p.usedBlocks {
		return errors.Errorf("occupancy bitmap counts %d used blocks but the pool expects %d", used, p.usedBlocks)
	}
	if p.live.Count() != p.allocationCount {
		return errors.Errorf("live index holds %d allocations but the pool expects %d", p.live.Count(), p.allocationCount)
	}

	var failure error
	totalBlocks, totalPayloadBytes, totalRequestedBytes := 0, 0, 0
	p.live.Iter(func(payloadIndex int, alloc liveAllocation) bool {
		headerIndex := payloadIndex - 1
		if headerIndex < 0 || headerIndex+alloc.totalBlocks > p.blockCount {
			failure = errors.Errorf("allocation at block %d extends outside the pool", payloadIndex)
			return true
		}
		if alloc.totalBlocks < minAllocationBlocks {
			failure = errors.Errorf("allocation at block %d spans only %d blocks", payloadIndex, alloc.totalBlocks)
			return true
		}
		if blocksFor(alloc.requestedBytes)+2 != alloc.totalBlocks {
			failure = errors.Errorf("allocation at block %d has %d requested bytes in %d blocks", payloadIndex, alloc.requestedBytes, alloc.totalBlocks)
			return true
		}
		if !p.occupancy.AllSet(headerIndex, alloc.totalBlocks) {
			failure = errors.Errorf("allocation at block %d is not fully marked in the occupancy bitmap", payloadIndex)
			return true
		}
		headerBlocks, magic := p.readHeader(headerIndex)
		if magic == 0 || headerBlocks != alloc.totalBlocks {
			failure = errors.Errorf("allocation at block %d has a header that does not match the live index", payloadIndex)
			return true
		}
		totalBlocks += alloc.totalBlocks
		totalPayloadBytes += (alloc.totalBlocks - 2) * BlockSize
		totalRequestedBytes += alloc.requestedBytes
		return false
	})
	if failure != nil {
		return failure
	}

	// Equal sums plus an equal popcount rule out overlapping extents.
	if totalBlocks != p.usedBlocks {
		return errors.Errorf("live allocations span %d blocks but the pool expects %d", totalBlocks, p.usedBlocks)
	}
	if totalPayloadBytes != p.allocationBytes {
		return errors.Errorf("live allocations hold %d payload bytes but the pool expects %d", totalPayloadBytes, p.allocationBytes)
	}
	if totalRequestedBytes != p.requestedBytes {
		return errors.Errorf("live allocations requested %d bytes but the pool expects %d", totalRequestedBytes, p.requestedBytes)
	}
	return nil
}
