package malloc

import "math"

type Statistics struct {
	TotalBlockCount int
	UsedBlockCount  int
	AllocationCount int
	AllocationBytes int
	RequestedBytes  int
}

func (s *Statistics) Clear() {
	s.TotalBlockCount = 0
	s.UsedBlockCount = 0
	s.AllocationCount = 0
	s.AllocationBytes = 0
	s.RequestedBytes = 0
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.TotalBlockCount += other.TotalBlockCount
	s.UsedBlockCount += other.UsedBlockCount
	s.AllocationCount += other.AllocationCount
	s.AllocationBytes += other.AllocationBytes
	s.RequestedBytes += other.RequestedBytes
}

type DetailedStatistics struct {
	Statistics
	UnusedRangeCount   int
	AllocationSizeMin  int
	AllocationSizeMax  int
	UnusedRangeSizeMin int
	UnusedRangeSizeMax int
}

func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.UnusedRangeCount = 0
	s.AllocationSizeMin = math.MaxInt
	s.AllocationSizeMax = 0
	s.UnusedRangeSizeMin = math.MaxInt
	s.UnusedRangeSizeMax = 0
}

func (s *DetailedStatistics) AddUnusedRange(size int) {
	s.UnusedRangeCount++

	if size < s.UnusedRangeSizeMin {
		s.UnusedRangeSizeMin = size
	}

	if size > s.UnusedRangeSizeMax {
		s.UnusedRangeSizeMax = size
	}
}

func (s *DetailedStatistics) AddAllocation(size int) {
	s.AllocationCount++
	s.AllocationBytes += size

	if size < s.AllocationSizeMin {
		s.AllocationSizeMin = size
	}

	if size > s.AllocationSizeMax {
		s.AllocationSizeMax = size
	}
}

func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	s.Statistics.AddStatistics(&other.Statistics)
	s.UnusedRangeCount += other.UnusedRangeCount

	if other.UnusedRangeSizeMin < s.UnusedRangeSizeMin {
		s.UnusedRangeSizeMin = other.UnusedRangeSizeMin
	}

	if other.UnusedRangeSizeMax > s.UnusedRangeSizeMax {
		s.UnusedRangeSizeMax = other.UnusedRangeSizeMax
	}

	if other.AllocationSizeMin < s.AllocationSizeMin {
		s.AllocationSizeMin = other.AllocationSizeMin
	}

	if other.AllocationSizeMax > s.AllocationSizeMax {
		s.AllocationSizeMax = other.AllocationSizeMax
	}
}

// AddStatistics folds the pool's summary numbers into stats.
func (p *Pool) AddStatistics(stats *Statistics) {
	stats.TotalBlockCount += p.blockCount
	stats.UsedBlockCount += p.usedBlocks
	stats.AllocationCount += p.allocationCount
	stats.AllocationBytes += p.allocationBytes
	stats.RequestedBytes += p.requestedBytes
}

// AddDetailedStatistics folds per-allocation and free-range detail into
// stats. AddAllocation sees rounded payload sizes; requested sizes are
// accumulated separately since callers never observe the slack.
func (p *Pool) AddDetailedStatistics(stats *DetailedStatistics) {
	stats.TotalBlockCount += p.blockCount
	stats.UsedBlockCount += p.usedBlocks
	stats.RequestedBytes += p.requestedBytes

	p.live.Iter(func(payloadIndex int, alloc liveAllocation) bool {
		stats.AddAllocation((alloc.totalBlocks - 2) * BlockSize)
		return false
	})
	p.occupancy.VisitRuns(func(start, count int, used bool) error {
		if !used {
			stats.AddUnusedRange(count * BlockSize)
		}
		return nil
	})
}

// Stats returns a summary snapshot of the pool.
func (p *Pool) Stats() Statistics {
	p.logger.Debug("Pool::Stats")

	var stats Statistics
	p.AddStatistics(&stats)
	return stats
}
