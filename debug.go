package malloc

import "golang.org/x/exp/slog"

// DebugLogAllAllocations walks the outstanding allocations in ascending
// offset order and reports each through logFunc. It is the tool for leak
// reports: anything still outstanding when the pool's owner expected it
// empty shows up here with its offset, payload size, and name.
func (p *Pool) DebugLogAllAllocations(logger *slog.Logger, logFunc func(log *slog.Logger, offset int, size int, name string)) {
	for _, entry := range p.sortedLive() {
		logFunc(logger, (entry.headerIndex+1)*BlockSize, (entry.alloc.totalBlocks-2)*BlockSize, entry.alloc.name)
	}
}
