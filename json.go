package malloc

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// PrintDetailedMap writes the pool's state into writer as a JSON object:
// geometry, poison state, and an offset-ordered Suballocations array with
// free ranges interleaved between allocations.
func (p *Pool) PrintDetailedMap(writer *jwriter.Writer) {
	objState := writer.Object()
	defer objState.End()

	objState.Name("BlockSize").Int(BlockSize)
	objState.Name("TotalBlocks").Int(p.blockCount)
	objState.Name("TotalBytes").Int(p.blockCount * BlockSize)
	objState.Name("UnusedBytes").Int(p.SumFreeSize())
	objState.Name("Allocations").Int(p.allocationCount)
	objState.Name("Poisoned").Bool(p.poisoned)

	p.printSuballocations(objState)
}

func (p *Pool) printSuballocations(json jwriter.ObjectState) {
	arrayState := json.Name("Suballocations").Array()
	defer arrayState.End()

	cursor := 0
	for _, entry := range p.sortedLive() {
		if entry.headerIndex > cursor {
			printFreeRange(&arrayState, cursor, entry.headerIndex-cursor)
		}

		obj := arrayState.Object()
		obj.Name("Offset").Int((entry.headerIndex + 1) * BlockSize)
		obj.Name("Type").String("ALLOCATION")
		obj.Name("Size").Int((entry.alloc.totalBlocks - 2) * BlockSize)
		obj.Name("RequestedSize").Int(entry.alloc.requestedBytes)
		if entry.alloc.name != "" {
			obj.Name("Name").String(entry.alloc.name)
		}
		obj.End()

		cursor = entry.headerIndex + entry.alloc.totalBlocks
	}
	if cursor < p.blockCount {
		printFreeRange(&arrayState, cursor, p.blockCount-cursor)
	}
}

// printFreeRange reports a free run the way allocations are reported, with
// the offset covering the whole run since free space has no sentinels.
func printFreeRange(arrayState *jwriter.ArrayState, startBlock, blockCount int) {
	obj := arrayState.Object()
	defer obj.End()

	obj.Name("Offset").Int(startBlock * BlockSize)
	obj.Name("Type").String("FREE")
	obj.Name("Size").Int(blockCount * BlockSize)
}

// BuildStatsString renders the pool's statistics as a JSON string. When
// detailed is set, the full suballocation map is included as well.
func (p *Pool) BuildStatsString(detailed bool) string {
	p.logger.Debug("Pool::BuildStatsString")

	writer := jwriter.NewWriter()
	objState := writer.Object()

	var stats DetailedStatistics
	stats.Clear()
	p.AddDetailedStatistics(&stats)

	statsObj := objState.Name("Stats").Object()
	printDetailedStatistics(&statsObj, &stats)
	statsObj.End()

	if detailed {
		objState.Name("DetailedMap")
		p.PrintDetailedMap(&writer)
	}

	objState.End()
	return string(writer.Bytes())
}

func printDetailedStatistics(json *jwriter.ObjectState, stats *DetailedStatistics) {
	json.Name("TotalBlocks").Int(stats.TotalBlockCount)
	json.Name("UsedBlocks").Int(stats.UsedBlockCount)
	json.Name("Allocations").Int(stats.AllocationCount)
	json.Name("AllocationBytes").Int(stats.AllocationBytes)
	json.Name("RequestedBytes").Int(stats.RequestedBytes)
	json.Name("UnusedRanges").Int(stats.UnusedRangeCount)

	// Min/max are meaningless before the first sample, so they are withheld
	// rather than printed at their cleared values.
	if stats.AllocationCount > 0 {
		json.Name("AllocationSizeMin").Int(stats.AllocationSizeMin)
		json.Name("AllocationSizeMax").Int(stats.AllocationSizeMax)
	}
	if stats.UnusedRangeCount > 0 {
		json.Name("UnusedRangeSizeMin").Int(stats.UnusedRangeSizeMin)
		json.Name("UnusedRangeSizeMax").Int(stats.UnusedRangeSizeMax)
	}
}
