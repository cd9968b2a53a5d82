package malloc_test

import (
	"encoding/json"
	"testing"

	"github.com/dasshiva/malloc"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/stretchr/testify/require"
)

type statsDoc struct {
	TotalBlocks        int
	UsedBlocks         int
	Allocations        int
	AllocationBytes    int
	RequestedBytes     int
	UnusedRanges       int
	AllocationSizeMin  int
	AllocationSizeMax  int
	UnusedRangeSizeMin int
	UnusedRangeSizeMax int
}

type suballocDoc struct {
	Offset        int
	Size          int
	RequestedSize int
	Type          string
	Name          string
}

type detailedMapDoc struct {
	BlockSize      int
	TotalBlocks    int
	TotalBytes     int
	UnusedBytes    int
	Allocations    int
	Poisoned       bool
	Suballocations []suballocDoc
}

type statsStringDoc struct {
	Stats       statsDoc
	DetailedMap *detailedMapDoc
}

func parseStatsString(t *testing.T, pool *malloc.Pool, detailed bool) statsStringDoc {
	t.Helper()

	raw := pool.BuildStatsString(detailed)
	var doc statsStringDoc
	require.NoErrorf(t, json.Unmarshal([]byte(raw), &doc), "stats string is not valid JSON: %s", raw)
	return doc
}

// allocationOffsets returns the payload offsets of the ALLOCATION entries,
// in map order.
func allocationOffsets(doc statsStringDoc) []int {
	var offsets []int
	for _, sub := range doc.DetailedMap.Suballocations {
		if sub.Type == "ALLOCATION" {
			offsets = append(offsets, sub.Offset)
		}
	}
	return offsets
}

func TestBuildStatsStringSummary(t *testing.T) {
	pool := newTestPool(t, 1024)

	_, err := pool.Alloc(100)
	require.NoError(t, err)

	doc := parseStatsString(t, pool, false)
	require.Nil(t, doc.DetailedMap)
	require.Equal(t, statsDoc{
		TotalBlocks:        64,
		UsedBlocks:         9,
		Allocations:        1,
		AllocationBytes:    112,
		RequestedBytes:     100,
		UnusedRanges:       1,
		AllocationSizeMin:  112,
		AllocationSizeMax:  112,
		UnusedRangeSizeMin: 880,
		UnusedRangeSizeMax: 880,
	}, doc.Stats)
}

func TestBuildStatsStringDetailedMap(t *testing.T) {
	pool := newTestPool(t, 1024)

	first, err := pool.AllocNamed(40, "vertex data")
	require.NoError(t, err)
	second, err := pool.Alloc(40)
	require.NoError(t, err)
	_, err = pool.Alloc(40)
	require.NoError(t, err)
	_ = first

	require.NoError(t, pool.Free(second))

	doc := parseStatsString(t, pool, true)
	require.NotNil(t, doc.DetailedMap)
	require.Equal(t, malloc.BlockSize, doc.DetailedMap.BlockSize)
	require.Equal(t, 1024, doc.DetailedMap.TotalBytes)
	require.Equal(t, 2, doc.DetailedMap.Allocations)
	require.False(t, doc.DetailedMap.Poisoned)

	// Each allocation spans 5 blocks: sentinel, 3 payload blocks, sentinel.
	// Freeing the middle one leaves a hole between the two survivors.
	require.Equal(t, []suballocDoc{
		{Offset: 16, Size: 48, RequestedSize: 40, Type: "ALLOCATION", Name: "vertex data"},
		{Offset: 80, Size: 80, Type: "FREE"},
		{Offset: 176, Size: 48, RequestedSize: 40, Type: "ALLOCATION"},
		{Offset: 240, Size: 1024 - 240, Type: "FREE"},
	}, doc.DetailedMap.Suballocations)
}

func TestBuildStatsStringPoisoned(t *testing.T) {
	pool := newTestPool(t, 256)

	require.Error(t, pool.Free(nil))
	require.True(t, pool.IsPoisoned())

	doc := parseStatsString(t, pool, true)
	require.True(t, doc.DetailedMap.Poisoned)
}

func TestPrintDetailedMap(t *testing.T) {
	pool := newTestPool(t, 512)

	_, err := pool.Alloc(64)
	require.NoError(t, err)

	writer := jwriter.NewWriter()
	pool.PrintDetailedMap(&writer)

	var doc detailedMapDoc
	require.NoError(t, json.Unmarshal(writer.Bytes(), &doc))
	require.Equal(t, pool.Size(), doc.TotalBytes)
	require.Equal(t, pool.BlockCount(), doc.TotalBlocks)
	require.Equal(t, pool.SumFreeSize(), doc.UnusedBytes)
	require.Len(t, doc.Suballocations, 2)
}

func TestDetailedMapOffsetsBlockAligned(t *testing.T) {
	pool := newTestPool(t, 2048)

	for _, size := range []int{1, 15, 16, 17, 100, 31} {
		_, err := pool.Alloc(size)
		require.NoError(t, err)
	}

	doc := parseStatsString(t, pool, true)
	for _, sub := range doc.DetailedMap.Suballocations {
		require.Zerof(t, sub.Offset%malloc.BlockSize, "entry at offset %d is not block aligned", sub.Offset)
		require.Zerof(t, sub.Size%malloc.BlockSize, "entry at offset %d has unaligned size %d", sub.Offset, sub.Size)
	}
}
