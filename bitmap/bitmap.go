// Package bitmap tracks block occupancy for a fixed pool, one bit per
// block: byte i/8, bit i%8, set means occupied.
package bitmap

import (
	"fmt"
	"math/bits"

	"github.com/pkg/errors"
)

// Bitmap is an occupancy table over caller-provided storage. It never
// grows, never allocates, and is not safe for concurrent use.
type Bitmap struct {
	bits []byte
	n    int
}

// BytesFor returns the storage required for n blocks: one bit per block,
// rounded up to whole bytes, never less than a single byte.
func BytesFor(n int) int {
	if n <= 8 {
		return 1
	}
	return (n + 7) / 8
}

// New wraps buf as an occupancy table for n blocks. The first BytesFor(n)
// bytes of buf are cleared; extra bytes are left untouched.
func New(buf []byte, n int) (*Bitmap, error) {
	if n < 0 {
		return nil, errors.Errorf("bitmap: negative block count %d", n)
	}
	need := BytesFor(n)
	if len(buf) < need {
		return nil, errors.Errorf("bitmap: storage too small: have %d bytes, need %d for %d blocks", len(buf), need, n)
	}
	bits := buf[:need]
	for i := range bits {
		bits[i] = 0
	}
	return &Bitmap{bits: bits, n: n}, nil
}

// Len returns the number of blocks tracked.
func (b *Bitmap) Len() int {
	return b.n
}

// Test reports whether block i is occupied.
func (b *Bitmap) Test(i int) bool {
	b.check(i)
	return b.bits[i/8]&(1<<uint(i%8)) != 0
}

// Set marks block i occupied.
func (b *Bitmap) Set(i int) {
	b.check(i)
	b.bits[i/8] |= 1 << uint(i%8)
}

// Clear marks block i free.
func (b *Bitmap) Clear(i int) {
	b.check(i)
	b.bits[i/8] &^= 1 << uint(i%8)
}

// SetRange marks count blocks starting at start occupied.
func (b *Bitmap) SetRange(start, count int) {
	b.checkRange(start, count)
	for i := start; i < start+count; i++ {
		b.bits[i/8] |= 1 << uint(i%8)
	}
}

// ClearRange marks count blocks starting at start free.
func (b *Bitmap) ClearRange(start, count int) {
	b.checkRange(start, count)
	for i := start; i < start+count; i++ {
		b.bits[i/8] &^= 1 << uint(i%8)
	}
}

// AllSet reports whether every block in [start, start+count) is occupied.
func (b *Bitmap) AllSet(start, count int) bool {
	b.checkRange(start, count)
	for i := start; i < start+count; i++ {
		if b.bits[i/8]&(1<<uint(i%8)) == 0 {
			return false
		}
	}
	return true
}

// FindFreeRun returns the lowest index of count consecutive free blocks,
// scanning from block 0. Fully occupied bytes are skipped eight blocks at
// a time. The table is not modified; ok is false when no such run exists.
func (b *Bitmap) FindFreeRun(count int) (start int, ok bool) {
	if count <= 0 {
		panic(fmt.Sprintf("bitmap: invalid run length %d", count))
	}
	run := 0
	i := 0
	for i < b.n {
		if i%8 == 0 && b.bits[i/8] == 0xff {
			run = 0
			i += 8
			continue
		}
		if b.bits[i/8]&(1<<uint(i%8)) != 0 {
			run = 0
			i++
			continue
		}
		run++
		i++
		if run == count {
			return i - count, true
		}
	}
	return 0, false
}

// UsedCount returns the number of occupied blocks.
func (b *Bitmap) UsedCount() int {
	used := 0
	for _, x := range b.bits {
		used += bits.OnesCount8(x)
	}
	return used
}

// VisitRuns calls fn once per maximal run of same-state blocks, in
// ascending order. Iteration stops at the first error, which is returned.
func (b *Bitmap) VisitRuns(fn func(start, count int, used bool) error) error {
	if b.n == 0 {
		return nil
	}
	runStart := 0
	runUsed := b.Test(0)
	for i := 1; i < b.n; i++ {
		used := b.bits[i/8]&(1<<uint(i%8)) != 0
		if used == runUsed {
			continue
		}
		if err := fn(runStart, i-runStart, runUsed); err != nil {
			return err
		}
		runStart = i
		runUsed = used
	}
	return fn(runStart, b.n-runStart, runUsed)
}

func (b *Bitmap) check(i int) {
	if i < 0 || i >= b.n {
		panic(fmt.Sprintf("bitmap: block index %d out of range [0, %d)", i, b.n))
	}
}

func (b *Bitmap) checkRange(start, count int) {
	if start < 0 || count < 0 || start+count > b.n {
		panic(fmt.Sprintf("bitmap: block range [%d, %d) out of range [0, %d)", start, start+count, b.n))
	}
}
