// Package backing acquires the raw memory regions a pool lives in. Regions
// are acquired once, up front, and stay resident until the process exits;
// Release exists only so a half-initialized pool can back out cleanly.
package backing

import (
	"github.com/cockroachdb/errors"
)

// Provider hands out zero-initialized memory regions.
//
// Implementations are not safe for concurrent use.
type Provider interface {
	// Acquire returns a zero-initialized region of exactly size bytes.
	Acquire(size int) ([]byte, error)
	// Release returns a region previously obtained from Acquire. It must be
	// passed the same slice Acquire returned, not a derived slice.
	Release(buf []byte) error
}

// Default returns the preferred Provider for this platform: anonymous
// memory maps where the OS supports them, the Go heap otherwise.
func Default() Provider {
	return defaultProvider()
}

// Heap is a Provider backed by ordinary Go heap allocations. Released
// regions are left to the garbage collector.
type Heap struct{}

var _ Provider = Heap{}

func (Heap) Acquire(size int) ([]byte, error) {
	if size <= 0 {
		return nil, errors.Newf("backing: invalid region size %d", size)
	}
	return make([]byte, size), nil
}

func (Heap) Release(buf []byte) error {
	return nil
}
