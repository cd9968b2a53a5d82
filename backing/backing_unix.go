//go:build unix

package backing

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

// Mmap is a Provider backed by anonymous private memory maps. The kernel
// hands back zeroed pages, so regions satisfy the Acquire contract without
// an explicit clear.
type Mmap struct{}

var _ Provider = Mmap{}

func (Mmap) Acquire(size int) ([]byte, error) {
	if size <= 0 {
		return nil, errors.Newf("backing: invalid region size %d", size)
	}
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, errors.Wrapf(err, "backing: failed to map %d bytes", size)
	}
	return mem, nil
}

func (Mmap) Release(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	err := unix.Munmap(buf)
	if errors.Is(err, unix.EINVAL) {
		// Treat double-unmap as no-op for callers.
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "backing: failed to unmap region")
	}
	return nil
}

func defaultProvider() Provider {
	return Mmap{}
}
