package malloc

import "github.com/pkg/errors"

// ErrPoisoned is returned by Alloc when the pool has been poisoned by an
// earlier corruption event and has not been reset with ClearPoison.
var ErrPoisoned = errors.New("pool is poisoned")

// ErrPoolExhausted is returned by Alloc when no run of free blocks is large
// enough to hold the allocation and its sentinel blocks.
var ErrPoolExhausted = errors.New("no free extent large enough for the allocation")

// ErrCorruptionDetected is returned by Free and CheckCorruption when an
// allocation's sentinels do not hold the expected values. A pointer that
// never came from Alloc and a buffer overrun are indistinguishable at that
// point, so both report this error and poison the pool.
var ErrCorruptionDetected = errors.New("invalid pointer or buffer overrun detected")
