package malloc

import (
	"unsafe"

	"golang.org/x/exp/slog"
)

// viewPayloadIndex recovers the payload block index addressed by view's
// data pointer. ok is false when the pointer lies outside the pool, is not
// block-aligned, or addresses block 0, which no payload can occupy because
// a header always precedes it.
func (p *Pool) viewPayloadIndex(view []byte) (int, bool) {
	if cap(view) == 0 || len(p.memory) == 0 {
		return 0, false
	}
	base := uintptr(unsafe.Pointer(unsafe.SliceData(p.memory)))
	ptr := uintptr(unsafe.Pointer(unsafe.SliceData(view)))
	if ptr < base || ptr >= base+uintptr(len(p.memory)) {
		return 0, false
	}
	offset := int(ptr - base)
	if offset%BlockSize != 0 {
		return 0, false
	}
	payloadIndex := offset / BlockSize
	if payloadIndex < 1 {
		return 0, false
	}
	return payloadIndex, true
}

// Free returns an allocation to the pool. view must be the same slice Alloc
// returned.
//
// The decision is driven entirely by the sentinels in pool memory. When the
// header and footer agree, the run's blocks are cleared and both sentinel
// blocks are scrubbed, so a second Free of the same view is caught instead
// of silently double-clearing. When they disagree, the pool is poisoned,
// ErrCorruptionDetected is returned, and the blocks stay marked: a damaged
// record cannot say how far the damage reaches, so its extent is leaked
// deliberately.
//
// Free is not gated on the poison flag. A well-formed allocation can still
// be returned while the pool is poisoned, and a damaged one reports again.
func (p *Pool) Free(view []byte) error {
	p.logger.Debug("Pool::Free")

	DebugValidate(p)

	payloadIndex, ok := p.viewPayloadIndex(view)
	if !ok {
		return p.reportCorruption(slog.Int("viewBytes", len(view)))
	}

	headerIndex := payloadIndex - 1
	totalBlocks, magic := p.readHeader(headerIndex)
	// totalBlocks is untrusted pool memory: compare against the remaining
	// blocks rather than summing, so a forged huge value cannot wrap.
	if magic == 0 || totalBlocks < minAllocationBlocks || totalBlocks > p.blockCount-headerIndex {
		return p.reportCorruption(slog.Int("offset", payloadIndex*BlockSize))
	}

	footerIndex := headerIndex + totalBlocks - 1
	if !p.footerIntact(footerIndex, magic) {
		return p.reportCorruption(slog.Int("offset", payloadIndex*BlockSize))
	}

	alloc, tracked := p.live.Get(payloadIndex)

	p.occupancy.ClearRange(headerIndex, totalBlocks)
	p.scrubSentinels(headerIndex, footerIndex)
	p.usedBlocks -= totalBlocks
	p.allocationBytes -= (totalBlocks - 2) * BlockSize
	if tracked {
		p.live.Delete(payloadIndex)
		p.allocationCount--
		p.requestedBytes -= alloc.requestedBytes
	}
	return nil
}
