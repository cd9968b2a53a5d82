package malloc

import (
	"context"
	"encoding/binary"

	"golang.org/x/exp/slog"
)

// An allocation occupies a run of consecutive blocks. The first block is
// the header: the run length in blocks in its first 8 bytes and a magic
// value in its second 8, both little-endian. The last block is the footer,
// carrying the same magic in both of its 8-byte words. Magic values are
// drawn from a per-pool counter starting at 1; 0 marks a scrubbed record
// and is never issued, so a freed allocation cannot validate twice.
const (
	headerLengthOffset = 0
	headerMagicOffset  = 8
	footerMagicOffset  = 0
	footerEchoOffset   = 8

	// header + at least one payload block + footer
	minAllocationBlocks = 3
)

func (p *Pool) blockBytes(index int) []byte {
	from := index * BlockSize
	return p.memory[from : from+BlockSize]
}

func (p *Pool) writeSentinels(headerIndex, totalBlocks int, magic uint64) {
	header := p.blockBytes(headerIndex)
	binary.LittleEndian.PutUint64(header[headerLengthOffset:], uint64(totalBlocks))
	binary.LittleEndian.PutUint64(header[headerMagicOffset:], magic)

	footer := p.blockBytes(headerIndex + totalBlocks - 1)
	binary.LittleEndian.PutUint64(footer[footerMagicOffset:], magic)
	binary.LittleEndian.PutUint64(footer[footerEchoOffset:], magic)
}

func (p *Pool) readHeader(headerIndex int) (totalBlocks int, magic uint64) {
	header := p.blockBytes(headerIndex)
	totalBlocks = int(binary.LittleEndian.Uint64(header[headerLengthOffset:]))
	magic = binary.LittleEndian.Uint64(header[headerMagicOffset:])
	return totalBlocks, magic
}

// footerIntact compares both footer words against the header's magic. The
// words are written together, so a mismatch in either means something wrote
// past the payload.
func (p *Pool) footerIntact(footerIndex int, magic uint64) bool {
	footer := p.blockBytes(footerIndex)
	return binary.LittleEndian.Uint64(footer[footerMagicOffset:]) == magic &&
		binary.LittleEndian.Uint64(footer[footerEchoOffset:]) == magic
}

func (p *Pool) scrubSentinels(headerIndex, footerIndex int) {
	for _, index := range []int{headerIndex, footerIndex} {
		block := p.blockBytes(index)
		for i := range block {
			block[i] = 0
		}
	}
}

// reportCorruption poisons the pool and reports the event on the pool's
// logger. The message does not distinguish an overrun from a pointer that
// never came from Alloc: at detection time the two are the same evidence.
func (p *Pool) reportCorruption(attrs ...slog.Attr) error {
	p.poisoned = true
	p.logger.LogAttrs(context.Background(), slog.LevelError,
		"[CORRUPTION] invalid pointer or buffer overrun detected, poisoning the pool",
		attrs...)
	return ErrCorruptionDetected
}

// CheckCorruption validates the sentinels of every outstanding allocation
// without freeing anything. The first damaged allocation found poisons the
// pool and is reported as ErrCorruptionDetected; a clean pass returns nil.
// The walk touches every outstanding allocation, so this is a diagnostic
// for tests and incident debugging rather than a hot-path check.
func (p *Pool) CheckCorruption() error {
	p.logger.Debug("Pool::CheckCorruption")

	var failure error
	p.live.Iter(func(payloadIndex int, alloc liveAllocation) bool {
		headerIndex := payloadIndex - 1
		totalBlocks, magic := p.readHeader(headerIndex)
		if magic == 0 || totalBlocks != alloc.totalBlocks || headerIndex+totalBlocks > p.blockCount {
			failure = p.reportCorruption(
				slog.Int("offset", payloadIndex*BlockSize),
				slog.String("damage", "header"))
			return true
		}
		if !p.footerIntact(headerIndex+totalBlocks-1, magic) {
			failure = p.reportCorruption(
				slog.Int("offset", payloadIndex*BlockSize),
				slog.String("damage", "footer"))
			return true
		}
		return false
	})
	return failure
}
