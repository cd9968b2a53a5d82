package malloc

// IsPoisoned reports whether the pool has detected corruption and is
// refusing allocations. The flag only ever transitions to true on its own;
// ClearPoison is the single way back.
func (p *Pool) IsPoisoned() bool {
	return p.poisoned
}

// ClearPoison resets the poison flag unconditionally. Nothing is repaired
// or validated: blocks leaked by earlier corruption stay leaked, and the
// caller attests that the remaining pool contents can be trusted. Calling
// it on a healthy pool is a no-op.
func (p *Pool) ClearPoison() {
	p.logger.Debug("Pool::ClearPoison")

	if p.poisoned {
		p.logger.Warn("clearing poison without repair, remaining allocations are trusted as-is")
	}
	p.poisoned = false
}
