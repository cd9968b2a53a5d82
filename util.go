package malloc

// AlignUp rounds value up to the next multiple of alignment, which must be
// a power of two.
func AlignUp(value int, alignment uint) int {
	return (value + int(alignment) - 1) & int(^(alignment - 1))
}

func blocksFor(sizeBytes int) int {
	return AlignUp(sizeBytes, BlockSize) / BlockSize
}
