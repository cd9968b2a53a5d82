//go:build !unix

package backing

func defaultProvider() Provider {
	return Heap{}
}
