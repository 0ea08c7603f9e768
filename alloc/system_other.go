//go:build !unix

package alloc

const fallbackPageSize = 4096

func pageSize() int {
	return fallbackPageSize
}

// mapRegion falls back to the Go heap when anonymous mappings are unavailable.
func mapRegion(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func unmapRegion([]byte) error {
	return nil
}
