//go:build unix

package alloc

import "golang.org/x/sys/unix"

func pageSize() int {
	return unix.Getpagesize()
}

func mapRegion(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

func unmapRegion(mem []byte) error {
	return unix.Munmap(mem)
}
