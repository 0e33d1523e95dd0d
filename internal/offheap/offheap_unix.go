//go:build unix

// File: internal/offheap/offheap_unix.go
// Author: momentics <momentics@gmail.com>
//
// Anonymous private mappings via mmap/munmap.

package offheap

import "golang.org/x/sys/unix"

const platformSupported = true

func platformAlloc(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
}

func platformFree(mem []byte) error {
	return unix.Munmap(mem)
}
