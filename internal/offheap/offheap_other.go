//go:build !unix && !windows

// File: internal/offheap/offheap_other.go
// Author: momentics <momentics@gmail.com>
//
// Heap fallback for platforms without an explicit mapping facility.

package offheap

const platformSupported = false

func platformAlloc(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func platformFree([]byte) error { return nil }
