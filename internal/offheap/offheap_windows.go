//go:build windows

// File: internal/offheap/offheap_windows.go
// Author: momentics <momentics@gmail.com>
//
// Committed private pages via VirtualAlloc/VirtualFree.

package offheap

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

const platformSupported = true

func platformAlloc(size int) ([]byte, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(size),
		windows.MEM_RESERVE|windows.MEM_COMMIT, windows.PAGE_READWRITE)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

func platformFree(mem []byte) error {
	// MEM_RELEASE requires a zero size and frees the whole reservation.
	return windows.VirtualFree(uintptr(unsafe.Pointer(unsafe.SliceData(mem))), 0, windows.MEM_RELEASE)
}
