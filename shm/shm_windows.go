//go:build windows

package shm

import "errors"

// Shared-memory segments are not implemented on Windows. Workers fall
// back to heap-backed batches there.
var errUnsupported = errors.New("shm: shared-memory segments are not supported on windows")

func mapSegment(size int) (int, []byte, error) {
	return -1, nil, errUnsupported
}

func unmapSegment(fd int, data []byte) error {
	return nil
}
