//go:build !linux && !windows

package shm

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// mapSegment backs the segment with an unlinked temp file and maps it
// shared read-write. Used where memfd_create is unavailable.
func mapSegment(size int) (int, []byte, error) {
	f, err := os.CreateTemp("", "dataload-segment-*")
	if err != nil {
		return -1, nil, fmt.Errorf("shm: create segment file: %w", err)
	}
	name := f.Name()
	fd, err := unix.Dup(int(f.Fd()))
	f.Close()       //nolint:errcheck
	os.Remove(name) //nolint:errcheck
	if err != nil {
		return -1, nil, fmt.Errorf("shm: dup: %w", err)
	}

	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd) //nolint:errcheck
		return -1, nil, fmt.Errorf("shm: ftruncate: %w", err)
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd) //nolint:errcheck
		return -1, nil, fmt.Errorf("shm: mmap: %w", err)
	}

	return fd, data, nil
}

func unmapSegment(fd int, data []byte) error {
	var firstErr error
	if data != nil {
		if err := unix.Munmap(data); err != nil {
			firstErr = fmt.Errorf("shm: munmap: %w", err)
		}
	}
	if fd >= 0 {
		if err := unix.Close(fd); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("shm: close: %w", err)
		}
	}
	return firstErr
}
