//go:build linux

package shm

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// mapSegment creates an anonymous shared-memory file (memfd) of the
// given size and maps it shared read-write.
func mapSegment(size int) (int, []byte, error) {
	fd, err := unix.MemfdCreate("dataload-segment", unix.MFD_CLOEXEC)
	if err != nil {
		return -1, nil, fmt.Errorf("shm: memfd_create: %w", err)
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
