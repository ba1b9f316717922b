package heap

import (
	"os"

	"github.com/gostudent/heapalloc/memutils"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// extent is one anonymous, private, read/write mapping acquired from the OS.
// Blocks never straddle two extents; physPrev/physNext chains are rooted at
// extent.first and never cross into another extent.
type extent struct {
	data  []byte
	size  int
	first *block
}

func mapExtent(size int) (*extent, error) {
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrap(err, "anonymous mmap failed")
	}
	return &extent{data: data, size: size}, nil
}

func (e *extent) unmap() error {
	if e.data == nil {
		return nil
	}
	err := unix.Munmap(e.data)
	e.data = nil
	return err
}

func platformPageSize() int {
	return os.Getpagesize()
}

func pageRoundUp(size, pageSize int) int {
	if pageSize <= 0 {
		pageSize = platformPageSize()
	}
	return memutils.AlignUp(size, uint(pageSize))
}

func pageRoundDown(size, pageSize int) int {
	if pageSize <= 0 {
		pageSize = platformPageSize()
	}
	return memutils.AlignDown(size, uint(pageSize))
}
