package heap

import (
	"unsafe"

	"github.com/gostudent/heapalloc/memutils"
)

// AllocAligned returns a pointer meeting the requested power-of-two
// alignment, using an over-allocate + back-pointer strategy: it requests
// size+alignment+pointerSize bytes through the ordinary path, rounds the
// returned address up to the alignment, and stores the raw address in the
// pointerSize bytes immediately below the aligned address.
//
// Freeing an aligned pointer is not supported: callers must not pass the
// return value of AllocAligned to Free, Realloc, or Protect. This mirrors
// the reference behavior (see spec §4.E option (a)).
func (a *Allocator) AllocAligned(size int, alignment uint) uintptr {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.initialized || size <= 0 {
		return 0
	}
	if err := memutils.CheckPow2(alignment, "alignment"); err != nil {
		return 0
	}

	raw := a.allocLocked(size + int(alignment) + pointerSize)
	if raw == 0 {
		return 0
	}

	aligned := uintptr(memutils.AlignUp(int(raw)+pointerSize, alignment))
	*(*uintptr)(unsafe.Pointer(aligned - uintptr(pointerSize))) = raw
	return aligned
}
