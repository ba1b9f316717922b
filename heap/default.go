package heap

import (
	"sync"

	"github.com/pkg/errors"
)

var errAlreadyInitialized = errors.New("heap: default allocator already initialized")

// defaultAllocator backs the package-level convenience wrapper recommended
// by the Design Notes: re-express the reference's process-wide singleton as
// an explicit Allocator value, with a convenience instance sitting on top
// for callers that don't want to thread one through.
var (
	defaultMu   sync.Mutex
	defaultHeap *Allocator
)

// Init constructs the package-level default allocator. It fails if one is
// already initialized.
func Init(cfg Config) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultHeap != nil {
		return errAlreadyInitialized
	}

	a, err := New(cfg)
	if err != nil {
		return err
	}
	defaultHeap = a
	return nil
}

// Cleanup tears down the package-level default allocator. Re-entry after a
// successful Cleanup, or before any Init, is a no-op.
func Cleanup() error {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultHeap == nil {
		return nil
	}
	err := defaultHeap.Close()
	defaultHeap = nil
	return err
}

func current() *Allocator {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultHeap
}

// Alloc delegates to the package-level default allocator.
func Alloc(size int) uintptr {
	a := current()
	if a == nil {
		return 0
	}
	return a.Alloc(size)
}

// AllocAligned delegates to the package-level default allocator.
func AllocAligned(size int, alignment uint) uintptr {
	a := current()
	if a == nil {
		return 0
	}
	return a.AllocAligned(size, alignment)
}

// Free delegates to the package-level default allocator.
func Free(p uintptr) {
	a := current()
	if a == nil {
		return
	}
	a.Free(p)
}

// Realloc delegates to the package-level default allocator.
func Realloc(p uintptr, size int) uintptr {
	a := current()
	if a == nil {
		return 0
	}
	return a.Realloc(p, size)
}

// Protect delegates to the package-level default allocator.
func Protect(p uintptr, size int, flags ProtFlag) bool {
	a := current()
	if a == nil {
		return false
	}
	return a.Protect(p, size, flags)
}

// Stats delegates to the package-level default allocator. A zeroed snapshot
// is returned if no default allocator is initialized.
func Stats() Stats {
	a := current()
	if a == nil {
		return Stats{}
	}
	return a.Stats()
}
