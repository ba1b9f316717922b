package heap

import (
	"sync"
	"unsafe"

	"github.com/dolthub/swiss"
	"github.com/gostudent/heapalloc/memutils"
	"github.com/pkg/errors"
	"golang.org/x/exp/slog"
)

// locked adapts *Allocator to memutils.Validatable without re-acquiring its
// mutex, so it can be passed to memutils.DebugValidate from code that
// already holds the lock. It no-ops outside the debug_mem_utils build tag,
// same as the rest of memutils' debug assertions.
type locked Allocator

func (a *locked) Validate() error {
	return (*Allocator)(a).validateLocked()
}

// Allocator is a general-purpose dynamic heap manager backed by anonymous OS
// memory mappings. It is the explicit, caller-owned re-expression of the
// reference's process-wide singleton: a package-level convenience wrapper
// sits on top in default.go for callers that want the singleton behavior.
type Allocator struct {
	mu sync.Mutex

	logger   *slog.Logger
	pageSize int
	strategy Strategy

	extents []*extent

	freeList blockList
	usedList blockList
	// usedIndex maps a payload address to its owning block, giving Free,
	// Realloc, and Protect O(1) membership validation instead of a used-list
	// walk per call.
	usedIndex *swiss.Map[uintptr, *block]

	totalMemory       int
	usedMemory        int
	peakUsage         int
	totalAllocations  int
	activeAllocations int

	initialized bool
}

// New initializes an allocator: it rounds cfg.InitialHeapSize up to a
// page-size multiple and acquires that many bytes of anonymous read/write
// memory from the OS. It fails if the size is non-positive or the OS mapping
// fails; on failure the allocator is left uninitialized.
func New(cfg Config) (*Allocator, error) {
	if cfg.InitialHeapSize <= 0 {
		return nil, errors.New("initial heap size must be positive")
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = platformPageSize()
	}

	a := &Allocator{
		logger:    cfg.Logger,
		pageSize:  pageSize,
		strategy:  cfg.AllocationStrategy.normalized(),
		usedIndex: swiss.NewMap[uintptr, *block](64),
	}

	size := pageRoundUp(cfg.InitialHeapSize, pageSize)
	e, err := mapExtent(size)
	if err != nil {
		return nil, errors.Wrap(err, "failed to acquire initial heap extent")
	}

	root := allocateBlock()
	root.extent = e
	root.offset = 0
	root.size = size
	root.free = true
	e.first = root

	a.extents = append(a.extents, e)
	a.freeList.pushFront(root)
	a.totalMemory = size
	a.initialized = true

	if a.logger != nil {
		a.logger.Debug("heap initialized", "bytes", size, "strategy", a.strategy)
	}
	return a, nil
}

// Close releases every mapping this allocator owns and resets its state.
// Re-entry after a successful Close is a no-op.
func (a *Allocator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.initialized {
		return nil
	}

	var firstErr error
	for _, e := range a.extents {
		if err := e.unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	a.extents = nil
	a.freeList = blockList{}
	a.usedList = blockList{}
	a.usedIndex = swiss.NewMap[uintptr, *block](1)
	a.totalMemory, a.usedMemory, a.peakUsage = 0, 0, 0
	a.totalAllocations, a.activeAllocations = 0, 0
	a.initialized = false

	return firstErr
}

// Alloc returns a payload pointer to a region of at least size bytes, or 0
// if the allocator is uninitialized, size is non-positive, or the heap could
// not be extended to satisfy the request.
func (a *Allocator) Alloc(size int) uintptr {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.initialized || size <= 0 {
		return 0
	}
	return a.allocLocked(size)
}

func (a *Allocator) allocLocked(payloadSize int) uintptr {
	total := blockTotalSize(payloadSize)

	b := a.findFree(a.strategy, total)
	if b == nil {
		if !a.extendLocked(total) {
			return 0
		}
		b = a.findFree(a.strategy, total)
		if b == nil {
			return 0
		}
	}

	a.freeList.unlink(b)
	a.splitIfProfitable(b, total)
	b.free = false
	a.usedList.pushFront(b)

	addr := b.payloadAddr()
	a.usedIndex.Put(addr, b)
	memutils.WriteMagicValue(unsafe.Pointer(addr), b.payloadSize()-memutils.DebugMargin)

	a.usedMemory += b.size
	a.activeAllocations++
	a.totalAllocations++
	a.bumpPeakLocked()
	memutils.DebugValidate((*locked)(a))
	return addr
}

// bumpPeakLocked raises peakUsage to usedMemory if usedMemory is now the
// higher-water mark. Every caller that mutates usedMemory upward must call
// this, so peakUsage never falls stale behind a growing usedMemory.
func (a *Allocator) bumpPeakLocked() {
	if a.usedMemory > a.peakUsage {
		a.peakUsage = a.usedMemory
	}
}

// extendLocked maps a fresh extent of at least minSize bytes, rounded up to
// a page-size multiple, and installs it as a single free block. The new
// extent is never assumed contiguous with any prior one.
func (a *Allocator) extendLocked(minSize int) bool {
	size := pageRoundUp(minSize, a.pageSize)
	e, err := mapExtent(size)
	if err != nil {
		if a.logger != nil {
			a.logger.Debug("heap extension failed", "error", err)
		}
		return false
	}

	root := allocateBlock()
	root.extent = e
	root.offset = 0
	root.size = size
	root.free = true
	e.first = root

	a.extents = append(a.extents, e)
	a.freeList.pushFront(root)
	a.totalMemory += size

	if a.logger != nil {
		a.logger.Debug("heap extended", "bytes", size)
	}
	return true
}

// Free moves the block owning p back onto the free list and attempts to
// coalesce it with memory-adjacent free neighbors. A pointer not found on
// the used list, including 0, is silently ignored.
func (a *Allocator) Free(p uintptr) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.freeLocked(p)
}

func (a *Allocator) freeLocked(p uintptr) {
	if !a.initialized || p == 0 {
		return
	}

	b, ok := a.usedIndex.Get(p)
	if !ok {
		return
	}

	if !memutils.ValidateMagicValue(unsafe.Pointer(p), b.payloadSize()-memutils.DebugMargin) {
		if a.logger != nil {
			a.logger.Warn("corruption detected at free", "addr", p)
		}
	}

	a.usedIndex.Delete(p)
	a.usedList.unlink(b)
	a.usedMemory -= b.size
	a.activeAllocations--

	b.free = true
	a.freeList.pushFront(b)
	a.coalesce(b)
	memutils.DebugValidate((*locked)(a))

	if a.logger != nil {
		a.logger.Debug("block freed", "addr", p)
	}
}

// Realloc implements the five-step algorithm from spec §4-realloc: a nil
// pointer behaves as Alloc, a zero size behaves as Free, growth that fits in
// place (directly or by absorbing a free memory-adjacent neighbor) mutates
// the block, and everything else falls back to fresh alloc + copy + free.
// The guard is dropped across that fallback's re-entrant Alloc/Free calls;
// the old block stays on the used list until explicitly freed, so it cannot
// be invalidated during that window.
func (a *Allocator) Realloc(p uintptr, size int) uintptr {
	a.mu.Lock()

	if !a.initialized {
		a.mu.Unlock()
		return 0
	}
	if p == 0 {
		defer a.mu.Unlock()
		if size <= 0 {
			return 0
		}
		return a.allocLocked(size)
	}
	if size == 0 {
		a.freeLocked(p)
		a.mu.Unlock()
		return 0
	}

	b, ok := a.usedIndex.Get(p)
	if !ok {
		a.mu.Unlock()
		return 0
	}

	total := blockTotalSize(size)

	if b.size >= total {
		oldSize := b.size
		a.splitIfProfitable(b, total)
		a.usedMemory += b.size - oldSize
		a.bumpPeakLocked()
		memutils.WriteMagicValue(unsafe.Pointer(p), b.payloadSize()-memutils.DebugMargin)
		a.mu.Unlock()
		return p
	}

	if next := b.physNext; next != nil && next.free && b.size+next.size >= total {
		oldSize := b.size
		a.freeList.unlink(next)
		b.size += next.size
		b.physNext = next.physNext
		if next.physNext != nil {
			next.physNext.physPrev = b
		}
		releaseBlock(next)

		a.splitIfProfitable(b, total)
		a.usedMemory += b.size - oldSize
		a.bumpPeakLocked()
		memutils.WriteMagicValue(unsafe.Pointer(p), b.payloadSize()-memutils.DebugMargin)
		a.mu.Unlock()
		return p
	}

	oldPayload := b.payloadSize()
	a.mu.Unlock()

	newP := a.Alloc(size)
	if newP == 0 {
		return 0
	}

	copyLen := oldPayload
	if size < copyLen {
		copyLen = size
	}
	copyPayload(newP, p, copyLen)
	a.Free(p)
	return newP
}

func copyPayload(dst, src uintptr, n int) {
	if n <= 0 {
		return
	}
	dstSlice := unsafe.Slice((*byte)(unsafe.Pointer(dst)), n)
	srcSlice := unsafe.Slice((*byte)(unsafe.Pointer(src)), n)
	copy(dstSlice, srcSlice)
}

// Validate performs internal consistency checks: every block lies in exactly
// one list consistent with its free flag, the accumulator's running totals
// agree with the lists' actual contents, and every extent's address-order
// chain is contiguous and covers the whole extent.
func (a *Allocator) Validate() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.validateLocked()
}

func (a *Allocator) validateLocked() error {
	seen := make(map[*block]bool)
	sumFree := 0
	for b := a.freeList.head; b != nil; b = b.next {
		if !b.free {
			return errors.New("free list contains a block not marked free")
		}
		if seen[b] {
			return errors.New("free list contains a cycle or shared block")
		}
		seen[b] = true
		sumFree += b.size
	}

	sumUsed := 0
	for b := a.usedList.head; b != nil; b = b.next {
		if b.free {
			return errors.New("used list contains a block marked free")
		}
		if seen[b] {
			return errors.New("block present in both lists")
		}
		seen[b] = true
		sumUsed += b.size
	}

	if sumFree != a.totalMemory-a.usedMemory {
		return errors.New("free memory accounting does not match free list")
	}
	if sumUsed != a.usedMemory {
		return errors.New("used memory accounting does not match used list")
	}

	for _, e := range a.extents {
		offset := 0
		for b := e.first; b != nil; b = b.physNext {
			if b.offset != offset {
				return errors.New("address-order chain is not contiguous")
			}
			offset += b.size
		}
		if offset != e.size {
			return errors.New("address-order chain does not cover its extent")
		}
	}

	return nil
}
