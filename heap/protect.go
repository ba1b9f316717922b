package heap

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

func (f ProtFlag) toUnix() int {
	var p int
	if f&ProtRead != 0 {
		p |= unix.PROT_READ
	}
	if f&ProtWrite != 0 {
		p |= unix.PROT_WRITE
	}
	if f&ProtExec != 0 {
		p |= unix.PROT_EXEC
	}
	return p
}

// Protect converts flags into the OS protection vocabulary and applies it to
// the page-aligned span covering [addr, addr+size). This may touch pages
// belonging to neighboring blocks; callers assume that risk.
func (a *Allocator) Protect(addr uintptr, size int, flags ProtFlag) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.initialized || addr == 0 || size <= 0 {
		return false
	}

	b, ok := a.usedIndex.Get(addr)
	if !ok {
		return false
	}

	span := a.pageSpan(b.extent, addr, size)
	if err := unix.Mprotect(span, flags.toUnix()); err != nil {
		return false
	}
	b.prot = flags
	if a.logger != nil {
		a.logger.Debug("protection changed", "addr", addr, "flags", flags)
	}
	return true
}

// pageSpan returns the sub-slice of e.data covering the page-aligned range
// that contains [addr, addr+size).
func (a *Allocator) pageSpan(e *extent, addr uintptr, size int) []byte {
	base := uintptr(unsafe.Pointer(&e.data[0]))
	relStart := int(addr - base)

	startOff := pageRoundDown(relStart, a.pageSize)
	endOff := pageRoundUp(relStart+size, a.pageSize)
	if endOff > len(e.data) {
		endOff = len(e.data)
	}
	return e.data[startOff:endOff]
}
