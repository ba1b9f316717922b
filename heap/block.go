package heap

import (
	"sync"
	"unsafe"

	"github.com/gostudent/heapalloc/memutils"
)

const (
	// headerSize is the fixed per-block overhead reported in Stats.Overhead. It
	// is not stored in-band; block metadata lives entirely in the block struct
	// below, which is the Go-idiomatic re-expression of the raw intrusive
	// header the reference allocator embeds in the mapped bytes themselves
	// (see the Design Notes on raw pointer arithmetic).
	headerSize = 16
	// minimumPayload is the smallest payload a split tail is allowed to carry.
	minimumPayload = 16
	// minimumBlockSize is the floor every block, and every split tail, must meet.
	minimumBlockSize = headerSize + minimumPayload
	// pointerSize is the back-pointer width reserved by AllocAligned.
	pointerSize = int(unsafe.Sizeof(uintptr(0)))
)

// ProtFlag is a bitfield over {READ, WRITE, EXEC}.
type ProtFlag uint8

const (
	ProtRead ProtFlag = 1 << iota
	ProtWrite
	ProtExec
)

// block is the out-of-band metadata for one span of a heap extent. Keeping
// metadata off to the side instead of embedded in the mapped bytes avoids
// storing live Go pointers inside memory the garbage collector does not
// manage, per the Design Notes' recommendation to isolate raw pointer
// arithmetic and to split list membership from address adjacency.
type block struct {
	extent *extent
	offset int
	size   int
	free   bool
	prot   ProtFlag

	// prev/next: membership in whichever of freeList/usedList this block
	// currently occupies.
	prev *block
	next *block

	// physPrev/physNext: address-order adjacency within the owning extent.
	// Never spans two extents.
	physPrev *block
	physNext *block
}

var blockPool = sync.Pool{
	New: func() any { return &block{} },
}

func allocateBlock() *block {
	b := blockPool.Get().(*block)
	*b = block{}
	return b
}

func releaseBlock(b *block) {
	blockPool.Put(b)
}

// payloadAddr returns the client-visible address for this block: the extent's
// base address plus the block's offset plus the fixed header size.
func (b *block) payloadAddr() uintptr {
	return uintptr(unsafe.Pointer(&b.extent.data[0])) + uintptr(b.offset+headerSize)
}

func (b *block) payloadSize() int {
	return b.size - headerSize
}

// blockTotalSize computes the whole-block size needed to carry payloadSize
// bytes plus header and debug margin overhead, rounded up to pointerSize so
// that every block's offset — and thus every payloadAddr() — stays aligned
// to the platform's natural word size, then floored at minimumBlockSize.
func blockTotalSize(payloadSize int) int {
	total := payloadSize + headerSize + memutils.DebugMargin
	total = memutils.AlignUp(total, uint(pointerSize))
	if total < minimumBlockSize {
		total = minimumBlockSize
	}
	return total
}
