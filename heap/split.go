package heap

// splitIfProfitable carves the tail off b when the surplus over requested is
// large enough to remain a useful block on its own. The tail is always
// inserted into the free list (the conforming alternative to the reference's
// lazy, list-skipping behavior) and linked into the address-order chain
// immediately after the remainder.
func (a *Allocator) splitIfProfitable(b *block, requested int) {
	surplus := b.size - requested
	if surplus < minimumBlockSize {
		return
	}

	tail := allocateBlock()
	tail.extent = b.extent
	tail.offset = b.offset + requested
	tail.size = surplus
	tail.free = true

	tail.physNext = b.physNext
	tail.physPrev = b
	if b.physNext != nil {
		b.physNext.physPrev = tail
	}
	b.physNext = tail

	b.size = requested

	a.freeList.pushFront(tail)
}

// coalesce absorbs every memory-adjacent free neighbor of b, in both
// directions, returning the surviving block. This walks the address-order
// chain rather than the free list, the conforming alternative the spec's
// Design Notes call out as yielding lower fragmentation than the reference's
// free-list-order walk.
func (a *Allocator) coalesce(b *block) *block {
	for b.physNext != nil && b.physNext.free {
		a.absorb(b, b.physNext)
	}
	for b.physPrev != nil && b.physPrev.free {
		prev := b.physPrev
		a.absorb(prev, b)
		b = prev
	}
	return b
}

// absorb merges victim into dst; victim must be dst's memory-adjacent
// free successor. victim is removed from the free list and its block
// struct returned to the pool.
func (a *Allocator) absorb(dst, victim *block) {
	a.freeList.unlink(victim)
	dst.size += victim.size
	dst.physNext = victim.physNext
	if victim.physNext != nil {
		victim.physNext.physPrev = dst
	}
	releaseBlock(victim)
}
