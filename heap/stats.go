package heap

// Stats is a snapshot of the accumulator's counters, returned by value.
type Stats struct {
	TotalMemory        int
	UsedMemory         int
	FreeMemory         int
	Overhead           int
	PeakUsage          int
	TotalAllocations   int
	ActiveAllocations  int
	FragmentationRatio float64
}

// Stats returns a snapshot of the accumulator. A zeroed snapshot is returned
// if the allocator is not initialized.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.initialized {
		return Stats{}
	}
	return a.snapshotLocked()
}

func (a *Allocator) snapshotLocked() Stats {
	free := a.totalMemory - a.usedMemory
	s := Stats{
		TotalMemory:       a.totalMemory,
		UsedMemory:        a.usedMemory,
		FreeMemory:        free,
		Overhead:          headerSize,
		PeakUsage:         a.peakUsage,
		TotalAllocations:  a.totalAllocations,
		ActiveAllocations: a.activeAllocations,
	}
	if free > 0 {
		largest := a.largestFreeBlockLocked()
		s.FragmentationRatio = 1 - float64(largest)/float64(free)
	}
	return s
}

func (a *Allocator) largestFreeBlockLocked() int {
	largest := 0
	for b := a.freeList.head; b != nil; b = b.next {
		if b.size > largest {
			largest = b.size
		}
	}
	return largest
}
