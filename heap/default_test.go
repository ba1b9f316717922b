package heap_test

import (
	"testing"

	"github.com/gostudent/heapalloc/heap"
	"github.com/stretchr/testify/require"
)

func TestDefaultAllocatorBeforeInit(t *testing.T) {
	require.Zero(t, heap.Alloc(64))
	require.Equal(t, heap.Stats{}, heap.Stats())
	require.NoError(t, heap.Cleanup())
}

func TestDefaultAllocatorInitUseCleanup(t *testing.T) {
	require.NoError(t, heap.Init(heap.Config{InitialHeapSize: 1 << 16}))
	defer func() { require.NoError(t, heap.Cleanup()) }()

	require.Error(t, heap.Init(heap.Config{InitialHeapSize: 1 << 16}))

	p := heap.Alloc(128)
	require.NotZero(t, p)
	heap.Free(p)

	s := heap.Stats()
	require.Equal(t, 0, s.ActiveAllocations)
}
