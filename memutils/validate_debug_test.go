//go:build debug_mem_utils

package memutils_test

import (
	"testing"
	"unsafe"

	"github.com/gostudent/heapalloc/memutils"
	"github.com/stretchr/testify/require"
)

type fakeValidatable struct {
	err error
}

func (f fakeValidatable) Validate() error { return f.err }

func TestMagicValueRoundTrip(t *testing.T) {
	buf := make([]byte, memutils.DebugMargin)
	ptr := unsafe.Pointer(&buf[0])

	memutils.WriteMagicValue(ptr, 0)
	require.True(t, memutils.ValidateMagicValue(ptr, 0))

	buf[0] ^= 0xFF
	require.False(t, memutils.ValidateMagicValue(ptr, 0))
}

func TestDebugValidatePanicsOnError(t *testing.T) {
	require.NotPanics(t, func() { memutils.DebugValidate(fakeValidatable{}) })
	require.Panics(t, func() { memutils.DebugValidate(fakeValidatable{err: memutils.PowerOfTwoError}) })
}
