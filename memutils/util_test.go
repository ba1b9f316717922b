package memutils_test

import (
	"testing"

	"github.com/gostudent/heapalloc/memutils"
	"github.com/stretchr/testify/require"
)

func TestCheckPow2(t *testing.T) {
	require.NoError(t, memutils.CheckPow2(1, "x"))
	require.NoError(t, memutils.CheckPow2(64, "x"))
	require.Error(t, memutils.CheckPow2(0, "x"))
	require.Error(t, memutils.CheckPow2(3, "x"))
	require.ErrorIs(t, memutils.CheckPow2(3, "x"), memutils.PowerOfTwoError)
}

func TestAlignUpDown(t *testing.T) {
	require.Equal(t, 64, memutils.AlignUp(1, 64))
	require.Equal(t, 64, memutils.AlignUp(64, 64))
	require.Equal(t, 128, memutils.AlignUp(65, 64))

	require.Equal(t, 0, memutils.AlignDown(63, 64))
	require.Equal(t, 64, memutils.AlignDown(64, 64))
	require.Equal(t, 64, memutils.AlignDown(100, 64))
}
