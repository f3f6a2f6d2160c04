package vmir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRingNextPrevPos(t *testing.T) {
	const begin, end = 2, 5 // ring of size 3: positions 2,3,4

	require.Equal(t, 3, RingNextPos(2, begin, end))
	require.Equal(t, 4, RingNextPos(3, begin, end))
	require.Equal(t, 2, RingNextPos(4, begin, end)) // wraps

	require.Equal(t, 3, RingPrevPos(4, begin, end))
	require.Equal(t, 2, RingPrevPos(3, begin, end))
	require.Equal(t, 4, RingPrevPos(2, begin, end)) // wraps

	for pos := begin; pos < end; pos++ {
		require.Equal(t, pos, RingPrevPos(RingNextPos(pos, begin, end), begin, end))
	}
}

func TestCompileOptionStackTopEnabled(t *testing.T) {
	opt := CompileOption{I32StackTopBegin: 0, I32StackTopEnd: 4}
	require.True(t, opt.StackTopEnabled(0x7f)) // i32
	require.False(t, opt.StackTopEnabled(0x7e)) // i64: begin==end==0
}
