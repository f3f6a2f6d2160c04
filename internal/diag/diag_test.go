package diag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	e := New(KindDivisionByZero, "i32.div_s by zero")
	require.Equal(t, "division_by_zero: i32.div_s by zero", e.Error())
}

func TestErrorWrap(t *testing.T) {
	cause := errors.New("boom")
	e := Wrap(KindLinkUnresolved, cause, "module %q export %q", "env", "memory")
	require.ErrorIs(t, e, cause)
	require.Contains(t, e.Error(), "boom")
}

func TestIsMatchesByKindOnly(t *testing.T) {
	a := New(KindTableOutOfBounds, "index 9 size 3")
	b := New(KindTableOutOfBounds, "different message")
	c := New(KindMemoryOutOfBounds, "index 9 size 3")

	require.True(t, errors.Is(a, b))
	require.False(t, errors.Is(a, c))
}

func TestKindString(t *testing.T) {
	require.Equal(t, "division_by_zero", KindDivisionByZero.String())
	require.Equal(t, "unknown", Kind(250).String())
}
