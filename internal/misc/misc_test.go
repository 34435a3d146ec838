package misc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMin(t *testing.T) {
	require := require.New(t)
	require.Equal(1, Min(1, 2))
	require.Equal(1, Min(2, 1))
	require.Equal(-3.5, Min(-3.5, 0.0))
	require.Equal("a", Min("a", "b"))
}

func TestClamp(t *testing.T) {
	require := require.New(t)
	require.Equal(5, Clamp(5, 0, 10))
	require.Equal(0, Clamp(-1, 0, 10))
	require.Equal(10, Clamp(11, 0, 10))
}

func TestStringLimit(t *testing.T) {
	require := require.New(t)
	require.Equal("", StringLimit("hello", -1))
	require.Equal("he", StringLimit("hello", 2))
	require.Equal("hel", StringLimit("hello", 3))
	require.Equal("hello", StringLimit("hello", 5))
	require.Equal("hello", StringLimit("hello", 10))
	require.Equal("long ...", StringLimit("long string here", 8))
}
