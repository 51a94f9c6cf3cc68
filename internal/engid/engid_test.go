package engid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCounterMonotonic(t *testing.T) {
	var c Counter
	require.True(t, ID(0).IsZero())
	first := c.Next()
	second := c.Next()
	require.Equal(t, ID(1), first)
	require.Equal(t, ID(2), second)
	require.False(t, first.IsZero())
}
