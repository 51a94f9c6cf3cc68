package engineerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassification(t *testing.T) {
	require.True(t, errors.Is(Value("q=%d", -1), ErrValue))
	require.True(t, errors.Is(Key("recipe %q", "leu"), ErrKey))
	require.False(t, errors.Is(Value("x"), ErrKey))
}

func TestWithAgent(t *testing.T) {
	e := Value("bad quantity")
	wrapped := WithAgent(e, 42, "tick")
	var got *Error
	require.True(t, errors.As(wrapped, &got))
	require.Equal(t, int64(42), got.AgentID)
	require.Equal(t, "tick", got.Phase)
	require.True(t, errors.Is(wrapped, ErrValue))
}

func TestFatal(t *testing.T) {
	require.False(t, Fatal(nil))
	require.False(t, Fatal(Value("x")))
	require.False(t, Fatal(State("x")))
	require.True(t, Fatal(IO("unreachable")))
	require.True(t, Fatal(errors.New("totally unrelated")))
}
