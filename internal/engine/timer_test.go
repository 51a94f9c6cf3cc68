package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cyclus/fuelsim/internal/engineerr"
)

type recordingListener struct {
	id    int64
	order *[]int64
}

func (l recordingListener) Tick(int64) { *l.order = append(*l.order, l.id) }
func (l recordingListener) Tock(int64) { *l.order = append(*l.order, l.id) }

type panickingListener struct{}

func (panickingListener) Tick(int64) { panic(engineerr.Value("listener: boom")) }
func (panickingListener) Tock(int64) {}

func TestBroadcastTickVisitsInAscendingAgentOrder(t *testing.T) {
	timer, err := NewTimer(5)
	require.NoError(t, err)
	var order []int64
	timer.RegisterListener(3, recordingListener{id: 3, order: &order})
	timer.RegisterListener(1, recordingListener{id: 1, order: &order})
	timer.RegisterListener(2, recordingListener{id: 2, order: &order})

	timer.BroadcastTick(func(int64, error) { t.Fatal("unexpected error") })
	require.Equal(t, []int64{1, 2, 3}, order)
}

func TestBroadcastTickRecoversTypedPanic(t *testing.T) {
	timer, err := NewTimer(5)
	require.NoError(t, err)
	timer.RegisterListener(1, panickingListener{})

	var got error
	timer.BroadcastTick(func(id int64, err error) {
		require.Equal(t, int64(1), id)
		got = err
	})
	require.Error(t, got)
	require.ErrorIs(t, got, engineerr.ErrValue)
}

func TestUnregisterListenerStopsBroadcasts(t *testing.T) {
	timer, err := NewTimer(5)
	require.NoError(t, err)
	var order []int64
	timer.RegisterListener(1, recordingListener{id: 1, order: &order})
	timer.UnregisterListener(1)

	timer.BroadcastTick(func(int64, error) { t.Fatal("unexpected error") })
	require.Empty(t, order)
}

func TestAdvanceAndDone(t *testing.T) {
	timer, err := NewTimer(2)
	require.NoError(t, err)
	require.False(t, timer.Done())
	timer.Advance()
	require.False(t, timer.Done())
	timer.Advance()
	require.True(t, timer.Done())
}
