package traykit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoopRunsTasksInOrder(t *testing.T) {
	loop := NewLoop()

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		loop.Dispatch(func() { got = append(got, i) })
	}

	loop.Stop()
	loop.Run()

	require.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestLoopStopDrainsQueuedTasks(t *testing.T) {
	loop := NewLoop()

	ran := 0
	loop.Dispatch(func() { ran++ })
	loop.Dispatch(func() { ran++ })

	loop.Stop()
	loop.Run()

	require.Equal(t, 2, ran)
}

func TestLoopStopIdempotent(t *testing.T) {
	loop := NewLoop()

	loop.Stop()
	loop.Stop()

	// Run returns immediately on a stopped, empty loop.
	loop.Run()
}

func TestLoopDispatchDoesNotRunInline(t *testing.T) {
	loop := NewLoop()

	value := 0
	loop.Dispatch(func() { value = 42 })

	// Tasks run inside Run, never at dispatch time.
	require.Equal(t, 0, value)

	loop.Stop()
	loop.Run()
	require.Equal(t, 42, value)
}
