package queuemanager

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/theapemachine/a2a-engine/internal/eventqueue"
)

func TestAddFailsOnDuplicate(t *testing.T) {
	m := New(8)
	q := eventqueue.New(8)

	require.NoError(t, m.Add("t1", q))
	require.ErrorIs(t, m.Add("t1", eventqueue.New(8)), ErrQueueExists)
}

func TestCloseFailsWhenAbsent(t *testing.T) {
	m := New(8)
	require.ErrorIs(t, m.Close("missing"), ErrNoQueue)
}

func TestGetTap(t *testing.T) {
	m := New(8)
	q := eventqueue.New(8)
	require.NoError(t, m.Add("t1", q))

	got, ok := m.Get("t1")
	require.True(t, ok)
	require.Same(t, q, got)

	tap, ok := m.Tap("t1")
	require.True(t, ok)
	require.NotSame(t, q, tap)

	_, ok = m.Tap("unknown")
	require.False(t, ok)
}

// TestCreateOrTapConcurrent grounds the §4.2/§8 invariant: N concurrent
// createOrTap calls for one taskId yield exactly one primary and N-1 taps.
func TestCreateOrTapConcurrent(t *testing.T) {
	m := New(8)
	const n = 50

	results := make([]*eventqueue.Queue, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			results[i] = m.CreateOrTap("shared")
		}(i)
	}
	wg.Wait()

	primary, ok := m.Get("shared")
	require.True(t, ok)

	primaryCount := 0
	for _, q := range results {
		if q == primary {
			primaryCount++
		}
	}
	require.Equal(t, 1, primaryCount)
	require.Equal(t, 1, m.Len())
}
