package sqlstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/theapemachine/a2a-engine/internal/taskstore"
	"github.com/theapemachine/a2a-engine/pkg/a2a"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "nope")
	require.ErrorIs(t, err, taskstore.ErrNotFound)
}

func TestSaveThenGetRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := a2a.NewTask("t1", "c1", nil)
	task.Status.State = a2a.TaskStateCompleted

	require.NoError(t, s.Save(ctx, task))

	got, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, a2a.TaskStateCompleted, got.Status.State)
	require.Equal(t, "c1", got.ContextID)
}

func TestSaveUpserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := a2a.NewTask("t1", "c1", nil)
	require.NoError(t, s.Save(ctx, task))

	task.Status.State = a2a.TaskStateFailed
	require.NoError(t, s.Save(ctx, task))

	got, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, a2a.TaskStateFailed, got.Status.State)
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.migrate())
	require.NoError(t, s.migrate())
}
