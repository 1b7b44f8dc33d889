package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timshannon/badgerhold/v4"
)

func newTestStore(t *testing.T) *badgerhold.Store {
	t.Helper()
	dir := t.TempDir()
	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	store, err := badgerhold.Open(options)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestJobLifecycleStatusIsMonotonic(t *testing.T) {
	m := New(newTestStore(t), time.Hour)

	job, _, err := m.Create(context.Background(), "crawl", `{"url":"https://example.com"}`)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, job.Status)

	require.NoError(t, m.MarkRunning(job.ID))
	got, err := m.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, got.Status)
	assert.NotNil(t, got.StartedAt)

	require.NoError(t, m.Complete(job.ID, `{"pages":3}`))
	got, err = m.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
}

func TestJobFailRecordsError(t *testing.T) {
	m := New(newTestStore(t), time.Hour)
	job, _, err := m.Create(context.Background(), "crawl", "{}")
	require.NoError(t, err)
	require.NoError(t, m.MarkRunning(job.ID))

	require.NoError(t, m.Fail(job.ID, errors.New("fetch timed out")))
	got, err := m.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "fetch timed out", got.Error)
}

func TestJobCancelStopsContextAndMarksTerminal(t *testing.T) {
	m := New(newTestStore(t), time.Hour)
	job, jobCtx, err := m.Create(context.Background(), "research", "{}")
	require.NoError(t, err)
	require.NoError(t, m.MarkRunning(job.ID))

	require.NoError(t, m.Cancel(job.ID))

	select {
	case <-jobCtx.Done():
	default:
		t.Fatal("expected job context to be cancelled")
	}

	got, err := m.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)

	// Cancelling an already-terminal job is a no-op, not an error.
	require.NoError(t, m.Cancel(job.ID))
}

func TestJobGetNotFound(t *testing.T) {
	m := New(newTestStore(t), time.Hour)
	_, err := m.Get("nonexistent")
	require.Error(t, err)
}

func TestJobListOrdersNewestFirst(t *testing.T) {
	m := New(newTestStore(t), time.Hour)
	first, _, err := m.Create(context.Background(), "crawl", "{}")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, _, err := m.Create(context.Background(), "crawl", "{}")
	require.NoError(t, err)

	list, err := m.List("crawl", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}
