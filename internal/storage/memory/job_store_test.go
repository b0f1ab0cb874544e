package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pricescout/pricescout/internal/scout"
)

func queuedJob(id string) scout.Job {
	return scout.Job{
		ID:        id,
		Product:   "milk",
		Location:  "Koramangala",
		Status:    scout.JobStatusQueued,
		CreatedAt: time.Now().UTC(),
	}
}

func TestJobStoreLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewJobStore(0)

	require.NoError(t, store.CreateJob(ctx, queuedJob("job-1")))

	got, err := store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, scout.JobStatusQueued, got.Status)

	now := time.Now().UTC()
	require.NoError(t, store.MarkProcessing(ctx, "job-1", now))

	got, err = store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, scout.JobStatusProcessing, got.Status)
	require.NotNil(t, got.StartedAt)

	results := []scout.SiteResult{{Site: "testmart", Success: true, ProductCount: 3}}
	require.NoError(t, store.Complete(ctx, "job-1", results, now))

	got, err = store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, scout.JobStatusCompleted, got.Status)
	require.NotNil(t, got.FinishedAt)
	require.Len(t, got.SiteResults, 1)
}

func TestJobStoreFail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewJobStore(0)

	require.NoError(t, store.CreateJob(ctx, queuedJob("job-1")))
	require.NoError(t, store.Fail(ctx, "job-1", "orchestration fault", nil, time.Now()))

	got, err := store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, scout.JobStatusFailed, got.Status)
	require.Equal(t, "orchestration fault", got.ErrorText)
}

func TestJobStoreTerminalIsFinal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewJobStore(0)

	require.NoError(t, store.CreateJob(ctx, queuedJob("job-1")))
	require.NoError(t, store.Complete(ctx, "job-1", nil, time.Now()))

	require.Error(t, store.Fail(ctx, "job-1", "too late", nil, time.Now()))
	require.Error(t, store.MarkProcessing(ctx, "job-1", time.Now()))

	got, err := store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, scout.JobStatusCompleted, got.Status)
}

func TestJobStoreUnknownJob(t *testing.T) {
	t.Parallel()
	store := NewJobStore(0)

	_, err := store.GetJob(context.Background(), "missing")
	require.ErrorIs(t, err, scout.ErrJobNotFound)
}

func TestJobStoreDuplicateCreate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewJobStore(0)

	require.NoError(t, store.CreateJob(ctx, queuedJob("job-1")))
	require.Error(t, store.CreateJob(ctx, queuedJob("job-1")))
}

func TestJobStoreEvictsOldestTerminal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewJobStore(2)

	require.NoError(t, store.CreateJob(ctx, queuedJob("job-1")))
	require.NoError(t, store.CreateJob(ctx, queuedJob("job-2")))
	require.NoError(t, store.Complete(ctx, "job-1", nil, time.Now()))
	require.NoError(t, store.Complete(ctx, "job-2", nil, time.Now()))

	require.NoError(t, store.CreateJob(ctx, queuedJob("job-3")))

	require.False(t, store.Has("job-1"))
	require.True(t, store.Has("job-2"))
	require.True(t, store.Has("job-3"))
	require.Equal(t, 2, store.Len())

	_, err := store.GetJob(ctx, "job-1")
	require.ErrorIs(t, err, scout.ErrJobNotFound)
}

func TestJobStoreNeverEvictsInFlight(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewJobStore(1)

	require.NoError(t, store.CreateJob(ctx, queuedJob("job-1")))
	require.NoError(t, store.MarkProcessing(ctx, "job-1", time.Now()))

	// The cap yields rather than dropping live work.
	require.NoError(t, store.CreateJob(ctx, queuedJob("job-2")))
	require.True(t, store.Has("job-1"))
	require.True(t, store.Has("job-2"))
	require.Equal(t, 2, store.Len())
}

func TestJobStoreGetJobReturnsCopy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewJobStore(0)

	require.NoError(t, store.CreateJob(ctx, queuedJob("job-1")))
	require.NoError(t, store.Complete(ctx, "job-1",
		[]scout.SiteResult{{Site: "testmart"}}, time.Now()))

	first, err := store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	first.SiteResults[0].Site = "mutated"

	second, err := store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, "testmart", second.SiteResults[0].Site)
}
