package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pricescout/pricescout/internal/extractor"
	pubmem "github.com/pricescout/pricescout/internal/publisher/memory"
	"github.com/pricescout/pricescout/internal/scout"
	"github.com/pricescout/pricescout/internal/storage/memory"
)

const detailPage = `<html><body>
	<div class="pdp">
		<div class="price" style="font-size: 20px">&#8377;120</div>
		<del>&#8377;150</del>
	</div>
</body></html>`

const cardMarkup = `<div class="card"><div class="name">Amul Milk</div></div>`

type fakeAdapter struct {
	name        string
	locationErr error
	panicOnLoc  bool
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) SelectLocation(context.Context, scout.Session, string) error {
	if a.panicOnLoc {
		panic("selector exploded")
	}
	return a.locationErr
}

func (a *fakeAdapter) NavigateToSearch(context.Context, scout.Session, string) error { return nil }

func (a *fakeAdapter) SearchURL(query string) string {
	return "https://fake.example/search?q=" + query
}

func (a *fakeAdapter) ListProductCards(context.Context, scout.Session) ([]scout.Card, error) {
	return []scout.Card{{Index: 0, HTML: cardMarkup}}, nil
}

func (a *fakeAdapter) OpenCard(context.Context, scout.Session, scout.Card, *string) error {
	return nil
}

func (a *fakeAdapter) DetailHTML(context.Context, scout.Session) (string, error) {
	return detailPage, nil
}

type stubSession struct{}

func (stubSession) Navigate(context.Context, string) error { return nil }

func (stubSession) CurrentURL(context.Context) (string, error) { return "", nil }

func (stubSession) PageHTML(context.Context) (string, error) { return "", nil }

func (stubSession) Click(context.Context, string) error { return nil }

func (stubSession) TypeText(context.Context, string, string) error { return nil }

func (stubSession) PressEnter(context.Context) error { return nil }

func (stubSession) Exec(context.Context, string, any) error { return nil }

func (stubSession) WaitVisible(context.Context, string, time.Duration) bool { return true }

func (stubSession) ScrollToBottom(context.Context) error { return nil }

func (stubSession) Pace(context.Context) error { return nil }
func (stubSession) DetectAndRecoverErrorPage(context.Context, string, string) (bool, error) {
	return false, nil
}
func (stubSession) Close() error { return nil }

type fakeFactory struct {
	launchErr error
}

func (f *fakeFactory) Launch(context.Context) (scout.Session, error) {
	if f.launchErr != nil {
		return nil, f.launchErr
	}
	return stubSession{}, nil
}

type seqIDGen struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDGen) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("job-%d", g.n), nil
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type recordingArtifacts struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingArtifacts) PutArtifact(_ context.Context, path string, _ scout.Artifact) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	return "memory://" + path, nil
}

func (r *recordingArtifacts) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func newTestManager(t *testing.T, adapter scout.SiteAdapter, factory scout.SessionFactory) (*Manager, *memory.JobStore, *recordingArtifacts, *pubmem.Publisher) {
	t.Helper()
	store := memory.NewJobStore(0)
	artifacts := &recordingArtifacts{}
	publisher := pubmem.New()
	site := Site{
		Adapter:       adapter,
		CardSelectors: extractor.CardSelectors{Name: ".name"},
		CardMarker:    ".card",
		DetailRegion:  "div.pdp",
		BaseURL:       "https://fake.example",
	}
	mgr := New(
		store,
		factory,
		[]Site{site},
		artifacts,
		publisher,
		realClock{},
		&seqIDGen{},
		Config{MinProducts: 1, MaxRetryRounds: 1, Topic: "jobs"},
		nil,
	)
	return mgr, store, artifacts, publisher
}

func waitTerminal(t *testing.T, mgr *Manager, jobID string) scout.Job {
	t.Helper()
	var job scout.Job
	require.Eventually(t, func() bool {
		got, err := mgr.GetStatus(context.Background(), jobID)
		if err != nil {
			return false
		}
		job = got
		return got.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestManagerCompletesJob(t *testing.T) {
	t.Parallel()

	mgr, _, artifacts, publisher := newTestManager(t,
		&fakeAdapter{name: "testmart"}, &fakeFactory{})

	jobID, err := mgr.Submit(context.Background(), "milk", "Koramangala")
	require.NoError(t, err)
	require.Equal(t, "job-1", jobID)

	job := waitTerminal(t, mgr, jobID)
	require.Equal(t, scout.JobStatusCompleted, job.Status)
	require.Len(t, job.SiteResults, 1)

	result := job.SiteResults[0]
	require.True(t, result.Success)
	require.Equal(t, "testmart", result.Site)
	require.Equal(t, 1, result.ProductCount)
	require.Equal(t, "Amul Milk", result.Products[0].Name)
	require.NotNil(t, result.Products[0].Price)
	require.Equal(t, 120.0, *result.Products[0].Price)

	require.Equal(t, []string{"results/job-1/testmart.json"}, artifacts.Paths())

	messages := publisher.Messages()
	require.Len(t, messages, 1)
	require.Equal(t, "jobs", messages[0].Topic)
	event := messages[0].Payload.(scout.CompletionEvent)
	require.Equal(t, jobID, event.JobID)
	require.Equal(t, scout.JobStatusCompleted, event.Status)
	require.Equal(t, 1, event.SiteCount["testmart"])
}

func TestManagerContainsSitePanic(t *testing.T) {
	t.Parallel()

	mgr, _, artifacts, _ := newTestManager(t,
		&fakeAdapter{name: "testmart", panicOnLoc: true}, &fakeFactory{})

	jobID, err := mgr.Submit(context.Background(), "milk", "Koramangala")
	require.NoError(t, err)

	job := waitTerminal(t, mgr, jobID)
	// A site blowing up fails that site, not the job.
	require.Equal(t, scout.JobStatusCompleted, job.Status)
	require.Len(t, job.SiteResults, 1)
	require.False(t, job.SiteResults[0].Success)
	require.Contains(t, job.SiteResults[0].ErrorText, "panic")
	require.Empty(t, artifacts.Paths())
}

func TestManagerSessionLaunchFailure(t *testing.T) {
	t.Parallel()

	mgr, _, _, _ := newTestManager(t,
		&fakeAdapter{name: "testmart"},
		&fakeFactory{launchErr: errors.New("no browser slots")})

	jobID, err := mgr.Submit(context.Background(), "milk", "Koramangala")
	require.NoError(t, err)

	job := waitTerminal(t, mgr, jobID)
	require.Equal(t, scout.JobStatusCompleted, job.Status)
	require.False(t, job.SiteResults[0].Success)
	require.Contains(t, job.SiteResults[0].ErrorText, "no browser slots")
}

func TestManagerLocationFailure(t *testing.T) {
	t.Parallel()

	mgr, _, _, _ := newTestManager(t,
		&fakeAdapter{name: "testmart", locationErr: scout.ErrLocationNotFound},
		&fakeFactory{})

	jobID, err := mgr.Submit(context.Background(), "milk", "Nowhere")
	require.NoError(t, err)

	job := waitTerminal(t, mgr, jobID)
	require.Equal(t, scout.JobStatusCompleted, job.Status)
	require.False(t, job.SiteResults[0].Success)
}

func TestManagerGetStatusUnknownJob(t *testing.T) {
	t.Parallel()

	mgr, _, _, _ := newTestManager(t, &fakeAdapter{name: "testmart"}, &fakeFactory{})
	_, err := mgr.GetStatus(context.Background(), "missing")
	require.ErrorIs(t, err, scout.ErrJobNotFound)
}

func TestManagerJobBudgetExceeded(t *testing.T) {
	t.Parallel()

	store := memory.NewJobStore(0)
	site := Site{
		Adapter:       &fakeAdapter{name: "testmart"},
		CardSelectors: extractor.CardSelectors{Name: ".name"},
		CardMarker:    ".card",
		DetailRegion:  "div.pdp",
		BaseURL:       "https://fake.example",
	}
	mgr := New(
		store,
		&fakeFactory{},
		[]Site{site},
		nil,
		nil,
		realClock{},
		&seqIDGen{},
		Config{MinProducts: 1, MaxRetryRounds: 1, JobBudget: time.Nanosecond},
		nil,
	)

	jobID, err := mgr.Submit(context.Background(), "milk", "Koramangala")
	require.NoError(t, err)

	job := waitTerminal(t, mgr, jobID)
	// The budget running out still finishes the job; the site reports it.
	require.Equal(t, scout.JobStatusCompleted, job.Status)
	require.False(t, job.SiteResults[0].Success)
	require.Equal(t, "job budget exceeded", job.SiteResults[0].ErrorText)
}
