package scout

import (
	"context"
	"time"
)

// JobStore persists job metadata. Implementations are bounded: when the cap
// is reached the oldest terminal job is evicted before a new insert.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, jobID string) (Job, error)
	MarkProcessing(ctx context.Context, jobID string, at time.Time) error
	Complete(ctx context.Context, jobID string, results []SiteResult, at time.Time) error
	Fail(ctx context.Context, jobID string, errText string, results []SiteResult, at time.Time) error
}

// Session is one browser instance with navigation and inspection
// primitives. All mutable page state lives behind the session; adapters
// bound to it hold no state of their own.
type Session interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	PageHTML(ctx context.Context) (string, error)
	Click(ctx context.Context, selector string) error
	TypeText(ctx context.Context, selector, text string) error
	PressEnter(ctx context.Context) error
	Exec(ctx context.Context, script string, result any) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) bool
	ScrollToBottom(ctx context.Context) error
	Pace(ctx context.Context) error
	DetectAndRecoverErrorPage(ctx context.Context, fallbackURL, contentMarker string) (bool, error)
	Close() error
}

// SessionFactory launches sessions; the manager uses it to bound the number
// of simultaneous browser instances.
type SessionFactory interface {
	Launch(ctx context.Context) (Session, error)
}

// SiteAdapter drives one site's navigation flow through a Session. All
// adapters expose the same contract; selectors are configuration, not code.
type SiteAdapter interface {
	Name() string
	SelectLocation(ctx context.Context, s Session, name string) error
	NavigateToSearch(ctx context.Context, s Session, query string) error
	SearchURL(query string) string
	ListProductCards(ctx context.Context, s Session) ([]Card, error)
	OpenCard(ctx context.Context, s Session, card Card, productURL *string) error
	DetailHTML(ctx context.Context, s Session) (string, error)
}

// ArtifactStore writes the per-site JSON document and returns a URI.
type ArtifactStore interface {
	PutArtifact(ctx context.Context, path string, artifact Artifact) (string, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
