package scout

import "errors"

// Extraction fault taxonomy. Per-site faults are contained and recorded on
// the SiteResult; only orchestration faults fail the whole job.
var (
	// ErrLocationNotFound means no generated location-name variant matched
	// any suggestion the site offered.
	ErrLocationNotFound = errors.New("location not found")

	// ErrNavigationTimeout means product markers did not appear within the
	// bounded wait after a search navigation.
	ErrNavigationTimeout = errors.New("navigation timeout")

	// ErrSessionFault means the browser crashed or became unresponsive.
	ErrSessionFault = errors.New("browser session fault")

	// ErrJobNotFound is returned by job stores for unknown or evicted ids.
	ErrJobNotFound = errors.New("job not found")
)
