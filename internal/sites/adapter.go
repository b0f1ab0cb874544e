package sites

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pricescout/pricescout/internal/scout"
)

// Adapter implements scout.SiteAdapter for one configured site. Adapters
// hold no mutable state; everything page-related lives in the Session they
// are handed.
type Adapter struct {
	cfg        Config
	navTimeout time.Duration
	logger     *zap.Logger
}

// NewAdapter builds an Adapter from validated configuration.
func NewAdapter(cfg Config, navTimeout time.Duration, logger *zap.Logger) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if navTimeout <= 0 {
		navTimeout = 20 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{cfg: cfg, navTimeout: navTimeout, logger: logger}, nil
}

// Name identifies the site.
func (a *Adapter) Name() string {
	return a.cfg.Name
}

// Selectors exposes the configured selectors for the extractor.
func (a *Adapter) Selectors() Selectors {
	return a.cfg.Selectors
}

// BaseURL returns the site's landing URL.
func (a *Adapter) BaseURL() string {
	return a.cfg.BaseURL
}

// SearchURL renders the search results URL for a query.
func (a *Adapter) SearchURL(query string) string {
	return a.cfg.SearchURL(query)
}

// SelectLocation drives the site's location picker. It types the location,
// then matches the generated name variants against the offered suggestions.
// A primary click is tried first, then a keyboard confirm; if neither lands
// on a matching suggestion the site is unusable for this job.
func (a *Adapter) SelectLocation(ctx context.Context, s scout.Session, name string) error {
	if err := s.Navigate(ctx, a.cfg.BaseURL); err != nil {
		return fmt.Errorf("open %s: %w", a.cfg.Name, err)
	}

	if a.cfg.Selectors.LocationButton != "" {
		if s.WaitVisible(ctx, a.cfg.Selectors.LocationButton, a.navTimeout) {
			if err := s.Click(ctx, a.cfg.Selectors.LocationButton); err != nil {
				a.logger.Debug("location button click failed",
					zap.String("site", a.cfg.Name), zap.Error(err))
			}
		}
	}

	if !s.WaitVisible(ctx, a.cfg.Selectors.LocationInput, a.navTimeout) {
		return fmt.Errorf("%s location input never appeared: %w", a.cfg.Name, scout.ErrNavigationTimeout)
	}
	if err := s.TypeText(ctx, a.cfg.Selectors.LocationInput, name); err != nil {
		return fmt.Errorf("type location: %w", err)
	}
	if err := s.Pace(ctx); err != nil {
		return fmt.Errorf("pace after typing: %w", err)
	}

	variants := locationVariants(name)
	if idx, err := a.pickSuggestion(ctx, s, variants); err == nil && idx >= 0 {
		return nil
	}

	// Keyboard-confirm fallback: accept the top suggestion and re-check.
	if err := s.PressEnter(ctx); err != nil {
		a.logger.Debug("location enter fallback failed",
			zap.String("site", a.cfg.Name), zap.Error(err))
	}
	if err := s.Pace(ctx); err != nil {
		return fmt.Errorf("pace after confirm: %w", err)
	}
	if idx, err := a.pickSuggestion(ctx, s, variants); err == nil && idx >= 0 {
		return nil
	}

	return fmt.Errorf("%s: no suggestion matched %q: %w", a.cfg.Name, name, scout.ErrLocationNotFound)
}

// pickSuggestion reads the visible suggestion texts, matches them against
// the variants and clicks the winner. Returns -1 when nothing matched.
func (a *Adapter) pickSuggestion(ctx context.Context, s scout.Session, variants []string) (int, error) {
	if !s.WaitVisible(ctx, a.cfg.Selectors.LocationSuggestion, a.navTimeout/2) {
		return -1, fmt.Errorf("suggestions never appeared")
	}

	var texts []string
	script := fmt.Sprintf(
		`Array.from(document.querySelectorAll(%q)).map(el => el.innerText)`,
		a.cfg.Selectors.LocationSuggestion,
	)
	if err := s.Exec(ctx, script, &texts); err != nil {
		return -1, fmt.Errorf("read suggestions: %w", err)
	}

	idx := matchSuggestion(texts, variants)
	if idx < 0 {
		return -1, nil
	}

	click := fmt.Sprintf(
		`(() => { const el = document.querySelectorAll(%q)[%d]; if (el) el.click(); return !!el; })()`,
		a.cfg.Selectors.LocationSuggestion, idx,
	)
	var clicked bool
	if err := s.Exec(ctx, click, &clicked); err != nil || !clicked {
		return -1, fmt.Errorf("click suggestion %d: %v", idx, err)
	}
	if err := s.Pace(ctx); err != nil {
		return -1, fmt.Errorf("pace after suggestion: %w", err)
	}
	return idx, nil
}

// NavigateToSearch opens the search results page and waits for the product
// card marker.
func (a *Adapter) NavigateToSearch(ctx context.Context, s scout.Session, query string) error {
	target := a.cfg.SearchURL(query)
	if err := s.Navigate(ctx, target); err != nil {
		return fmt.Errorf("navigate search %s: %w", target, err)
	}
	if !s.WaitVisible(ctx, a.cfg.Selectors.ProductCard, a.navTimeout) {
		return fmt.Errorf("%s: no product cards for %q: %w", a.cfg.Name, query, scout.ErrNavigationTimeout)
	}
	return nil
}

// ListProductCards snapshots the currently rendered product tiles. The
// returned handles stay index-addressable until the next call re-queries
// the DOM.
func (a *Adapter) ListProductCards(ctx context.Context, s scout.Session) ([]scout.Card, error) {
	var markup []string
	script := fmt.Sprintf(
		`Array.from(document.querySelectorAll(%q)).map(el => el.outerHTML)`,
		a.cfg.Selectors.ProductCard,
	)
	if err := s.Exec(ctx, script, &markup); err != nil {
		return nil, fmt.Errorf("list product cards: %w", err)
	}
	cards := make([]scout.Card, len(markup))
	for i, html := range markup {
		cards[i] = scout.Card{Index: i, HTML: html}
	}
	return cards, nil
}

// OpenCard brings one card's detail view into the session, either through
// its direct URL or by clicking the tile in place.
func (a *Adapter) OpenCard(ctx context.Context, s scout.Session, card scout.Card, productURL *string) error {
	scroll := fmt.Sprintf(
		`(() => { const el = document.querySelectorAll(%q)[%d]; if (el) el.scrollIntoView({block: "center"}); return !!el; })()`,
		a.cfg.Selectors.ProductCard, card.Index,
	)
	var visible bool
	if err := s.Exec(ctx, scroll, &visible); err != nil {
		return fmt.Errorf("scroll card %d into view: %w", card.Index, err)
	}
	if err := s.Pace(ctx); err != nil {
		return fmt.Errorf("pace before open: %w", err)
	}

	if productURL != nil && *productURL != "" {
		if err := s.Navigate(ctx, *productURL); err != nil {
			return fmt.Errorf("open card url %s: %w", *productURL, err)
		}
	} else {
		if !visible {
			return fmt.Errorf("card %d vanished before click", card.Index)
		}
		click := fmt.Sprintf(
			`(() => { const el = document.querySelectorAll(%q)[%d]; if (el) el.click(); return !!el; })()`,
			a.cfg.Selectors.ProductCard, card.Index,
		)
		var clicked bool
		if err := s.Exec(ctx, click, &clicked); err != nil || !clicked {
			return fmt.Errorf("click card %d: %v", card.Index, err)
		}
	}

	marker := a.cfg.Selectors.DetailRegion
	if marker == "" {
		marker = "body"
	}
	if !s.WaitVisible(ctx, marker, a.navTimeout) {
		return fmt.Errorf("card %d detail never rendered: %w", card.Index, scout.ErrNavigationTimeout)
	}
	return nil
}

// DetailHTML returns the rendered markup of the active detail view.
func (a *Adapter) DetailHTML(ctx context.Context, s scout.Session) (string, error) {
	html, err := s.PageHTML(ctx)
	if err != nil {
		return "", fmt.Errorf("snapshot detail page: %w", err)
	}
	return html, nil
}
