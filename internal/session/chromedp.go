// Package session owns browser instances and the navigation primitives
// built on chromedp. One Session maps to one browser tab context; sessions
// are never shared across concurrent extractions.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pricescout/pricescout/internal/scout"
)

// Config controls browser behavior and the pacing policy. Delays are
// explicit configuration, never hardcoded waits.
type Config struct {
	Headless       bool
	UserAgent      string
	NavTimeout     time.Duration
	TypingDelay    time.Duration
	StepsPerSecond float64
	ScrollSettle   time.Duration
	MaxSessions    int
}

func (c Config) withDefaults() Config {
	if c.NavTimeout <= 0 {
		c.NavTimeout = 25 * time.Second
	}
	if c.TypingDelay <= 0 {
		c.TypingDelay = 80 * time.Millisecond
	}
	if c.StepsPerSecond <= 0 {
		c.StepsPerSecond = 2
	}
	if c.ScrollSettle <= 0 {
		c.ScrollSettle = 700 * time.Millisecond
	}
	if c.MaxSessions <= 0 {
		c.MaxSessions = 2
	}
	return c
}

// Factory launches sessions off a shared exec allocator and caps how many
// browser instances run at once.
type Factory struct {
	cfg         Config
	allocator   context.Context
	allocCancel context.CancelFunc
	sem         chan struct{}
	logger      *zap.Logger
}

// NewFactory prepares the chromedp allocator with anti-detection flags.
func NewFactory(cfg Config, logger *zap.Logger) (*Factory, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("no-first-run", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Factory{
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		sem:         make(chan struct{}, cfg.MaxSessions),
		logger:      logger,
	}, nil
}

// Close tears down the allocator and with it every remaining browser.
func (f *Factory) Close() {
	f.allocCancel()
}

// Launch acquires a browser slot and arms the stealth overrides so they
// run on every document the session ever loads.
func (f *Factory) Launch(ctx context.Context) (scout.Session, error) {
	select {
	case f.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("browser slot wait canceled: %w", ctx.Err())
	}

	tabCtx, tabCancel := chromedp.NewContext(f.allocator)
	armed := chromedp.Tasks{
		network.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if f.cfg.UserAgent != "" {
				if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
					return fmt.Errorf("set user-agent: %w", err)
				}
			}
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			if err != nil {
				return fmt.Errorf("install stealth script: %w", err)
			}
			return nil
		}),
	}
	if err := chromedp.Run(tabCtx, armed); err != nil {
		tabCancel()
		<-f.sem
		return nil, fmt.Errorf("browser warmup: %w: %v", scout.ErrSessionFault, err)
	}

	release := func() { <-f.sem }
	return &browserSession{
		ctx:     tabCtx,
		cancel:  tabCancel,
		release: release,
		cfg:     f.cfg,
		limiter: rate.NewLimiter(rate.Limit(f.cfg.StepsPerSecond), 1),
		logger:  f.logger,
	}, nil
}

type browserSession struct {
	ctx     context.Context
	cancel  context.CancelFunc
	release func()
	cfg     Config
	limiter *rate.Limiter
	logger  *zap.Logger
	closed  bool
}

// Navigate loads the URL and re-evaluates the evasion overrides against
// the fresh document.
func (s *browserSession) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := s.bounded(ctx, s.cfg.NavTimeout)
	defer cancel()

	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(stealthScript, nil),
	)
	if err != nil {
		return s.fault("navigate %s", url, err)
	}
	return nil
}

func (s *browserSession) CurrentURL(ctx context.Context) (string, error) {
	runCtx, cancel := s.bounded(ctx, s.cfg.NavTimeout)
	defer cancel()

	var location string
	if err := chromedp.Run(runCtx, chromedp.Location(&location)); err != nil {
		return "", s.fault("read location", "", err)
	}
	return location, nil
}

func (s *browserSession) PageHTML(ctx context.Context) (string, error) {
	runCtx, cancel := s.bounded(ctx, s.cfg.NavTimeout)
	defer cancel()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", s.fault("snapshot page", "", err)
	}
	return html, nil
}

func (s *browserSession) Click(ctx context.Context, selector string) error {
	runCtx, cancel := s.bounded(ctx, s.cfg.NavTimeout)
	defer cancel()

	if err := chromedp.Run(runCtx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return s.fault("click %s", selector, err)
	}
	return nil
}

// TypeText clears the field and types key by key with the configured
// per-key delay, the way a person would.
func (s *browserSession) TypeText(ctx context.Context, selector, text string) error {
	runCtx, cancel := s.bounded(ctx, s.cfg.NavTimeout)
	defer cancel()

	actions := chromedp.Tasks{
		chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible),
		chromedp.SetValue(selector, "", chromedp.ByQuery),
	}
	for _, r := range text {
		actions = append(actions,
			chromedp.SendKeys(selector, string(r), chromedp.ByQuery),
			chromedp.Sleep(s.cfg.TypingDelay),
		)
	}
	if err := chromedp.Run(runCtx, actions); err != nil {
		return s.fault("type into %s", selector, err)
	}
	return nil
}

func (s *browserSession) PressEnter(ctx context.Context) error {
	runCtx, cancel := s.bounded(ctx, s.cfg.NavTimeout)
	defer cancel()

	if err := chromedp.Run(runCtx, chromedp.KeyEvent(kb.Enter)); err != nil {
		return s.fault("press enter", "", err)
	}
	return nil
}

func (s *browserSession) Exec(ctx context.Context, script string, result any) error {
	runCtx, cancel := s.bounded(ctx, s.cfg.NavTimeout)
	defer cancel()

	if err := chromedp.Run(runCtx, chromedp.Evaluate(script, result)); err != nil {
		return s.fault("evaluate script", "", err)
	}
	return nil
}

// WaitVisible blocks until the selector renders or the timeout passes.
func (s *browserSession) WaitVisible(ctx context.Context, selector string, timeout time.Duration) bool {
	runCtx, cancel := s.bounded(ctx, timeout)
	defer cancel()

	err := chromedp.Run(runCtx, chromedp.WaitVisible(selector, chromedp.ByQuery))
	return err == nil
}

// ScrollToBottom steps down the page to trigger lazy loading, pausing
// between steps so content can render.
func (s *browserSession) ScrollToBottom(ctx context.Context) error {
	const maxSteps = 24
	for i := 0; i < maxSteps; i++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("scroll pacing: %w", err)
		}
		var atBottom bool
		step := `(() => {
			window.scrollBy(0, window.innerHeight);
			return window.scrollY + window.innerHeight >= document.body.scrollHeight - 2;
		})()`
		if err := s.Exec(ctx, step, &atBottom); err != nil {
			return err
		}
		if atBottom {
			break
		}
	}

	settleCtx, cancel := s.bounded(ctx, s.cfg.ScrollSettle+time.Second)
	defer cancel()
	if err := chromedp.Run(settleCtx, chromedp.Sleep(s.cfg.ScrollSettle)); err != nil {
		return s.fault("scroll settle", "", err)
	}
	return nil
}

// Pace applies the inter-step delay policy.
func (s *browserSession) Pace(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pacing: %w", err)
	}
	return nil
}

// DetectAndRecoverErrorPage probes for a generic failure banner. When one
// is up it reloads (the fallback URL when given), re-arms the evasion
// overrides and waits a bounded time for the content marker to reappear.
// The return value reports whether recovery was attempted.
func (s *browserSession) DetectAndRecoverErrorPage(ctx context.Context, fallbackURL, contentMarker string) (bool, error) {
	var bodyText string
	if err := s.Exec(ctx, `document.body ? document.body.innerText.slice(0, 4000) : ""`, &bodyText); err != nil {
		return false, err
	}
	if !looksLikeErrorPage(bodyText) {
		return false, nil
	}

	s.logger.Info("error page detected, recovering", zap.String("fallback", fallbackURL))
	target := fallbackURL
	if target == "" {
		current, err := s.CurrentURL(ctx)
		if err != nil {
			return true, err
		}
		target = current
	}
	if err := s.Navigate(ctx, target); err != nil {
		return true, err
	}
	if contentMarker != "" {
		s.WaitVisible(ctx, contentMarker, s.cfg.NavTimeout)
	}
	return true, nil
}

// Close releases the browser and its concurrency slot. Safe to call on
// every exit path, including after a session fault.
func (s *browserSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()
	s.release()
	return nil
}

// bounded derives a run context tied to both the caller and the tab.
func (s *browserSession) bounded(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	stop := forwardCancel(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (s *browserSession) fault(format, arg string, err error) error {
	op := format
	if strings.Contains(format, "%s") {
		op = fmt.Sprintf(format, arg)
	}
	if s.ctx.Err() != nil {
		return fmt.Errorf("%s: %w: %v", op, scout.ErrSessionFault, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func looksLikeErrorPage(bodyText string) bool {
	lower := strings.ToLower(bodyText)
	for _, phrase := range errorPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// forwardCancel propagates the caller's cancellation into the chromedp run
// context without tying the tab's lifetime to one call.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
