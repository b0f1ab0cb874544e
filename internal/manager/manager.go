// Package manager orchestrates comparison jobs: one background task per
// job, one browser session per site, faults contained as data.
package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pricescout/pricescout/internal/extraction"
	"github.com/pricescout/pricescout/internal/extractor"
	"github.com/pricescout/pricescout/internal/metrics"
	"github.com/pricescout/pricescout/internal/scout"
)

// Config controls job execution.
type Config struct {
	// MinProducts is the per-site collection target.
	MinProducts int
	// MaxRetryRounds caps the extraction loop's reload cycles.
	MaxRetryRounds int
	// MaxConcurrentSites caps simultaneous browser sessions per job.
	MaxConcurrentSites int
	// JobBudget is the per-job wall-clock limit.
	JobBudget time.Duration
	// ArtifactPrefix namespaces exported result documents.
	ArtifactPrefix string
	// Topic receives completion events; empty disables publishing.
	Topic string
}

func (c Config) withDefaults() Config {
	if c.MinProducts <= 0 {
		c.MinProducts = 20
	}
	if c.MaxRetryRounds <= 0 {
		c.MaxRetryRounds = 3
	}
	if c.MaxConcurrentSites <= 0 {
		c.MaxConcurrentSites = 1
	}
	if c.JobBudget <= 0 {
		c.JobBudget = 8 * time.Minute
	}
	if c.ArtifactPrefix == "" {
		c.ArtifactPrefix = "results"
	}
	return c
}

// Site binds one adapter to the selector fragments the extraction loop
// needs alongside it.
type Site struct {
	Adapter       scout.SiteAdapter
	CardSelectors extractor.CardSelectors
	CardMarker    string
	DetailRegion  string
	BaseURL       string
}

// Manager owns the job store and runs extraction pipelines in the
// background. Each job's state is mutated only by its own task.
type Manager struct {
	store     scout.JobStore
	factory   scout.SessionFactory
	sites     []Site
	artifacts scout.ArtifactStore
	publisher scout.Publisher
	clock     scout.Clock
	idGen     scout.IDGenerator
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Manager.
func New(
	store scout.JobStore,
	factory scout.SessionFactory,
	sites []Site,
	artifacts scout.ArtifactStore,
	publisher scout.Publisher,
	clock scout.Clock,
	idGen scout.IDGenerator,
	cfg Config,
	logger *zap.Logger,
) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:     store,
		factory:   factory,
		sites:     sites,
		artifacts: artifacts,
		publisher: publisher,
		clock:     clock,
		idGen:     idGen,
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}
}

// Submit creates a queued job and schedules its background task. It
// returns before any browser work begins.
func (m *Manager) Submit(ctx context.Context, product, location string) (string, error) {
	jobID, err := m.idGen.NewID()
	if err != nil {
		return "", fmt.Errorf("generate job id: %w", err)
	}
	job := scout.Job{
		ID:        jobID,
		Product:   product,
		Location:  location,
		Status:    scout.JobStatusQueued,
		CreatedAt: m.clock.Now(),
	}
	if err := m.store.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	go m.run(job)
	return jobID, nil
}

// GetStatus is a read-only lookup with no side effects.
func (m *Manager) GetStatus(ctx context.Context, jobID string) (scout.Job, error) {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return scout.Job{}, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return job, nil
}

// run executes one job end to end. Site faults become failed SiteResults;
// only a fault in this orchestration path fails the whole job.
func (m *Manager) run(job scout.Job) {
	// Bookkeeping must outlive the budget, so store writes use their own
	// context.
	bgCtx := context.Background()
	budgetCtx, cancel := context.WithTimeout(bgCtx, m.cfg.JobBudget)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			m.logger.Error("orchestration panic",
				zap.String("job_id", job.ID), zap.Any("panic", rec))
			m.finish(bgCtx, job, scout.JobStatusFailed,
				fmt.Sprintf("orchestration fault: %v", rec), nil)
		}
	}()

	if err := m.store.MarkProcessing(bgCtx, job.ID, m.clock.Now()); err != nil {
		m.logger.Error("mark processing failed", zap.String("job_id", job.ID), zap.Error(err))
		return
	}

	results := m.runSites(budgetCtx, job)
	m.finish(bgCtx, job, scout.JobStatusCompleted, "", results)
}

func (m *Manager) finish(ctx context.Context, job scout.Job, status scout.JobStatus, errText string, results []scout.SiteResult) {
	now := m.clock.Now()
	var err error
	if status == scout.JobStatusFailed {
		err = m.store.Fail(ctx, job.ID, errText, results, now)
	} else {
		err = m.store.Complete(ctx, job.ID, results, now)
	}
	if err != nil {
		m.logger.Error("finalize job failed", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	metrics.JobFinished(string(status))
	m.publishCompletion(ctx, job, status, results)
}

func (m *Manager) publishCompletion(ctx context.Context, job scout.Job, status scout.JobStatus, results []scout.SiteResult) {
	if m.publisher == nil || m.cfg.Topic == "" {
		return
	}
	counts := make(map[string]int, len(results))
	for _, r := range results {
		counts[r.Site] = r.ProductCount
	}
	event := scout.CompletionEvent{
		JobID:     job.ID,
		Product:   job.Product,
		Location:  job.Location,
		Status:    status,
		SiteCount: counts,
		Timestamp: m.clock.Now(),
	}
	if _, err := m.publisher.Publish(ctx, m.cfg.Topic, event); err != nil {
		m.logger.Warn("completion event publish failed",
			zap.String("job_id", job.ID), zap.Error(err))
	}
}

// runSites fans the job across the configured sites with a bounded number
// of simultaneous sessions. Result order follows configuration order.
func (m *Manager) runSites(ctx context.Context, job scout.Job) []scout.SiteResult {
	results := make([]scout.SiteResult, len(m.sites))
	sem := make(chan struct{}, m.cfg.MaxConcurrentSites)
	var wg sync.WaitGroup

	for i, site := range m.sites {
		wg.Add(1)
		go func(idx int, site Site) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[idx] = m.runSite(ctx, job, site)
		}(i, site)
	}
	wg.Wait()
	return results
}

// runSite drives one site's extraction inside a fully contained scope:
// panics and errors end up on the SiteResult, never above it, and the
// session is released on every path.
func (m *Manager) runSite(ctx context.Context, job scout.Job, site Site) (result scout.SiteResult) {
	name := site.Adapter.Name()
	log := m.logger.Named("site").With(zap.String("job_id", job.ID), zap.String("site", name))
	start := m.clock.Now()

	finalize := func(res *scout.SiteResult) {
		res.Site = name
		res.DurationMs = m.clock.Now().Sub(start).Milliseconds()
		res.ProductCount = len(res.Products)
		metrics.SiteResultRecorded(name, res.Success, m.clock.Now().Sub(start))
		metrics.ProductsExtracted(name, res.ProductCount)
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("site extraction panic", zap.Any("panic", rec))
			result = scout.SiteResult{ErrorText: fmt.Sprintf("panic: %v", rec)}
			finalize(&result)
		}
	}()

	sess, err := m.factory.Launch(ctx)
	if err != nil {
		log.Error("session launch failed", zap.Error(err))
		result = scout.SiteResult{ErrorText: err.Error()}
		finalize(&result)
		return result
	}
	defer func() {
		if closeErr := sess.Close(); closeErr != nil {
			log.Warn("session close failed", zap.Error(closeErr))
		}
	}()

	if err := site.Adapter.SelectLocation(ctx, sess, job.Location); err != nil {
		log.Warn("location selection failed", zap.Error(err))
		result = scout.SiteResult{ErrorText: err.Error()}
		finalize(&result)
		return result
	}

	err = site.Adapter.NavigateToSearch(ctx, sess, job.Product)
	if errors.Is(err, scout.ErrNavigationTimeout) {
		// One recovery pass through the error-page path before giving up.
		fallback := site.Adapter.SearchURL(job.Product)
		if _, recErr := sess.DetectAndRecoverErrorPage(ctx, fallback, site.CardMarker); recErr != nil {
			log.Debug("error-page recovery failed", zap.Error(recErr))
		}
		err = site.Adapter.NavigateToSearch(ctx, sess, job.Product)
	}
	if err != nil {
		log.Warn("search navigation failed", zap.Error(err))
		result = scout.SiteResult{ErrorText: err.Error()}
		finalize(&result)
		return result
	}

	loop := extraction.New(
		site.Adapter,
		sess,
		site.CardSelectors,
		site.CardMarker,
		site.DetailRegion,
		site.BaseURL,
		extraction.Config{MinProducts: m.cfg.MinProducts, MaxRetryRounds: m.cfg.MaxRetryRounds},
		log,
	)
	products, err := loop.Run(ctx, job.Product)
	if err != nil {
		reason := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "job budget exceeded"
		}
		log.Warn("extraction stopped", zap.Error(err))
		result = scout.SiteResult{Products: products, ErrorText: reason}
		finalize(&result)
		return result
	}

	// Short of target is still a success; the count speaks for itself.
	result = scout.SiteResult{Success: true, Products: products}
	finalize(&result)
	m.exportArtifact(ctx, job, name, products, log)
	return result
}

// exportArtifact writes the per-site JSON document for downstream tooling.
// A failed export is logged, not fatal.
func (m *Manager) exportArtifact(ctx context.Context, job scout.Job, site string, products []scout.Product, log *zap.Logger) {
	if m.artifacts == nil {
		return
	}
	artifact := scout.Artifact{
		Website:       site,
		Location:      job.Location,
		Product:       job.Product,
		Timestamp:     m.clock.Now(),
		TotalProducts: len(products),
		Products:      products,
	}
	path := fmt.Sprintf("%s/%s/%s.json", strings.Trim(m.cfg.ArtifactPrefix, "/"), job.ID, site)
	uri, err := m.artifacts.PutArtifact(ctx, path, artifact)
	if err != nil {
		log.Warn("artifact export failed", zap.Error(err))
		return
	}
	log.Info("artifact exported", zap.String("uri", uri))
}
