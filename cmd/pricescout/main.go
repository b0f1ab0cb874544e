// Command pricescout runs the grocery price-comparison service: an HTTP
// API that schedules browser-driven extraction jobs across quick-commerce
// sites.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/pricescout/pricescout/internal/api"
	"github.com/pricescout/pricescout/internal/clock/system"
	"github.com/pricescout/pricescout/internal/config"
	"github.com/pricescout/pricescout/internal/extractor"
	"github.com/pricescout/pricescout/internal/id/uuid"
	"github.com/pricescout/pricescout/internal/logging"
	"github.com/pricescout/pricescout/internal/manager"
	"github.com/pricescout/pricescout/internal/metrics"
	pubpub "github.com/pricescout/pricescout/internal/publisher/pubsub"
	"github.com/pricescout/pricescout/internal/scout"
	"github.com/pricescout/pricescout/internal/session"
	"github.com/pricescout/pricescout/internal/sites"
	"github.com/pricescout/pricescout/internal/storage/gcs"
	"github.com/pricescout/pricescout/internal/storage/local"
	"github.com/pricescout/pricescout/internal/storage/memory"

	pubmem "github.com/pricescout/pricescout/internal/publisher/memory"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "pricescout: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := memory.NewJobStore(cfg.Store.MaxJobs)

	artifacts, err := buildArtifactStore(ctx, cfg)
	if err != nil {
		return err
	}
	publisher, err := buildPublisher(ctx, cfg)
	if err != nil {
		return err
	}

	factory, err := session.NewFactory(session.Config{
		Headless:       cfg.Browser.Headless,
		UserAgent:      cfg.Browser.UserAgent,
		NavTimeout:     cfg.NavTimeout(),
		TypingDelay:    time.Duration(cfg.Browser.TypingDelayMs) * time.Millisecond,
		StepsPerSecond: cfg.Browser.StepsPerSecond,
		ScrollSettle:   time.Duration(cfg.Browser.ScrollSettleMs) * time.Millisecond,
		MaxSessions:    cfg.Browser.MaxSessions,
	}, logger.Named("session"))
	if err != nil {
		return fmt.Errorf("build session factory: %w", err)
	}
	defer factory.Close()

	managedSites, err := buildSites(cfg, logger)
	if err != nil {
		return err
	}

	clk := system.New()
	mgr := manager.New(
		store,
		factory,
		managedSites,
		artifacts,
		publisher,
		clk,
		uuid.New(),
		manager.Config{
			MinProducts:        cfg.Extract.MinProducts,
			MaxRetryRounds:     cfg.Extract.MaxRetryRounds,
			MaxConcurrentSites: cfg.Browser.MaxSitesPerJobRun,
			JobBudget:          cfg.JobBudget(),
			ArtifactPrefix:     cfg.Export.Prefix,
			Topic:              cfg.Events.Topic,
		},
		logger.Named("manager"),
	)

	srv := api.NewServer(mgr, clk, logger.Named("api"))
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func buildArtifactStore(ctx context.Context, cfg config.Config) (scout.ArtifactStore, error) {
	switch cfg.Export.Provider {
	case "local":
		store, err := local.New(local.Config{BaseDir: cfg.Export.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("build local artifact store: %w", err)
		}
		return store, nil
	case "gcs":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("build gcs client: %w", err)
		}
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.Export.Bucket})
		if err != nil {
			return nil, fmt.Errorf("build gcs artifact store: %w", err)
		}
		return store, nil
	case "noop":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown export provider %q", cfg.Export.Provider)
	}
}

func buildPublisher(ctx context.Context, cfg config.Config) (scout.Publisher, error) {
	switch cfg.Events.Provider {
	case "memory":
		return pubmem.New(), nil
	case "pubsub":
		client, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("build pubsub client: %w", err)
		}
		pub, err := pubpub.New(client)
		if err != nil {
			return nil, fmt.Errorf("build pubsub publisher: %w", err)
		}
		return pub, nil
	case "noop":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown events provider %q", cfg.Events.Provider)
	}
}

func buildSites(cfg config.Config, logger *zap.Logger) ([]manager.Site, error) {
	managed := make([]manager.Site, 0, len(cfg.Sites))
	for _, sc := range cfg.Sites {
		adapter, err := sites.NewAdapter(sc, cfg.NavTimeout(), logger.Named("site."+sc.Name))
		if err != nil {
			return nil, fmt.Errorf("build adapter %s: %w", sc.Name, err)
		}
		sel := sc.Selectors
		managed = append(managed, manager.Site{
			Adapter: adapter,
			CardSelectors: extractor.CardSelectors{
				Name:         sel.CardName,
				Image:        sel.CardImage,
				Link:         sel.CardLink,
				Quantity:     sel.CardQuantity,
				DeliveryTime: sel.CardDeliveryTime,
				Badge:        sel.CardBadge,
				OutOfStock:   sel.OutOfStock,
			},
			CardMarker:   sel.ProductCard,
			DetailRegion: sel.DetailRegion,
			BaseURL:      sc.BaseURL,
		})
	}
	return managed, nil
}
