// Package extraction drives an adapter/extractor pair until enough
// products have been collected for one site.
package extraction

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pricescout/pricescout/internal/extractor"
	"github.com/pricescout/pricescout/internal/scout"
)

type state int

const (
	stateScrolling state = iota
	stateScanningCards
	stateVisitingCard
	stateCollecting
	stateDone
	stateRetrying
)

// Config bounds one extraction run.
type Config struct {
	// MinProducts is the per-site collection target.
	MinProducts int
	// MaxRetryRounds caps reload/rescroll cycles after the rendered cards
	// are exhausted short of target.
	MaxRetryRounds int
}

// Loop walks the search results of one site, visiting each card's detail
// view for prices. Card text is too unreliable to price from directly.
type Loop struct {
	adapter       scout.SiteAdapter
	session       scout.Session
	cardSelectors extractor.CardSelectors
	cardMarker    string
	detailRegion  string
	baseURL       string
	cfg           Config
	logger        *zap.Logger
}

// New builds a Loop bound to one adapter and one live session. cardMarker
// is the product-card selector used as the recovery probe after reloads.
func New(
	adapter scout.SiteAdapter,
	session scout.Session,
	cardSelectors extractor.CardSelectors,
	cardMarker string,
	detailRegion string,
	baseURL string,
	cfg Config,
	logger *zap.Logger,
) *Loop {
	if cfg.MinProducts <= 0 {
		cfg.MinProducts = 20
	}
	if cfg.MaxRetryRounds <= 0 {
		cfg.MaxRetryRounds = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		adapter:       adapter,
		session:       session,
		cardSelectors: cardSelectors,
		cardMarker:    cardMarker,
		detailRegion:  detailRegion,
		baseURL:       baseURL,
		cfg:           cfg,
		logger:        logger,
	}
}

// Run collects products until the target is reached or the retry budget is
// spent. Coming back short of target is a reported outcome, not an error.
func (l *Loop) Run(ctx context.Context, query string) ([]scout.Product, error) {
	resultsURL := l.adapter.SearchURL(query)
	products := make([]scout.Product, 0, l.cfg.MinProducts)
	round := 0
	current := stateScrolling

	for current != stateDone {
		if err := ctx.Err(); err != nil {
			return products, fmt.Errorf("extraction interrupted: %w", err)
		}

		switch current {
		case stateScrolling:
			if err := l.session.ScrollToBottom(ctx); err != nil {
				l.logger.Debug("scroll failed", zap.String("site", l.adapter.Name()), zap.Error(err))
			}
			current = stateScanningCards

		case stateScanningCards:
			cards, err := l.adapter.ListProductCards(ctx, l.session)
			if err != nil {
				l.logger.Warn("card scan failed",
					zap.String("site", l.adapter.Name()), zap.Error(err))
				current = stateRetrying
				continue
			}
			current = l.visitCards(ctx, cards, resultsURL, &products)

		case stateRetrying:
			round++
			if round > l.cfg.MaxRetryRounds {
				current = stateDone
				continue
			}
			l.logger.Info("reloading results for another round",
				zap.String("site", l.adapter.Name()),
				zap.Int("round", round),
				zap.Int("collected", len(products)),
			)
			if err := l.session.Navigate(ctx, resultsURL); err != nil {
				l.logger.Warn("results reload failed",
					zap.String("site", l.adapter.Name()), zap.Error(err))
				current = stateDone
				continue
			}
			if _, err := l.session.DetectAndRecoverErrorPage(ctx, resultsURL, l.cardMarker); err != nil {
				l.logger.Debug("error-page probe failed",
					zap.String("site", l.adapter.Name()), zap.Error(err))
			}
			current = stateScrolling
		}
	}

	return products, nil
}

// visitCards walks the scanned cards in listing order. Per-card failures
// are logged and skipped; only the collected count decides what happens
// next.
func (l *Loop) visitCards(
	ctx context.Context,
	cards []scout.Card,
	resultsURL string,
	products *[]scout.Product,
) state {
	for _, card := range cards {
		if ctx.Err() != nil {
			return stateDone
		}
		if len(*products) >= l.cfg.MinProducts {
			return stateDone
		}

		product, ok := l.visitCard(ctx, card, resultsURL)
		if !ok {
			continue
		}
		*products = append(*products, product)
	}

	if len(*products) >= l.cfg.MinProducts {
		return stateDone
	}
	return stateRetrying
}

// visitCard runs the visiting_card → collecting leg for a single card:
// parse the summary, open the detail view, extract prices against the
// fully rendered markup, then return to the results page.
func (l *Loop) visitCard(ctx context.Context, card scout.Card, resultsURL string) (scout.Product, bool) {
	log := l.logger.With(zap.String("site", l.adapter.Name()), zap.Int("card", card.Index))

	summary, err := extractor.ParseCardSummary(l.baseURL, l.cardSelectors, card.HTML)
	if err != nil {
		log.Debug("card summary rejected", zap.Error(err))
		return scout.Product{}, false
	}

	if err := l.adapter.OpenCard(ctx, l.session, card, summary.ProductURL); err != nil {
		log.Debug("card open failed", zap.Error(err))
		l.returnToResults(ctx, resultsURL, log)
		return scout.Product{}, false
	}

	product := scout.Product{
		Name:         summary.Name,
		ImageURL:     summary.ImageURL,
		ProductURL:   summary.ProductURL,
		Quantity:     summary.Quantity,
		DeliveryTime: summary.DeliveryTime,
		Badges:       summary.Badges,
		IsOutOfStock: summary.IsOutOfStock,
	}

	detailHTML, err := l.adapter.DetailHTML(ctx, l.session)
	if err != nil {
		log.Debug("detail snapshot failed", zap.Error(err))
	} else {
		price, mrp, err := extractor.ExtractPrices(detailHTML, l.detailRegion)
		if err != nil {
			log.Debug("price extraction failed", zap.Error(err))
		}
		// A nil price is a kept outcome: unlisted price or out of stock.
		product.Price = price
		product.MRP = mrp
	}
	product.ApplyDiscount()

	l.returnToResults(ctx, resultsURL, log)
	return product, true
}

func (l *Loop) returnToResults(ctx context.Context, resultsURL string, log *zap.Logger) {
	if err := l.session.Navigate(ctx, resultsURL); err != nil {
		log.Warn("return to results failed", zap.Error(err))
	}
}
