// Package chromedp_enricher renders marketplace item pages in headless Chrome to recover
// descriptions the search API leaves out.
package chromedp_enricher

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/user/market-intel-service/internal/entity"
	"github.com/user/market-intel-service/pkg/metrics"
	"go.uber.org/zap"
)

// ChromedpEnricher implements repository.DescriptionFetcher on a shared browser process.
// Every fetch opens its own tab.
type ChromedpEnricher struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	timeout     time.Duration
	agents      *userAgents
	logger      *zap.Logger
}

// NewChromedpEnricher starts the browser allocator. Close must be called to stop Chrome.
func NewChromedpEnricher(pageLoadTimeout time.Duration, logger *zap.Logger) *ChromedpEnricher {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &ChromedpEnricher{
		allocCtx:    allocCtx,
		allocCancel: cancel,
		timeout:     pageLoadTimeout,
		agents:      newUserAgents(nil),
		logger:      logger,
	}
}

// FetchDescription navigates to the item page and returns the description markup.
func (e *ChromedpEnricher) FetchDescription(ctx context.Context, itemURL string) (string, error) {
	taskCtx, cancel := chromedp.NewContext(e.allocCtx)
	defer cancel()

	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, e.timeout)
	defer cancelTimeout()

	// Stop the tab when the caller gives up before the page timeout.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var htmlContent string
	err := chromedp.Run(taskCtx,
		emulation.SetUserAgentOverride(e.agents.pick()),
		chromedp.Navigate(itemURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &htmlContent, chromedp.ByQuery),
	)
	if err != nil {
		metrics.EnrichmentsTotal.WithLabelValues("error").Inc()
		e.logger.Warn("failed to render item page", zap.String("url", itemURL), zap.Error(err))
		return "", fmt.Errorf("%w: render %s: %v", entity.ErrExternalService, itemURL, err)
	}

	description, err := extractDescription(htmlContent)
	if err != nil {
		metrics.EnrichmentsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: extract description from %s: %v", entity.ErrParse, itemURL, err)
	}

	if description == "" {
		metrics.EnrichmentsTotal.WithLabelValues("empty").Inc()
	} else {
		metrics.EnrichmentsTotal.WithLabelValues("success").Inc()
	}
	return description, nil
}

// Close shuts the browser down.
func (e *ChromedpEnricher) Close() {
	e.allocCancel()
}
