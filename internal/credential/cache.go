// Package credential keeps the marketplace application token fresh.
package credential

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/user/market-intel-service/internal/entity"
	"github.com/user/market-intel-service/pkg/metrics"
)

// DefaultMargin is how long before expiry a token stops being handed out.
const DefaultMargin = 60 * time.Second

// Exchanger performs a client-credentials grant against the identity endpoint.
type Exchanger interface {
	Exchange(ctx context.Context) (*entity.Token, error)
}

// Cache holds one process-wide token. Readers never block while a valid token is cached;
// refreshes are serialized so concurrent callers trigger a single exchange.
type Cache struct {
	exchanger Exchanger
	margin    time.Duration
	now       func() time.Time
	logger    *zap.Logger

	current atomic.Pointer[entity.Token]
	mu      sync.Mutex
}

func NewCache(exchanger Exchanger, logger *zap.Logger) *Cache {
	return &Cache{
		exchanger: exchanger,
		margin:    DefaultMargin,
		now:       time.Now,
		logger:    logger,
	}
}

// Token returns a token valid for longer than the safety margin, exchanging credentials
// when needed.
func (c *Cache) Token(ctx context.Context) (string, error) {
	if tok := c.valid(); tok != nil {
		return tok.Value, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have refreshed while we waited.
	if tok := c.valid(); tok != nil {
		return tok.Value, nil
	}

	tok, err := c.exchanger.Exchange(ctx)
	if err != nil {
		metrics.TokenExchangesTotal.WithLabelValues("failure").Inc()
		c.logger.Error("credential exchange failed", zap.Error(err))
		return "", fmt.Errorf("obtain marketplace token: %w", err)
	}
	if tok == nil || tok.Value == "" {
		metrics.TokenExchangesTotal.WithLabelValues("failure").Inc()
		return "", fmt.Errorf("obtain marketplace token: %w: empty token", entity.ErrUnauthorized)
	}
	metrics.TokenExchangesTotal.WithLabelValues("success").Inc()
	c.current.Store(tok)
	c.logger.Info("marketplace token refreshed", zap.Time("expiry", tok.Expiry))
	return tok.Value, nil
}

// Invalidate drops the cached token so the next call exchanges again.
func (c *Cache) Invalidate() {
	c.current.Store(nil)
}

func (c *Cache) valid() *entity.Token {
	tok := c.current.Load()
	if tok == nil || tok.Expiry.Sub(c.now()) <= c.margin {
		return nil
	}
	return tok
}
