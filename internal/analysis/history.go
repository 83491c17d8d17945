package analysis

import (
	"context"
	"time"

	"github.com/ni30kp/lula-Task/internal/cache"
	"github.com/ni30kp/lula-Task/internal/model"
)

// CachedHistory wraps a HistoryProvider with a read-through cache. The
// aggregate changes slowly, so a short TTL is enough; cache errors are
// absorbed and the store stays authoritative.
type CachedHistory struct {
	source HistoryProvider
	cache  *cache.Cache
	ttl    time.Duration
}

// NewCachedHistory wraps source. A nil cache passes reads through.
func NewCachedHistory(source HistoryProvider, c *cache.Cache, ttl time.Duration) *CachedHistory {
	return &CachedHistory{source: source, cache: c, ttl: ttl}
}

// CustomerHistory implements HistoryProvider.
func (h *CachedHistory) CustomerHistory(ctx context.Context, customerID string) (*model.CustomerHistory, error) {
	if h.cache != nil {
		var cached model.CustomerHistory
		if h.cache.GetJSON(ctx, "history", customerID, &cached) {
			return &cached, nil
		}
	}

	hist, err := h.source.CustomerHistory(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if h.cache != nil && hist != nil {
		h.cache.SetJSON(ctx, "history", customerID, hist, h.ttl)
	}
	return hist, nil
}
