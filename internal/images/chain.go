package images

import (
	"context"
	"log"
	"strings"

	"github.com/clarencelabs/kingfisher/internal/cache"
	"github.com/clarencelabs/kingfisher/internal/lesson"
	"github.com/clarencelabs/kingfisher/internal/telemetry"
)

// Chain resolves image queries across providers in priority order. The first
// provider returning a non-empty list wins; a failing provider never aborts
// the chain. Results, including empty ones, are cached for the configured TTL
// so a provider with nothing for a query is not hammered within the window.
type Chain struct {
	providers []Provider
	cache     cache.Cache[[]lesson.ImageRecord]
	perQuery  int
	logger    *log.Logger
	keyPrefix string
}

// NewChain builds a resolver over providers in the given order.
func NewChain(providers []Provider, c cache.Cache[[]lesson.ImageRecord], perQuery int) *Chain {
	if perQuery <= 0 {
		perQuery = 3
	}
	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name()
	}
	return &Chain{
		providers: providers,
		cache:     c,
		perQuery:  perQuery,
		logger:    log.New(log.Writer(), "[IMAGES] ", log.LstdFlags),
		keyPrefix: "images:" + strings.Join(names, ",") + ":",
	}
}

func (c *Chain) cacheKey(query string) string {
	return c.keyPrefix + strings.ToLower(strings.TrimSpace(query))
}

// Resolve returns images for one query, consulting the cache first.
func (c *Chain) Resolve(ctx context.Context, query string) []lesson.ImageRecord {
	key := c.cacheKey(query)
	if cached, ok := c.cache.Get(ctx, key); ok {
		telemetry.CacheHitsTotal.WithLabelValues("images").Inc()
		return cached
	}
	telemetry.CacheMissesTotal.WithLabelValues("images").Inc()

	var images []lesson.ImageRecord
	for _, p := range c.providers {
		result, err := p.Search(ctx, query, c.perQuery)
		if err != nil {
			c.logger.Printf("provider %s failed for %q: %v", p.Name(), query, err)
			continue
		}
		if len(result) > 0 {
			images = result
			telemetry.ImageProviderResults.WithLabelValues(p.Name()).Inc()
			break
		}
	}

	c.cache.Set(ctx, key, images)
	return images
}

// ResolveAll resolves a batch of queries, keyed by query text.
func (c *Chain) ResolveAll(ctx context.Context, queries []string) map[string][]lesson.ImageRecord {
	out := make(map[string][]lesson.ImageRecord, len(queries))
	for _, q := range queries {
		out[q] = c.Resolve(ctx, q)
	}
	return out
}
