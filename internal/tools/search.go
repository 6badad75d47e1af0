package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/clarencelabs/kingfisher/internal/cache"
	"github.com/clarencelabs/kingfisher/internal/helpers"
	"github.com/clarencelabs/kingfisher/internal/telemetry"
)

// Search queries the DuckDuckGo Instant Answer API and returns results with
// citations. Responses are cached in the shared TTL cache; an upstream
// failure degrades to an empty but well-formed payload rather than an error,
// since a missing abstract is indistinguishable from "no results".
type Search struct {
	BaseURL string
	K       int
	Cache   cache.Cache[map[string]interface{}]
}

func (Search) Name() string { return NameSearch }

func (s Search) base() string {
	if s.BaseURL != "" {
		return s.BaseURL
	}
	return "https://api.duckduckgo.com"
}

func (s Search) k() int {
	if s.K > 0 {
		return s.K
	}
	return 3
}

func (s Search) Call(ctx context.Context, args Args) (map[string]interface{}, error) {
	query := args.Query
	if query == "" {
		query = args.Text
	}
	if len(query) > 100 {
		query = query[:100]
	}

	cacheKey := "search:" + query
	if s.Cache != nil {
		if cached, ok := s.Cache.Get(ctx, cacheKey); ok {
			telemetry.CacheHitsTotal.WithLabelValues("search").Inc()
			return cached, nil
		}
		telemetry.CacheMissesTotal.WithLabelValues("search").Inc()
	}

	payload := s.search(ctx, query)
	if s.Cache != nil {
		s.Cache.Set(ctx, cacheKey, payload)
	}
	return payload, nil
}

func (s Search) search(ctx context.Context, query string) map[string]interface{} {
	empty := map[string]interface{}{
		"results":   []interface{}{},
		"citations": []interface{}{},
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("no_html", "1")

	req, err := http.NewRequestWithContext(ctx, "GET", s.base()+"/?"+q.Encode(), nil)
	if err != nil {
		return empty
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return empty
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return empty
	}

	var raw struct {
		Heading       string `json:"Heading"`
		Abstract      string `json:"Abstract"`
		AbstractURL   string `json:"AbstractURL"`
		RelatedTopics []struct {
			Text     string `json:"Text"`
			FirstURL string `json:"FirstURL"`
		} `json:"RelatedTopics"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return empty
	}

	var results []interface{}
	var citations []interface{}

	if abstract := helpers.PlainText(raw.Abstract); abstract != "" {
		heading := orDefault(helpers.PlainText(raw.Heading), "Result")
		results = append(results, map[string]interface{}{
			"title":   heading,
			"url":     raw.AbstractURL,
			"snippet": helpers.TruncateSnippet(abstract, 180),
		})
		citations = append(citations, map[string]interface{}{
			"url":   raw.AbstractURL,
			"title": heading,
		})
	}
	for _, topic := range raw.RelatedTopics {
		if len(results) >= s.k() {
			break
		}
		text := helpers.PlainText(topic.Text)
		if text == "" {
			continue
		}
		title := helpers.TruncateSnippet(text, 100)
		results = append(results, map[string]interface{}{
			"title":   title,
			"url":     topic.FirstURL,
			"snippet": helpers.TruncateSnippet(text, 180),
		})
		if topic.FirstURL != "" {
			citations = append(citations, map[string]interface{}{
				"url":   topic.FirstURL,
				"title": title,
			})
		}
	}

	if results == nil {
		return empty
	}
	return map[string]interface{}{
		"results":   results,
		"citations": citations,
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
