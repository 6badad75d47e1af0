package images

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/clarencelabs/kingfisher/internal/lesson"
)

// Provider searches one image source. A provider returns an empty list for
// "no results" and an error only on hard failure; the chain treats both the
// same way.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, n int) ([]lesson.ImageRecord, error)
}

var httpClient = &http.Client{Timeout: 20 * time.Second}

// Unsplash searches the Unsplash photo API.
type Unsplash struct {
	APIKey  string
	BaseURL string
}

func (u Unsplash) Name() string { return "unsplash" }

func (u Unsplash) base() string {
	if u.BaseURL != "" {
		return u.BaseURL
	}
	return "https://api.unsplash.com"
}

func (u Unsplash) Search(ctx context.Context, query string, n int) ([]lesson.ImageRecord, error) {
	if u.APIKey == "" {
		return nil, nil
	}
	q := url.Values{}
	q.Set("query", query)
	q.Set("per_page", fmt.Sprint(n))
	q.Set("orientation", "landscape")

	req, err := http.NewRequestWithContext(ctx, "GET", u.base()+"/search/photos?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Client-ID "+u.APIKey)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unsplash status %d", resp.StatusCode)
	}

	var raw struct {
		Results []struct {
			URLs struct {
				Regular string `json:"regular"`
				Thumb   string `json:"thumb"`
			} `json:"urls"`
			Links struct {
				HTML string `json:"html"`
			} `json:"links"`
			AltDescription string `json:"alt_description"`
			User           struct {
				Name string `json:"name"`
			} `json:"user"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	var out []lesson.ImageRecord
	for _, it := range raw.Results {
		alt := it.AltDescription
		if alt == "" {
			alt = query
		}
		out = append(out, lesson.ImageRecord{
			URL:      it.URLs.Regular,
			Thumb:    it.URLs.Thumb,
			Alt:      alt,
			Credit:   it.User.Name,
			Href:     it.Links.HTML,
			Provider: "unsplash",
		})
	}
	return out, nil
}

// Pexels searches the Pexels photo API.
type Pexels struct {
	APIKey  string
	BaseURL string
}

func (p Pexels) Name() string { return "pexels" }

func (p Pexels) base() string {
	if p.BaseURL != "" {
		return p.BaseURL
	}
	return "https://api.pexels.com"
}

func (p Pexels) Search(ctx context.Context, query string, n int) ([]lesson.ImageRecord, error) {
	if p.APIKey == "" {
		return nil, nil
	}
	q := url.Values{}
	q.Set("query", query)
	q.Set("per_page", fmt.Sprint(n))
	q.Set("orientation", "landscape")

	req, err := http.NewRequestWithContext(ctx, "GET", p.base()+"/v1/search?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", p.APIKey)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pexels status %d", resp.StatusCode)
	}

	var raw struct {
		Photos []struct {
			Src struct {
				Large string `json:"large"`
				Tiny  string `json:"tiny"`
			} `json:"src"`
			URL          string `json:"url"`
			Alt          string `json:"alt"`
			Photographer string `json:"photographer"`
		} `json:"photos"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	var out []lesson.ImageRecord
	for _, it := range raw.Photos {
		alt := it.Alt
		if alt == "" {
			alt = query
		}
		out = append(out, lesson.ImageRecord{
			URL:      it.Src.Large,
			Thumb:    it.Src.Tiny,
			Alt:      alt,
			Credit:   it.Photographer,
			Href:     it.URL,
			Provider: "pexels",
		})
	}
	return out, nil
}

// Generate is the synthetic terminal fallback. It derives a deterministic
// placeholder reference from the query text and never fails.
type Generate struct{}

func (Generate) Name() string { return "generate" }

func (Generate) Search(_ context.Context, query string, _ int) ([]lesson.ImageRecord, error) {
	return []lesson.ImageRecord{{
		URL:      "https://dummyimage.com/1200x800/111/fff&text=" + strings.ReplaceAll(query, " ", "+"),
		Alt:      query,
		Credit:   "Generated",
		Provider: "generate",
	}}, nil
}
