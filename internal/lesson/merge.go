package lesson

import (
	"fmt"
	"strings"

	"github.com/clarencelabs/kingfisher/internal/helpers"
	"github.com/clarencelabs/kingfisher/internal/tools"
)

// MergeToolResults folds successful tool payloads into the cards: search
// citations onto cards that lack them, and current weather/marine conditions
// appended to the first step of plan cards. The input slice is deep-copied
// before any mutation, so merging the same cards twice never doubles
// appended text.
func MergeToolResults(cards []Card, results map[string]tools.Result, prompt string) []Card {
	out := CloneCards(cards)

	citations := searchCitations(results)
	enrichments := conditionLines(results)

	for i := range out {
		card := &out[i]
		if len(citations) > 0 && len(card.Citations) == 0 {
			n := min(2, len(citations))
			card.Citations = append([]Citation(nil), citations[:n]...)
		}
		if card.Kind == KindPlan && len(enrichments) > 0 && len(card.Steps) > 0 {
			first := &card.Steps[0]
			first.Body = first.Body + "\n\n" + strings.Join(enrichments, " | ")
			if len(citations) > 0 && len(first.Citations) == 0 {
				first.Citations = []Citation{citations[0]}
			}
		}
	}
	return out
}

func searchCitations(results map[string]tools.Result) []Citation {
	res, ok := results[tools.NameSearch]
	if !ok || !res.OK() {
		return nil
	}
	raw, ok := res.Data["citations"]
	if !ok {
		return nil
	}
	var out []Citation
	switch vs := raw.(type) {
	case []Citation:
		out = append(out, vs...)
	case []interface{}:
		for _, v := range vs {
			m, ok := v.(map[string]interface{})
			if !ok {
				continue
			}
			c := Citation{
				URL:     asString(m["url"]),
				Title:   asString(m["title"]),
				Snippet: asString(m["snippet"]),
			}
			if c.URL != "" || c.Title != "" {
				out = append(out, c)
			}
		}
	}
	return dedupeCitations(out)
}

// dedupeCitations drops repeated sources, comparing canonicalised URLs so
// tracking parameters and casing differences don't produce duplicates.
func dedupeCitations(cits []Citation) []Citation {
	if len(cits) < 2 {
		return cits
	}
	seen := make(map[string]struct{}, len(cits))
	out := cits[:0]
	for _, c := range cits {
		key := c.URL
		if canon, err := helpers.CanonicalURL(c.URL); err == nil {
			key = canon
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

func conditionLines(results map[string]tools.Result) []string {
	var lines []string
	if cur := currentBlock(results, tools.NameWeather); cur != nil {
		lines = append(lines, fmt.Sprintf("Current conditions: %v°C, wind %v km/h",
			cur["temp"], cur["wind_speed"]))
	}
	if cur := currentBlock(results, tools.NameMarine); cur != nil {
		lines = append(lines, fmt.Sprintf("Marine: waves %vm, period %vs",
			cur["wave_height"], cur["wave_period"]))
	}
	return lines
}

func currentBlock(results map[string]tools.Result, name string) map[string]interface{} {
	res, ok := results[name]
	if !ok || !res.OK() {
		return nil
	}
	cur, ok := res.Data["current"].(map[string]interface{})
	if !ok || len(cur) == 0 {
		return nil
	}
	return cur
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}
