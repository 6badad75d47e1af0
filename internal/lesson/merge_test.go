package lesson

import (
	"strings"
	"testing"

	"github.com/clarencelabs/kingfisher/internal/tools"
)

func searchResult() tools.Result {
	return tools.Ok(map[string]interface{}{
		"results": []interface{}{},
		"citations": []interface{}{
			map[string]interface{}{"url": "https://a.example", "title": "First"},
			map[string]interface{}{"url": "https://b.example", "title": "Second"},
			map[string]interface{}{"url": "https://c.example", "title": "Third"},
		},
	})
}

func weatherResult() tools.Result {
	return tools.Ok(map[string]interface{}{
		"current": map[string]interface{}{
			"temp": 22.5, "wind_speed": 14.0, "weather_code": 2.0,
		},
	})
}

func marineResult() tools.Result {
	return tools.Ok(map[string]interface{}{
		"current": map[string]interface{}{
			"wave_height": 1.2, "wave_direction": 120.0, "wave_period": 9.0,
		},
	})
}

func TestMergeAttachesCitationsToBareCards(t *testing.T) {
	cards := []Card{
		{Kind: KindConcept, Title: "A", Theme: "river"},
		{Kind: KindConcept, Title: "B", Theme: "river", Citations: []Citation{{URL: "https://keep.example", Title: "Keep"}}},
	}
	out := MergeToolResults(cards, map[string]tools.Result{tools.NameSearch: searchResult()}, "prompt")

	if len(out[0].Citations) != 2 {
		t.Fatalf("bare card should get top 2 citations, got %d", len(out[0].Citations))
	}
	if out[0].Citations[0].URL != "https://a.example" {
		t.Errorf("citation order not preserved: %q", out[0].Citations[0].URL)
	}
	if len(out[1].Citations) != 1 || out[1].Citations[0].URL != "https://keep.example" {
		t.Errorf("existing citations must not be replaced: %+v", out[1].Citations)
	}
}

func TestMergeEnrichesFirstStepOfPlanCards(t *testing.T) {
	cards := []Card{{
		Kind:  KindPlan,
		Title: "Morning session",
		Theme: "river",
		Steps: []Step{
			{Title: "Arrive early", Body: "Fish the top of the run-in tide."},
			{Title: "Move upstream", Body: "Follow the bait."},
		},
	}}
	results := map[string]tools.Result{
		tools.NameSearch:  searchResult(),
		tools.NameWeather: weatherResult(),
		tools.NameMarine:  marineResult(),
	}
	out := MergeToolResults(cards, results, "plan a session")

	body := out[0].Steps[0].Body
	if !strings.Contains(body, "Current conditions: 22.5°C, wind 14 km/h") {
		t.Errorf("weather line missing from %q", body)
	}
	if !strings.Contains(body, "Marine: waves 1.2m, period 9s") {
		t.Errorf("marine line missing from %q", body)
	}
	if !strings.Contains(body, " | ") {
		t.Errorf("condition lines should be pipe-joined: %q", body)
	}
	if out[0].Steps[1].Body != "Follow the bait." {
		t.Errorf("second step must be untouched: %q", out[0].Steps[1].Body)
	}
	if len(out[0].Steps[0].Citations) != 1 {
		t.Errorf("first step of plan card gets one citation, got %d", len(out[0].Steps[0].Citations))
	}
}

func TestMergeSkipsFailedTools(t *testing.T) {
	cards := []Card{{Kind: KindPlan, Title: "P", Theme: "river", Steps: []Step{{Title: "s", Body: "b"}}}}
	results := map[string]tools.Result{
		tools.NameSearch:  tools.Errf("search timed out"),
		tools.NameWeather: tools.Errf("weather API returned 500"),
	}
	out := MergeToolResults(cards, results, "prompt")

	if len(out[0].Citations) != 0 {
		t.Errorf("no citations expected from a failed search")
	}
	if out[0].Steps[0].Body != "b" {
		t.Errorf("no enrichment expected: %q", out[0].Steps[0].Body)
	}
}

func TestMergeNeverMutatesInput(t *testing.T) {
	cards := []Card{{
		Kind:  KindPlan,
		Title: "P",
		Theme: "river",
		Steps: []Step{{Title: "s", Body: "original"}},
	}}
	results := map[string]tools.Result{
		tools.NameSearch:  searchResult(),
		tools.NameWeather: weatherResult(),
	}

	first := MergeToolResults(cards, results, "prompt")
	second := MergeToolResults(cards, results, "prompt")

	if cards[0].Steps[0].Body != "original" {
		t.Fatalf("input cards mutated: %q", cards[0].Steps[0].Body)
	}
	if first[0].Steps[0].Body != second[0].Steps[0].Body {
		t.Errorf("repeat merge over the same input must be identical:\n%q\n%q",
			first[0].Steps[0].Body, second[0].Steps[0].Body)
	}
	if strings.Count(second[0].Steps[0].Body, "Current conditions") != 1 {
		t.Errorf("enrichment appended more than once: %q", second[0].Steps[0].Body)
	}
}

func TestMergeHandlesTypedCitations(t *testing.T) {
	// Payloads that stayed in process memory may carry typed citations
	// instead of the JSON round-trip shape.
	res := tools.Ok(map[string]interface{}{
		"citations": []Citation{{URL: "https://typed.example", Title: "Typed"}},
	})
	cards := []Card{{Kind: KindConcept, Title: "A", Theme: "river"}}
	out := MergeToolResults(cards, map[string]tools.Result{tools.NameSearch: res}, "p")
	if len(out[0].Citations) != 1 || out[0].Citations[0].Title != "Typed" {
		t.Fatalf("typed citations not carried over: %+v", out[0].Citations)
	}
}

func TestMergeDedupesCitationsByCanonicalURL(t *testing.T) {
	res := tools.Ok(map[string]interface{}{
		"citations": []interface{}{
			map[string]interface{}{"url": "https://example.com/knots", "title": "Knots"},
			map[string]interface{}{"url": "https://Example.com/knots?utm_source=ddg", "title": "Knots again"},
			map[string]interface{}{"url": "https://other.example/rigs", "title": "Rigs"},
		},
	})
	cards := []Card{{Kind: KindConcept, Title: "A", Theme: "river"}}
	out := MergeToolResults(cards, map[string]tools.Result{tools.NameSearch: res}, "p")

	if len(out[0].Citations) != 2 {
		t.Fatalf("expected duplicate source collapsed, got %+v", out[0].Citations)
	}
	if out[0].Citations[0].Title != "Knots" || out[0].Citations[1].Title != "Rigs" {
		t.Errorf("first occurrence should win: %+v", out[0].Citations)
	}
}

func TestMergeWithNoResults(t *testing.T) {
	cards := []Card{{Kind: KindHowTo, Title: "A", Theme: "river", Steps: []Step{{Title: "s", Body: "b"}}}}
	out := MergeToolResults(cards, nil, "prompt")
	if len(out) != 1 || out[0].Steps[0].Body != "b" {
		t.Fatalf("empty results should leave cards as-is: %+v", out)
	}
}
