package lesson

import (
	"fmt"
	"strings"
)

// stepVisualWords are the prompt/title markers for tasks that benefit from a
// per-step visual breakdown (knot tying, rigging and similar hand work).
var stepVisualWords = []string{
	"knot", "knots", "rig", "rigging", "rigs", "tie", "tying",
	"setup", "assemble", "assembly", "splice", "leader", "tackle",
}

// IsStepVisual reports whether the request describes a step-visual task:
// the lowercased prompt or any card title contains one of the marker words.
func IsStepVisual(prompt string, cards []Card) bool {
	if containsStepWord(prompt) {
		return true
	}
	for _, c := range cards {
		if containsStepWord(c.Title) {
			return true
		}
	}
	return false
}

func containsStepWord(s string) bool {
	lower := strings.ToLower(s)
	for _, w := range stepVisualWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// Cardify expands multi-step howto cards into an overview card followed by
// one single-step card per step. Everything else passes through unchanged,
// keeping relative order.
func Cardify(cards []Card) []Card {
	out := make([]Card, 0, len(cards))
	for _, c := range cards {
		if c.Kind != KindHowTo || len(c.Steps) < 2 {
			out = append(out, c)
			continue
		}
		overview := c
		if !strings.Contains(strings.ToLower(c.Title), "overview") {
			overview.Title = c.Title + " — Overview"
		}
		out = append(out, overview)
		for i, s := range c.Steps {
			out = append(out, Card{
				Kind:    c.Kind,
				Title:   fmt.Sprintf("Step %d: %s", i+1, s.Title),
				Theme:   c.Theme,
				Summary: fmt.Sprintf("Detailed view of step %d", i+1),
				Steps:   []Step{s},
			})
		}
	}
	return out
}

// IsStepCard reports whether a card was produced by Cardify as a single-step
// detail card (as opposed to the overview or an untouched card).
func IsStepCard(c Card) bool {
	return strings.HasPrefix(c.Title, "Step ") && len(c.Steps) == 1 &&
		!strings.Contains(strings.ToLower(c.Title), "overview")
}

// StripStepPrefix removes a leading "Step N:" marker from a cardified title.
func StripStepPrefix(title string) string {
	rest, ok := strings.CutPrefix(title, "Step ")
	if !ok {
		return title
	}
	if _, after, found := strings.Cut(rest, ":"); found {
		return strings.TrimSpace(after)
	}
	return title
}
