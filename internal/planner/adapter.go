package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/clarencelabs/kingfisher/config"
	"github.com/clarencelabs/kingfisher/internal/lesson"
	"github.com/clarencelabs/kingfisher/internal/llm"
)

const systemPrime = `You are Harwood — friendly Clarence River guide on the surface, calm polymath underneath.
Rules:
- Tools-first for time/place data; tag prompts with tool_calls: ["weather", "marine", "search"] when relevant.
- Timezone: %s; short, useful answers first.
- When the user asks "how to", prefer structured lesson cards: headings + steps.
- Mark needs_fresh_facts: true if query needs current data (weather, tides, search).
- Fetch real images first; only "generate" when none found (return a 'placeholder' url and 'provider': 'generate').
- Keep it concise; avoid purple prose.
Output must be valid JSON with keys: text (string), needs_fresh_facts (boolean), tool_calls (array), lesson_plan (array of cards {kind,title,theme,summary?,steps[]}), image_queries (array of short queries for each card/step).
Do not include code fences.`

const repairSystem = "You are a JSON repair assistant. Return ONLY valid JSON conforming to the given schema, no other text."

// Adapter turns a free-text prompt into a validated lesson.Plan. It owns the
// trust boundary: downstream code only ever sees plans that passed the strict
// schema, and Plan never fails — worst case it returns the static fallback.
type Adapter struct {
	cfg      *config.Config
	provider llm.Provider
	logger   *log.Logger
}

// NewAdapter creates a planner adapter over the given provider.
func NewAdapter(cfg *config.Config, provider llm.Provider) *Adapter {
	return &Adapter{
		cfg:      cfg,
		provider: provider,
		logger:   log.New(log.Writer(), "[PLANNER] ", log.LstdFlags),
	}
}

// Plan asks the generative planner for a lesson plan. Non-conforming output
// gets exactly one repair attempt; any remaining failure yields the static
// fallback plan. The returned plan records which model served it.
func (a *Adapter) Plan(ctx context.Context, prompt string) lesson.Plan {
	system := fmt.Sprintf(systemPrime, a.cfg.App.Timezone)

	var schema json.RawMessage
	if a.cfg.LLM.UseJSONSchema {
		schema = ResponseFormatSchema()
	}

	response, err := a.provider.Complete(ctx, system, prompt, schema)
	if err != nil {
		a.logger.Printf("planner call failed: %v", err)
		return a.fallbackPlan(prompt)
	}

	plan, err := a.parseAndValidate(response)
	if err == nil {
		return a.normalize(plan)
	}
	a.logger.Printf("plan failed schema gate, attempting repair: %v", err)

	repaired, rerr := a.repair(ctx, prompt, response)
	if rerr != nil {
		a.logger.Printf("plan repair failed: %v", rerr)
		return a.fallbackPlan(prompt)
	}
	return a.normalize(repaired)
}

// repair issues the single allowed repair request: schema, original prompt,
// invalid output, and explicit coercion rules.
func (a *Adapter) repair(ctx context.Context, prompt, invalid string) (lesson.Plan, error) {
	user := fmt.Sprintf(`Fix this output so it is strictly valid JSON conforming to the schema below.

SCHEMA:
%s

ORIGINAL USER PROMPT:
%s

INVALID OUTPUT:
%s

COERCION RULES:
- Drop unknown fields.
- Coerce scalar types (numbers to strings and vice versa as the schema requires).
- Truncate oversized content.
- Clamp enum values to the nearest valid value.

Return only the corrected JSON.`, SchemaText(), prompt, invalid)

	response, err := a.provider.Complete(ctx, repairSystem, user, nil)
	if err != nil {
		return lesson.Plan{}, fmt.Errorf("repair call: %w", err)
	}
	plan, err := a.parseAndValidate(response)
	if err != nil {
		return lesson.Plan{}, fmt.Errorf("repair output: %w", err)
	}
	return plan, nil
}

// parseAndValidate extracts the JSON object from response text, validates it
// against the strict schema, and unmarshals it into a Plan.
func (a *Adapter) parseAndValidate(response string) (lesson.Plan, error) {
	raw := extractJSON(response)
	if raw == "" {
		return lesson.Plan{}, fmt.Errorf("no JSON object found in response")
	}
	if err := ValidatePlanDocument([]byte(raw)); err != nil {
		return lesson.Plan{}, err
	}
	var plan lesson.Plan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return lesson.Plan{}, fmt.Errorf("unmarshal plan: %w", err)
	}
	return plan, nil
}

// normalize tidies an accepted plan: tool calls become an ordered set of
// known kinds, themes default to river, image queries are trimmed.
func (a *Adapter) normalize(plan lesson.Plan) lesson.Plan {
	seen := make(map[string]bool)
	var tools []string
	for _, t := range plan.ToolCalls {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] || !lesson.IsValidToolKind(t) {
			continue
		}
		seen[t] = true
		tools = append(tools, t)
	}
	plan.ToolCalls = tools

	var queries []string
	for _, q := range plan.ImageQueries {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}
	plan.ImageQueries = queries

	for i := range plan.Cards {
		if !validTheme(plan.Cards[i].Theme) {
			plan.Cards[i].Theme = lesson.ValidThemes[0]
		}
	}
	plan.Model = a.provider.Model()
	return plan
}

// fallbackPlan is the statically-defined displayable plan returned when both
// the planner call and the repair path fail.
func (a *Adapter) fallbackPlan(prompt string) lesson.Plan {
	return lesson.Plan{
		Text:            "I couldn't put together a full lesson just now, but here's somewhere to start.",
		NeedsFreshFacts: false,
		Cards: []lesson.Card{{
			Kind:  lesson.KindHowTo,
			Title: "Getting started",
			Theme: lesson.ValidThemes[0],
			Steps: []lesson.Step{{
				Title: "Try again",
				Body:  fmt.Sprintf("Ask again in a moment: %q", prompt),
			}},
		}},
		Model: a.provider.Model(),
	}
}

func validTheme(theme string) bool {
	for _, t := range lesson.ValidThemes {
		if t == theme {
			return true
		}
	}
	return false
}

// extractJSON strips code fences and returns the first balanced JSON object
// in s, or empty when none exists.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	start := -1
	depth := 0
	inString := false
	escaped := false
	for i, ch := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
			if depth == 0 && start != -1 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
