package planner

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/clarencelabs/kingfisher/config"
	"github.com/clarencelabs/kingfisher/internal/lesson"
)

// stubLLM replays queued responses, recording each call.
type stubLLM struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (s *stubLLM) Complete(_ context.Context, _, user string, _ json.RawMessage) (string, error) {
	i := s.calls
	s.calls++
	s.prompts = append(s.prompts, user)
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return "", errors.New("no more responses")
}

func (s *stubLLM) Ping(context.Context) error { return nil }
func (s *stubLLM) Model() string              { return "test-model" }

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Timezone: "Australia/Sydney"},
		LLM: config.LLMConfig{ChatModel: "test-model", UseJSONSchema: true},
	}
}

func TestPlanAcceptsValidResponse(t *testing.T) {
	llm := &stubLLM{responses: []string{validPlanDoc}}
	adapter := NewAdapter(testConfig(), llm)

	plan := adapter.Plan(context.Background(), "How to tie a uni knot")
	if plan.Text == "" {
		t.Fatal("expected non-empty text")
	}
	if len(plan.Cards) != 1 || plan.Cards[0].Kind != lesson.KindHowTo {
		t.Fatalf("unexpected cards: %+v", plan.Cards)
	}
	if plan.Model != "test-model" {
		t.Fatalf("expected model recorded, got %q", plan.Model)
	}
	if llm.calls != 1 {
		t.Fatalf("expected exactly one call, got %d", llm.calls)
	}
}

func TestPlanStripsCodeFences(t *testing.T) {
	llm := &stubLLM{responses: []string{"```json\n" + validPlanDoc + "\n```"}}
	adapter := NewAdapter(testConfig(), llm)

	plan := adapter.Plan(context.Background(), "uni knot")
	if len(plan.Cards) != 1 {
		t.Fatalf("expected fenced JSON accepted, got %+v", plan)
	}
}

func TestPlanRepairsInvalidResponse(t *testing.T) {
	llm := &stubLLM{responses: []string{"here you go: {broken json", validPlanDoc}}
	adapter := NewAdapter(testConfig(), llm)

	plan := adapter.Plan(context.Background(), "uni knot")
	if llm.calls != 2 {
		t.Fatalf("expected one repair call, got %d calls", llm.calls)
	}
	if len(plan.Cards) != 1 {
		t.Fatalf("expected repaired plan, got %+v", plan)
	}
	repairPrompt := llm.prompts[1]
	for _, want := range []string{"SCHEMA:", "uni knot", "broken json", "Clamp enum values"} {
		if !strings.Contains(repairPrompt, want) {
			t.Fatalf("repair prompt missing %q", want)
		}
	}
}

func TestPlanFallsBackWhenRepairFails(t *testing.T) {
	llm := &stubLLM{responses: []string{"{nope", "{still nope"}}
	adapter := NewAdapter(testConfig(), llm)

	plan := adapter.Plan(context.Background(), "uni knot")
	if llm.calls != 2 {
		t.Fatalf("expected exactly one repair attempt, got %d calls", llm.calls)
	}
	if plan.Text == "" {
		t.Fatal("fallback plan must have non-empty text")
	}
	if len(plan.Cards) != 1 || plan.Cards[0].Kind != lesson.KindHowTo || len(plan.Cards[0].Steps) == 0 {
		t.Fatalf("fallback plan must have one howto card with a step, got %+v", plan.Cards)
	}
}

func TestPlanFallsBackOnTransportError(t *testing.T) {
	llm := &stubLLM{errs: []error{errors.New("connection refused")}}
	adapter := NewAdapter(testConfig(), llm)

	plan := adapter.Plan(context.Background(), "uni knot")
	if llm.calls != 1 {
		t.Fatalf("transport error must not trigger repair, got %d calls", llm.calls)
	}
	if plan.Text == "" || len(plan.Cards) == 0 {
		t.Fatalf("expected fallback plan, got %+v", plan)
	}
}

func TestNormalizeDeduplicatesToolCalls(t *testing.T) {
	doc := strings.Replace(validPlanDoc, `"tool_calls": ["search"]`,
		`"tool_calls": ["search", "weather", "search"]`, 1)
	llm := &stubLLM{responses: []string{doc}}
	adapter := NewAdapter(testConfig(), llm)

	plan := adapter.Plan(context.Background(), "uni knot")
	if len(plan.ToolCalls) != 2 || plan.ToolCalls[0] != "search" || plan.ToolCalls[1] != "weather" {
		t.Fatalf("expected ordered set [search weather], got %v", plan.ToolCalls)
	}
}
