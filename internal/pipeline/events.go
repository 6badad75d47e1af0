package pipeline

import (
	"encoding/json"

	"github.com/clarencelabs/kingfisher/internal/lesson"
)

// Event is one progressive update emitted while answering a prompt. The
// concrete types mirror the wire shapes the stream endpoint sends.
type Event interface {
	Type() string
}

// StatusEvent marks a stage transition ("planning", "fetching_data").
type StatusEvent struct {
	Stage string `json:"stage"`
}

func (StatusEvent) Type() string { return "status" }

// CardsEvent carries the pre-enrichment cards as soon as the plan is
// accepted, so clients can render before images and tools resolve.
type CardsEvent struct {
	Cards []lesson.Card `json:"cards"`
	Text  string        `json:"text"`
}

func (CardsEvent) Type() string { return "cards" }

// ToolEvent reports one finished tool call.
type ToolEvent struct {
	Name string `json:"name"`
	OK   bool   `json:"ok"`
}

func (ToolEvent) Type() string { return "tool" }

// ResultEvent is the terminal event of a successful run.
type ResultEvent struct {
	Payload Response `json:"payload"`
}

func (ResultEvent) Type() string { return "result" }

// ErrorEvent is the terminal event of a failed run.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (ErrorEvent) Type() string { return "error" }

// Response is the final answer for one prompt.
type Response struct {
	Text            string        `json:"text"`
	LessonCards     []lesson.Card `json:"lesson_cards"`
	ToolCalls       []string      `json:"tool_calls"`
	Model           string        `json:"model,omitempty"`
	TookMS          int64         `json:"took_ms"`
	NeedsFreshFacts bool          `json:"needs_fresh_facts"`
}

// MarshalEvent renders an event as its wire JSON object with the
// discriminating "type" field injected.
func MarshalEvent(ev Event) ([]byte, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	t, err := json.Marshal(ev.Type())
	if err != nil {
		return nil, err
	}
	m["type"] = t
	return json.Marshal(m)
}
