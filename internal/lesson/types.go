package lesson

// ToolKind names a data tool the planner may request. "images" is resolved
// through the image provider chain, never through the tool dispatcher.
type ToolKind string

const (
	ToolImages  ToolKind = "images"
	ToolSearch  ToolKind = "search"
	ToolWeather ToolKind = "weather"
	ToolMarine  ToolKind = "marine"
	ToolTides   ToolKind = "tides"
)

// ValidToolKinds lists every tool the planner is allowed to request.
var ValidToolKinds = []ToolKind{ToolImages, ToolSearch, ToolWeather, ToolMarine, ToolTides}

// IsValidToolKind reports whether s names a known tool.
func IsValidToolKind(s string) bool {
	for _, k := range ValidToolKinds {
		if string(k) == s {
			return true
		}
	}
	return false
}

// CardKind classifies a lesson card.
type CardKind string

const (
	KindHowTo     CardKind = "howto"
	KindConcept   CardKind = "concept"
	KindPlan      CardKind = "plan"
	KindReference CardKind = "reference"
)

// ValidCardKinds lists the accepted card kinds.
var ValidCardKinds = []CardKind{KindHowTo, KindConcept, KindPlan, KindReference}

// ValidThemes lists the accepted card colour themes. The first entry is the
// default applied during normalization.
var ValidThemes = []string{"river", "ocean", "earth", "amber", "slate", "emerald", "indigo"}

// Citation points to a web source backing card or step content.
type Citation struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet,omitempty"`
}

// ImageRecord is a resolved image reference from one of the image providers.
type ImageRecord struct {
	URL      string `json:"url"`
	Thumb    string `json:"thumb,omitempty"`
	Alt      string `json:"alt,omitempty"`
	Credit   string `json:"credit,omitempty"`
	Href     string `json:"href,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// Step is a leaf instructional unit. A step carries exactly these fields;
// anything else the planner emits is rejected at the schema gate.
type Step struct {
	Title     string       `json:"title"`
	Body      string       `json:"body"`
	Image     *ImageRecord `json:"image,omitempty"`
	Citations []Citation   `json:"citations,omitempty"`
}

// Card is a display unit of a plan.
type Card struct {
	Kind      CardKind      `json:"kind"`
	Title     string        `json:"title"`
	Theme     string        `json:"theme"`
	Summary   string        `json:"summary,omitempty"`
	Steps     []Step        `json:"steps"`
	Images    []ImageRecord `json:"images,omitempty"`
	Citations []Citation    `json:"citations,omitempty"`
}

// Plan is the validated structured output of the generative planner for one
// user prompt. It is created once per request and flows through the pipeline
// by value; no component retains it after the request completes.
type Plan struct {
	Text            string   `json:"text"`
	NeedsFreshFacts bool     `json:"needs_fresh_facts"`
	ToolCalls       []string `json:"tool_calls"`
	ImageQueries    []string `json:"image_queries"`
	Cards           []Card   `json:"lesson_plan"`

	// Model records which model/version served the plan, for observability.
	Model string `json:"-"`
}

// CloneCards deep-copies a card slice so enrichment passes can mutate freely
// without aliasing the caller's cards.
func CloneCards(cards []Card) []Card {
	if cards == nil {
		return nil
	}
	out := make([]Card, len(cards))
	for i, c := range cards {
		out[i] = c
		out[i].Steps = make([]Step, len(c.Steps))
		for j, s := range c.Steps {
			out[i].Steps[j] = s
			if s.Image != nil {
				img := *s.Image
				out[i].Steps[j].Image = &img
			}
			out[i].Steps[j].Citations = append([]Citation(nil), s.Citations...)
		}
		out[i].Images = append([]ImageRecord(nil), c.Images...)
		out[i].Citations = append([]Citation(nil), c.Citations...)
	}
	return out
}
