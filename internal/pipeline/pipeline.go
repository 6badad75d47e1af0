package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/clarencelabs/kingfisher/internal/images"
	"github.com/clarencelabs/kingfisher/internal/lesson"
	"github.com/clarencelabs/kingfisher/internal/llm"
	"github.com/clarencelabs/kingfisher/internal/tools"
)

// stepImageConcurrency bounds parallel per-step image lookups.
const stepImageConcurrency = 6

// Planner produces a validated plan for a prompt. It never fails; schema
// repair and fallback happen behind this interface.
type Planner interface {
	Plan(ctx context.Context, prompt string) lesson.Plan
}

// ImageResolver resolves image queries through the provider chain.
type ImageResolver interface {
	ResolveAll(ctx context.Context, queries []string) map[string][]lesson.ImageRecord
}

// ToolRunner dispatches the plan's tool calls concurrently.
type ToolRunner interface {
	Dispatch(ctx context.Context, names []string, args tools.Args) <-chan tools.Completion
}

// Pipeline coordinates the two-pass answer flow: plan, transform, enrich
// with images and tool data, merge.
type Pipeline struct {
	planner    Planner
	images     ImageResolver
	stepSearch images.Provider
	runner     ToolRunner
	text       llm.Provider

	place        string
	forecastDays int
	logger       *log.Logger
}

// New assembles a pipeline. stepSearch and text may be nil, disabling
// per-step images and the closing prose pass respectively.
func New(planner Planner, resolver ImageResolver, stepSearch images.Provider, runner ToolRunner, text llm.Provider, place string, forecastDays int) *Pipeline {
	return &Pipeline{
		planner:    planner,
		images:     resolver,
		stepSearch: stepSearch,
		runner:     runner,
		text:       text,

		place:        place,
		forecastDays: forecastDays,
		logger:       log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags),
	}
}

// Stream answers a prompt progressively. The returned channel always starts
// with a planning status event, ends with exactly one result or error event,
// and is closed afterwards. Cancelling ctx abandons remaining stages.
func (p *Pipeline) Stream(ctx context.Context, prompt string) <-chan Event {
	ch := make(chan Event, 8)
	go func() {
		defer close(ch)
		defer func() {
			if r := recover(); r != nil {
				p.logger.Printf("panic answering prompt: %v", r)
				emit(ctx, ch, ErrorEvent{Message: fmt.Sprintf("internal error: %v", r)})
			}
		}()

		t0 := time.Now()
		if !emit(ctx, ch, StatusEvent{Stage: "planning"}) {
			return
		}

		plan := p.planner.Plan(ctx, prompt)
		if ctx.Err() != nil {
			return
		}

		cards := plan.Cards
		if lesson.IsStepVisual(prompt, cards) {
			cards = lesson.Cardify(cards)
		}
		if !emit(ctx, ch, CardsEvent{Cards: cards, Text: plan.Text}) {
			return
		}

		cards = p.attachImages(ctx, prompt, plan.ImageQueries, cards)

		results := map[string]tools.Result{}
		names := dispatchable(plan.ToolCalls)
		if len(names) > 0 {
			if !emit(ctx, ch, StatusEvent{Stage: "fetching_data"}) {
				return
			}
			args := tools.Args{Query: prompt, Text: plan.Text, Place: p.place, Days: p.forecastDays}
			for c := range p.runner.Dispatch(ctx, names, args) {
				results[c.Name] = c.Result
				if !emit(ctx, ch, ToolEvent{Name: c.Name, OK: c.Result.OK()}) {
					return
				}
			}
		}

		final := lesson.MergeToolResults(cards, results, prompt)
		emit(ctx, ch, ResultEvent{Payload: Response{
			Text:            plan.Text,
			LessonCards:     final,
			ToolCalls:       actualTools(plan.ImageQueries, names),
			Model:           plan.Model,
			TookMS:          time.Since(t0).Milliseconds(),
			NeedsFreshFacts: plan.NeedsFreshFacts,
		}})
	}()
	return ch
}

// Answer runs the same flow synchronously and adds a closing prose pass over
// the final cards.
func (p *Pipeline) Answer(ctx context.Context, prompt string) (Response, error) {
	var resp Response
	var errMsg string
	for ev := range p.Stream(ctx, prompt) {
		switch e := ev.(type) {
		case ResultEvent:
			resp = e.Payload
		case ErrorEvent:
			errMsg = e.Message
		}
	}
	if errMsg != "" {
		return Response{}, fmt.Errorf("answer %q: %s", prompt, errMsg)
	}
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	resp.Text = p.closingText(ctx, prompt, resp)
	return resp, nil
}

// closingText turns the final cards into short user-facing prose. Any
// failure falls back to the plan text, then to a templated sentence.
func (p *Pipeline) closingText(ctx context.Context, prompt string, resp Response) string {
	if p.text == nil {
		return orTemplate(resp.Text, prompt, len(resp.LessonCards))
	}
	var b strings.Builder
	for _, c := range resp.LessonCards {
		fmt.Fprintf(&b, "- %s (%s): %s\n", c.Title, c.Kind, c.Summary)
	}
	system := "You are a friendly fishing guide. Given the lesson cards prepared for the user, write two or three sentences introducing them. Plain text, no markdown."
	user := fmt.Sprintf("Request: %s\n\nCards:\n%s", prompt, b.String())
	out, err := p.text.Complete(ctx, system, user, nil)
	if err != nil || strings.TrimSpace(out) == "" {
		if err != nil {
			p.logger.Printf("closing text pass failed: %v", err)
		}
		return orTemplate(resp.Text, prompt, len(resp.LessonCards))
	}
	return strings.TrimSpace(out)
}

func orTemplate(text, prompt string, cards int) string {
	if strings.TrimSpace(text) != "" {
		return text
	}
	return fmt.Sprintf("Here is what I put together for %q (%d cards).", prompt, cards)
}

// attachImages resolves the plan's image queries through the provider chain,
// attaches them to steps and card heroes, then fills single-step cards with
// dedicated per-step images.
func (p *Pipeline) attachImages(ctx context.Context, prompt string, queries []string, cards []lesson.Card) []lesson.Card {
	if len(queries) > 0 && p.images != nil {
		bag := p.images.ResolveAll(ctx, queries)
		attachFromBag(cards, bag)
	}
	p.attachStepImages(ctx, prompt, cards)
	return cards
}

// attachFromBag matches resolved images to steps by title and gives each
// card without images a hero matched on the card title.
func attachFromBag(cards []lesson.Card, bag map[string][]lesson.ImageRecord) {
	norm := make(map[string][]lesson.ImageRecord, len(bag))
	for q, imgs := range bag {
		norm[strings.ToLower(strings.TrimSpace(q))] = imgs
	}
	lookup := func(q string) []lesson.ImageRecord {
		return norm[strings.ToLower(strings.TrimSpace(q))]
	}
	for i := range cards {
		card := &cards[i]
		for j := range card.Steps {
			step := &card.Steps[j]
			imgs := lookup(step.Title)
			if len(imgs) == 0 {
				imgs = lookup(card.Title)
			}
			if len(imgs) > 0 && step.Image == nil {
				img := imgs[0]
				step.Image = &img
			}
		}
		if len(card.Images) == 0 {
			if imgs := lookup(card.Title); len(imgs) > 0 {
				card.Images = []lesson.ImageRecord{imgs[0]}
			}
		}
	}
}

// attachStepImages fetches one image per single-step detail card, at most
// stepImageConcurrency lookups in flight. Lookup failures leave the card
// imageless.
func (p *Pipeline) attachStepImages(ctx context.Context, prompt string, cards []lesson.Card) {
	if p.stepSearch == nil {
		return
	}
	sem := semaphore.NewWeighted(stepImageConcurrency)
	var wg sync.WaitGroup
	for i := range cards {
		if !lesson.IsStepCard(cards[i]) || len(cards[i].Images) > 0 {
			continue
		}
		var n int
		fmt.Sscanf(cards[i].Title, "Step %d:", &n)
		query := fmt.Sprintf("%s %s step %d", prompt, lesson.StripStepPrefix(cards[i].Title), n)
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(card *lesson.Card, query string) {
			defer wg.Done()
			defer sem.Release(1)
			imgs, err := p.stepSearch.Search(ctx, query, 1)
			if err != nil {
				p.logger.Printf("step image %q: %v", query, err)
				return
			}
			if len(imgs) > 0 {
				card.Images = []lesson.ImageRecord{imgs[0]}
			}
		}(&cards[i], query)
	}
	wg.Wait()
}

// dispatchable filters the plan's tool calls down to what the dispatcher
// runs; images go through the provider chain instead.
func dispatchable(toolCalls []string) []string {
	var out []string
	for _, t := range toolCalls {
		if t != tools.NameImages {
			out = append(out, t)
		}
	}
	return out
}

// actualTools reports which tools ran, with "images" first when image
// queries were resolved.
func actualTools(imageQueries, dispatched []string) []string {
	var out []string
	if len(imageQueries) > 0 {
		out = append(out, tools.NameImages)
	}
	return append(out, dispatched...)
}

// emit delivers ev unless ctx is cancelled; it reports whether the pipeline
// should keep going.
func emit(ctx context.Context, ch chan<- Event, ev Event) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
