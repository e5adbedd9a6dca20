// Package views implements the multi-view processing layer: the
// classifier that decides which views a document gets, the three
// fixed-step processors that produce per-view artifacts, and the
// engine that runs the primary view synchronously and fans the rest
// out as queue jobs.
package views

import (
	"context"
	"encoding/json"
	"time"

	corellm "basegraph.app/insight/common/llm"
	"basegraph.app/insight/internal/llm"
	"basegraph.app/insight/internal/model"
)

// Gateway is the slice of the LLM gateway this package consumes.
// *llm.Gateway satisfies it; tests substitute fakes.
type Gateway interface {
	GenerateJSON(ctx context.Context, messages []corellm.Message, schemaHint string, opts ...llm.CallOption) (json.RawMessage, error)
}

// ProcessInput is everything a processor sees: the cleaned text, the
// numbered segments it cites, and a callback fired after each
// completed step. Progress may be nil.
type ProcessInput struct {
	DocumentID   int64
	TaskID       int64
	Preprocessed string
	Segments     []model.Segment
	Progress     func(step int, title string)
}

func (in ProcessInput) report(step int, title string) {
	if in.Progress != nil {
		in.Progress(step, title)
	}
}

// Processor turns a preprocessed document into one view's artifact.
type Processor interface {
	View() model.ViewName
	Steps() int
	Process(ctx context.Context, in ProcessInput) (json.RawMessage, error)
}

// Registry holds the available processors keyed by view name.
type Registry struct {
	processors map[model.ViewName]Processor
}

// NewRegistry builds a registry with the three standard processors.
// stepTimeout bounds every individual LLM step.
func NewRegistry(gw Gateway, stepTimeout time.Duration) *Registry {
	r := &Registry{processors: make(map[model.ViewName]Processor)}
	r.Register(newLearningProcessor(gw, stepTimeout))
	r.Register(newQAProcessor(gw, stepTimeout))
	r.Register(newSystemProcessor(gw, stepTimeout))
	return r
}

func (r *Registry) Register(p Processor) {
	r.processors[p.View()] = p
}

func (r *Registry) Get(view model.ViewName) (Processor, bool) {
	p, ok := r.processors[view]
	return p, ok
}

// Views lists the registered views in classifier tie-break order.
func (r *Registry) Views() []model.ViewName {
	out := make([]model.ViewName, 0, len(r.processors))
	for _, v := range model.AllViews {
		if _, ok := r.processors[v]; ok {
			out = append(out, v)
		}
	}
	return out
}

// Has reports whether view has a registered processor.
func (r *Registry) Has(view model.ViewName) bool {
	_, ok := r.processors[view]
	return ok
}
