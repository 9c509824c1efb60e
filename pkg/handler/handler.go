// Package handler defines the specialist invocation contract and the
// process-wide registry.
package handler

import (
	"context"
	"fmt"

	"sahayak/pkg/bus"
	"sahayak/pkg/state"
)

// Reserved handler names referenced by the router.
const (
	NameEmergency = "emergency"
	NameGeneral   = "general"
	NameJobs      = "jobs"
	NameLegal     = "legal"
	NameReporting = "reporting"
)

// Output is the result of one handler invocation.
//
// Done is the completion marker: when set, the router stops this turn and
// dispatches the output regardless of any further classifier opinion.
type Output struct {
	Text string
	Menu *bus.Menu
	Done bool
}

// Handler implements one conversational capability.
//
// Handlers are pure with respect to the orchestration core: they propose a
// state.Update and never write state directly. External collaborators (data
// lookups, completion calls) are injected and opaque to the router.
type Handler interface {
	Name() string
	Handle(ctx context.Context, st *state.ConversationState, event bus.InboundEvent) (state.Update, Output, error)
}

// Registry is the static handler table, immutable after startup.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry indexes handlers by name. Duplicate names are a wiring bug.
func NewRegistry(handlers ...Handler) (*Registry, error) {
	table := make(map[string]Handler, len(handlers))
	for _, h := range handlers {
		name := h.Name()
		if name == "" {
			return nil, fmt.Errorf("handler %T has no name", h)
		}
		if _, exists := table[name]; exists {
			return nil, fmt.Errorf("duplicate handler name %q", name)
		}
		table[name] = h
	}
	return &Registry{handlers: table}, nil
}

// Get looks a handler up by name.
func (r *Registry) Get(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Names lists registered handler names for logs and status output.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}
