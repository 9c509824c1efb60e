// Package orchestrator ties deduplication, state, routing, and dispatch into
// the per-event turn pipeline.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"sahayak/pkg/bus"
	"sahayak/pkg/classify"
	"sahayak/pkg/guard"
	"sahayak/pkg/handler"
	"sahayak/pkg/metrics"
	"sahayak/pkg/onboard"
	"sahayak/pkg/state"
)

// Router walks one turn through guard check, onboarding check,
// classification, and handler dispatch until a terminal output is reached.
//
// Handler outputs carry an explicit Done marker; when set it beats any
// further classifier opinion. A hop budget bounds the worst case when every
// handler keeps handing the turn back.
type Router struct {
	store      state.Store
	gate       *onboard.Gate
	classifier classify.Classifier
	executor   *handler.Executor
	metrics    *metrics.Metrics
	hopBudget  int
	log        *slog.Logger
}

func NewRouter(store state.Store, gate *onboard.Gate, classifier classify.Classifier, executor *handler.Executor, m *metrics.Metrics, hopBudget int, log *slog.Logger) *Router {
	if hopBudget <= 0 {
		hopBudget = 10
	}
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		store:      store,
		gate:       gate,
		classifier: classifier,
		executor:   executor,
		metrics:    m,
		hopBudget:  hopBudget,
		log:        log.With("component", "orchestrator.router"),
	}
}

var tagHandlers = map[classify.Tag]string{
	classify.TagJobs:      handler.NameJobs,
	classify.TagLegal:     handler.NameLegal,
	classify.TagReporting: handler.NameReporting,
	classify.TagGeneral:   handler.NameGeneral,
	classify.TagEnd:       handler.NameGeneral,
}

// Route runs the state machine for one event and returns the terminal output
// together with the state as last merged. The output is always dispatchable,
// even when the returned error is non-nil.
func (r *Router) Route(ctx context.Context, st *state.ConversationState, event bus.InboundEvent) (*state.ConversationState, handler.Output, error) {
	if guard.IsEmergency(event.Text) {
		r.metrics.EmergencyRouted()
		r.log.Warn("Distress signals detected, bypassing routing", "user_id", st.UserID, "channel", event.Channel)
		return r.dispatch(ctx, handler.NameEmergency, st, event)
	}

	if event.Kind == bus.KindSelection {
		update, err := r.gate.Resolve(ctx, st, event.Text)
		if err != nil {
			return st, fallback(), fmt.Errorf("resolve selection: %w", err)
		}
		if st, err = r.merge(ctx, st, update); err != nil {
			return st, fallback(), err
		}
	}

	for hop := 1; hop <= r.hopBudget; hop++ {
		tag := r.classify(ctx, st, event)

		action, err := r.gate.Check(ctx, st, tag)
		if err != nil {
			return st, fallback(), fmt.Errorf("onboarding check: %w", err)
		}
		if action != nil {
			if st, err = r.merge(ctx, st, state.Update{LastRoute: string(tag)}); err != nil {
				return st, fallback(), err
			}
			if action.Text != "" {
				return st, handler.Output{Text: action.Text, Done: true}, nil
			}
			return st, handler.Output{Menu: &action.Menu, Done: true}, nil
		}

		var output handler.Output
		st, output, err = r.dispatch(ctx, tagHandlers[tag], st, event)
		if err != nil || output.Done {
			return st, output, err
		}

		// The handler handed the turn back. Record its intermediate text so
		// the next classification sees it, then go around again.
		if output.Text != "" {
			update := state.Update{Append: []state.Message{{Role: state.RoleAssistant, Content: output.Text}}}
			if st, err = r.merge(ctx, st, update); err != nil {
				return st, fallback(), err
			}
		}
	}

	r.metrics.HopBudgetAborted()
	r.log.Warn("Hop budget exhausted, forcing terminal state", "user_id", st.UserID, "budget", r.hopBudget)
	return st, fallback(), nil
}

// classify asks the classifier for a capability tag, preferring the stored
// pending route for menu selections. Any failure degrades to general.
func (r *Router) classify(ctx context.Context, st *state.ConversationState, event bus.InboundEvent) classify.Tag {
	if event.Kind == bus.KindSelection {
		if tag, err := classify.ParseTag(st.LastRoute); err == nil && classify.NeedsLocation(tag) {
			return tag
		}
		return classify.TagGeneral
	}

	tag, err := r.classifier.Classify(ctx, st, event.Text)
	if err != nil {
		r.log.Error("Classification failed, defaulting to general", "user_id", st.UserID, "error", err)
		return classify.TagGeneral
	}
	return tag
}

func (r *Router) dispatch(ctx context.Context, name string, st *state.ConversationState, event bus.InboundEvent) (*state.ConversationState, handler.Output, error) {
	update, output, err := r.executor.Execute(ctx, name, st, event)
	if err != nil {
		r.metrics.HandlerFailed(name)
		return st, output, err
	}

	st, mergeErr := r.merge(ctx, st, update)
	if mergeErr != nil {
		return st, fallback(), mergeErr
	}
	return st, output, nil
}

func (r *Router) merge(ctx context.Context, st *state.ConversationState, update state.Update) (*state.ConversationState, error) {
	if update.IsZero() {
		return st, nil
	}
	merged, err := r.store.Merge(ctx, st.UserID, update)
	if err != nil {
		return st, fmt.Errorf("merge state for %s: %w", st.UserID, err)
	}
	return merged, nil
}

func fallback() handler.Output {
	return handler.Output{Text: handler.FallbackText, Done: true}
}
