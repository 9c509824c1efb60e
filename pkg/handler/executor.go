package handler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sahayak/pkg/bus"
	"sahayak/pkg/state"
)

// FallbackText is the standard reply when a handler fails or times out.
const FallbackText = "I had trouble processing that, please try again."

// Executor invokes registry handlers with a timeout, panic capture, and the
// standard fallback output on failure. A failed invocation's state update is
// discarded, so handler writes are all-or-nothing.
type Executor struct {
	registry *Registry
	timeout  time.Duration
	log      *slog.Logger
}

func NewExecutor(registry *Registry, timeout time.Duration, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		registry: registry,
		timeout:  timeout,
		log:      log.With("component", "handler.executor"),
	}
}

type invocation struct {
	update state.Update
	output Output
	err    error
}

// Execute runs the named handler once. The returned error reports the
// failure for logging; the returned Output is always safe to dispatch.
func (e *Executor) Execute(ctx context.Context, name string, st *state.ConversationState, event bus.InboundEvent) (state.Update, Output, error) {
	h, ok := e.registry.Get(name)
	if !ok {
		err := fmt.Errorf("no handler registered for %q", name)
		return state.Update{}, fallbackOutput(), err
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	results := make(chan invocation, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				results <- invocation{err: fmt.Errorf("handler %s panicked: %v", name, r)}
			}
		}()

		update, output, err := h.Handle(ctx, st, event)
		results <- invocation{update: update, output: output, err: err}
	}()

	select {
	case <-ctx.Done():
		err := fmt.Errorf("handler %s timed out: %w", name, ctx.Err())
		e.log.Error("Handler call failed", "handler", name, "error", err)
		return state.Update{}, fallbackOutput(), err
	case result := <-results:
		if result.err != nil {
			e.log.Error("Handler call failed", "handler", name, "error", result.err)
			return state.Update{}, fallbackOutput(), result.err
		}
		return result.update, result.output, nil
	}
}

func fallbackOutput() Output {
	return Output{Text: FallbackText, Done: true}
}
