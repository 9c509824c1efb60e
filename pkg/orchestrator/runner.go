package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"sahayak/pkg/bus"
	"sahayak/pkg/dedup"
	"sahayak/pkg/metrics"
	"sahayak/pkg/state"
)

// Runner is the turn entry point. Accept deduplicates synchronously and
// acknowledges, then the turn itself runs on its own goroutine: guard,
// onboarding, routing, dispatch. Turns for one user are serialized; turns
// for different users run in parallel.
type Runner struct {
	dedup      *dedup.Cache
	store      state.Store
	router     *Router
	dispatcher *Dispatcher
	events     *bus.EventBus
	metrics    *metrics.Metrics
	log        *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	wg    sync.WaitGroup
}

func NewRunner(cache *dedup.Cache, store state.Store, router *Router, dispatcher *Dispatcher, events *bus.EventBus, m *metrics.Metrics, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		dedup:      cache,
		store:      store,
		router:     router,
		dispatcher: dispatcher,
		events:     events,
		metrics:    m,
		log:        log.With("component", "orchestrator.runner"),
		locks:      make(map[string]*sync.Mutex),
	}
}

// Accept ingests one inbound event. It returns once the event is either
// rejected, dropped as a duplicate, or scheduled; the reply always arrives
// asynchronously through the dispatcher.
func (r *Runner) Accept(ctx context.Context, event bus.InboundEvent) error {
	if event.EventID == "" {
		return errors.New("inbound event has no id")
	}
	if event.SenderID == "" {
		return errors.New("inbound event has no sender")
	}

	if r.dedup.Seen(event.EventID) {
		r.metrics.DuplicateDropped(event.Channel)
		r.log.Debug("Duplicate delivery dropped", "event_id", event.EventID, "channel", event.Channel)
		r.publish(bus.Event{Type: bus.EventTurnDuplicate, Channel: event.Channel, SenderID: event.SenderID, EventID: event.EventID})
		return nil
	}

	turnID := uuid.NewString()
	r.wg.Add(1)

	// The transport's request context ends at acknowledgment; the turn
	// keeps its values but outlives its deadline.
	go r.runTurn(context.WithoutCancel(ctx), turnID, event)
	return nil
}

// Wait blocks until every scheduled turn has finished. Called on shutdown
// after the adapters stop producing events.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) runTurn(ctx context.Context, turnID string, event bus.InboundEvent) {
	defer r.wg.Done()

	lock := r.userLock(event.SenderID)
	lock.Lock()
	defer lock.Unlock()

	started := time.Now()
	r.publish(bus.Event{Type: bus.EventTurnStarted, Channel: event.Channel, SenderID: event.SenderID, TurnID: turnID, EventID: event.EventID})

	output, err := r.executeTurn(ctx, event)

	status := metrics.StatusCompleted
	if err != nil {
		status = metrics.StatusFailed
		r.log.Error("Turn finished with failure", "turn_id", turnID, "user_id", event.SenderID, "error", err)
		r.publish(bus.Event{Type: bus.EventTurnFailed, Channel: event.Channel, SenderID: event.SenderID, TurnID: turnID, EventID: event.EventID, Error: err.Error()})
	} else {
		r.publish(bus.Event{Type: bus.EventTurnCompleted, Channel: event.Channel, SenderID: event.SenderID, TurnID: turnID, EventID: event.EventID})
	}
	r.metrics.ObserveTurn(event.Channel, status, time.Since(started))

	r.dispatcher.Dispatch(ctx, bus.Outbound{
		Channel:   event.Channel,
		Recipient: event.SenderID,
		ChatID:    event.ChatID,
		Text:      output.Text,
		Menu:      output.Menu,
	})
}

// executeTurn runs the routing pipeline and always yields a dispatchable
// output, even when the pipeline failed.
func (r *Runner) executeTurn(ctx context.Context, event bus.InboundEvent) (out routedOutput, err error) {
	st, err := r.store.Load(ctx, event.SenderID)
	if err != nil {
		return routedOutput{Text: fallback().Text}, err
	}

	if appendsToHistory(event) {
		update := state.Update{Append: []state.Message{{Role: state.RoleUser, Content: event.Text}}}
		if st, err = r.router.merge(ctx, st, update); err != nil {
			return routedOutput{Text: fallback().Text}, err
		}
	}

	st, output, err := r.router.Route(ctx, st, event)

	if output.Text != "" {
		update := state.Update{Append: []state.Message{{Role: state.RoleAssistant, Content: output.Text}}}
		if _, mergeErr := r.router.merge(ctx, st, update); mergeErr != nil && err == nil {
			err = mergeErr
		}
	}

	return routedOutput{Text: output.Text, Menu: output.Menu}, err
}

type routedOutput struct {
	Text string
	Menu *bus.Menu
}

// appendsToHistory reports whether the event's text belongs in the turn
// history. Menu selections are control traffic, not conversation.
func appendsToHistory(event bus.InboundEvent) bool {
	if event.Text == "" {
		return false
	}
	return event.Kind == bus.KindText || event.Kind == bus.KindAudioTranscript || event.Kind == bus.KindLocationPin
}

func (r *Runner) userLock(userID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[userID] = lock
	}
	return lock
}

func (r *Runner) publish(event bus.Event) {
	if r.events == nil {
		return
	}
	event.At = time.Now().UTC()
	r.events.Publish(event)
}
