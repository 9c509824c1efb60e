package orchestrator

import (
	"context"
	"log/slog"

	"sahayak/pkg/bus"
	"sahayak/pkg/channel"
)

// Dispatcher delivers terminal outputs to the sender for their channel.
// Delivery is fire-and-forget: a failed send is logged and the turn still
// counts as completed. Retries belong to the transport.
type Dispatcher struct {
	senders map[string]channel.Sender
	log     *slog.Logger
}

func NewDispatcher(log *slog.Logger, senders ...channel.Sender) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	table := make(map[string]channel.Sender, len(senders))
	for _, s := range senders {
		table[s.Name()] = s
	}
	return &Dispatcher{
		senders: table,
		log:     log.With("component", "orchestrator.dispatcher"),
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, out bus.Outbound) {
	sender, ok := d.senders[out.Channel]
	if !ok {
		d.log.Error("No sender registered for channel", "channel", out.Channel, "recipient", out.Recipient)
		return
	}

	if err := sender.Send(ctx, out); err != nil {
		d.log.Error("Outbound delivery failed", "channel", out.Channel, "recipient", out.Recipient, "is_menu", out.IsMenu(), "error", err)
	}
}
