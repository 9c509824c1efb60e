package channel

import (
	"context"

	"sahayak/pkg/bus"
)

// Intake accepts one inbound event for processing. It returns quickly: the
// caller only learns whether the event was accepted, not how the turn went.
type Intake func(context.Context, bus.InboundEvent) error

// Adapter bridges one external transport (Telegram, WhatsApp) into the
// service. Run blocks until the context is canceled.
type Adapter interface {
	Name() string
	Run(context.Context, Intake) error
}

// Sender delivers one outbound message on its transport. Menu payloads are
// rendered with whatever selection surface the transport offers.
type Sender interface {
	Name() string
	Send(context.Context, bus.Outbound) error
}
