package bus

// PayloadKind identifies what an inbound event carries.
type PayloadKind string

const (
	KindText            PayloadKind = "text"
	KindSelection       PayloadKind = "selection"
	KindLocationPin     PayloadKind = "location_pin"
	KindAudioTranscript PayloadKind = "audio_transcript"
)

// LocationPin is a shared GPS coordinate pair from a location message.
type LocationPin struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// InboundEvent is one delivery attempt from a messaging transport.
//
// EventID is globally unique per delivery attempt; redeliveries reuse it.
// The struct is treated as immutable once handed to the orchestrator.
type InboundEvent struct {
	Channel  string            `json:"channel"`
	EventID  string            `json:"event_id"`
	SenderID string            `json:"sender_id"`
	ChatID   string            `json:"chat_id"`
	Kind     PayloadKind       `json:"kind"`
	Text     string            `json:"text"`
	Pin      *LocationPin      `json:"pin,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// MenuRow is one selectable option in a single-select menu.
type MenuRow struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// MenuSection is a titled ordered list of rows.
type MenuSection struct {
	Title string    `json:"title"`
	Rows  []MenuRow `json:"rows"`
}

// Menu is the structured single-select reply shape.
type Menu struct {
	Prompt      string        `json:"prompt"`
	ButtonLabel string        `json:"button_label"`
	Sections    []MenuSection `json:"sections"`
}

// Outbound is one reply toward a transport: free text, or a menu when set.
type Outbound struct {
	Channel   string            `json:"channel"`
	Recipient string            `json:"recipient"`
	ChatID    string            `json:"chat_id"`
	Text      string            `json:"text,omitempty"`
	Menu      *Menu             `json:"menu,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// IsMenu reports whether the reply must be delivered as a single-select menu.
func (o Outbound) IsMenu() bool {
	return o.Menu != nil && len(o.Menu.Sections) > 0
}
