// Package whatsapp implements the Meta Graph webhook channel: inbound
// messages arrive on an HTTP webhook and replies go out through the Graph
// messages endpoint.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"sahayak/pkg/bus"
	"sahayak/pkg/channel"
	"sahayak/pkg/config"
)

const channelName = "whatsapp"
const defaultGraphBaseURL = "https://graph.facebook.com/v21.0"
const defaultListenAddress = ":8080"

// Row titles beyond this length are rejected by the Graph API.
const rowTitleLimit = 24

// Transcriber converts a voice-note media id into text. Injected so the
// channel stays free of any speech-model dependency; a nil transcriber makes
// the adapter skip audio messages.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaID string) (string, error)
}

// Adapter serves the Meta webhook and sends Graph API replies.
type Adapter struct {
	cfg         config.WhatsAppConfig
	baseURL     string
	listenAddr  string
	client      *http.Client
	transcriber Transcriber
	log         *slog.Logger
}

func NewAdapter(cfg config.WhatsAppConfig, transcriber Transcriber, log *slog.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("channels.whatsapp.token is required")
	}
	if strings.TrimSpace(cfg.PhoneNumberID) == "" {
		return nil, errors.New("channels.whatsapp.phone_number_id is required")
	}
	if strings.TrimSpace(cfg.VerifyToken) == "" {
		return nil, errors.New("channels.whatsapp.verify_token is required")
	}

	if log == nil {
		log = slog.Default()
	}

	baseURL := strings.TrimRight(cfg.GraphBaseURL, "/")
	if baseURL == "" {
		baseURL = defaultGraphBaseURL
	}
	listenAddr := strings.TrimSpace(cfg.ListenAddress)
	if listenAddr == "" {
		listenAddr = defaultListenAddress
	}

	return &Adapter{
		cfg:         cfg,
		baseURL:     baseURL,
		listenAddr:  listenAddr,
		client:      &http.Client{Timeout: 30 * time.Second},
		transcriber: transcriber,
		log:         log.With("component", "channel.whatsapp"),
	}, nil
}

func (a *Adapter) Name() string {
	return channelName
}

// Run serves the webhook until the context is canceled. The webhook
// acknowledges every delivery immediately; processing happens behind the
// intake.
func (a *Adapter) Run(ctx context.Context, intake channel.Intake) error {
	if intake == nil {
		return errors.New("intake is required")
	}

	server := &http.Server{
		Addr:              a.listenAddr,
		Handler:           a.Routes(intake),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("WhatsApp webhook started", "address", a.listenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return fmt.Errorf("serve whatsapp webhook: %w", err)
	}
}

// Routes builds the webhook router. Split out so tests can drive it with
// httptest without binding a port.
func (a *Adapter) Routes(intake channel.Intake) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/webhook", a.handleVerify)
	r.Post("/webhook", a.handleWebhook(intake))
	return r
}

// handleVerify answers Meta's subscription handshake: echo hub.challenge
// when the verify token matches.
func (a *Adapter) handleVerify(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Get("hub.mode") == "subscribe" && query.Get("hub.verify_token") == a.cfg.VerifyToken {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(query.Get("hub.challenge")))
		return
	}
	http.Error(w, "verification failed", http.StatusForbidden)
}

func (a *Adapter) handleWebhook(intake channel.Intake) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}

		event, ok := a.parsePayload(r.Context(), body)
		if ok {
			if err := intake(r.Context(), event); err != nil {
				a.log.Error("Failed to ingest whatsapp event", "event_id", event.EventID, "error", err)
			}
		}

		// Meta redelivers on anything but a prompt 200.
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"received"}`))
	}
}

// Webhook payload shapes, reduced to the fields this channel reads.
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []inboundMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type inboundMessage struct {
	From string `json:"from"`
	ID   string `json:"id"`
	Type string `json:"type"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text"`
	Interactive *struct {
		Type      string `json:"type"`
		ListReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"list_reply"`
	} `json:"interactive"`
	Location *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
	Audio *struct {
		ID string `json:"id"`
	} `json:"audio"`
}

// parsePayload extracts the first message from a webhook delivery. Status
// notifications and unsupported types are dropped.
func (a *Adapter) parsePayload(ctx context.Context, body []byte) (bus.InboundEvent, bool) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		a.log.Debug("Undecodable webhook payload", "error", err)
		return bus.InboundEvent{}, false
	}

	message, ok := firstMessage(payload)
	if !ok {
		return bus.InboundEvent{}, false
	}

	event := bus.InboundEvent{
		Channel:  channelName,
		EventID:  message.ID,
		SenderID: message.From,
		ChatID:   message.From,
	}

	switch message.Type {
	case "text":
		if message.Text == nil || strings.TrimSpace(message.Text.Body) == "" {
			return bus.InboundEvent{}, false
		}
		event.Kind = bus.KindText
		event.Text = strings.TrimSpace(message.Text.Body)
	case "interactive":
		if message.Interactive == nil || message.Interactive.Type != "list_reply" || message.Interactive.ListReply == nil {
			return bus.InboundEvent{}, false
		}
		event.Kind = bus.KindSelection
		event.Text = selectionValue(message.Interactive.ListReply.ID, message.Interactive.ListReply.Title)
	case "location":
		if message.Location == nil {
			return bus.InboundEvent{}, false
		}
		event.Kind = bus.KindLocationPin
		event.Pin = &bus.LocationPin{
			Latitude:  message.Location.Latitude,
			Longitude: message.Location.Longitude,
		}
	case "audio":
		if a.transcriber == nil || message.Audio == nil {
			a.log.Debug("Skipping audio message, no transcriber wired", "event_id", message.ID)
			return bus.InboundEvent{}, false
		}
		text, err := a.transcriber.Transcribe(ctx, message.Audio.ID)
		if err != nil {
			a.log.Error("Voice note transcription failed", "event_id", message.ID, "error", err)
			return bus.InboundEvent{}, false
		}
		if strings.TrimSpace(text) == "" {
			return bus.InboundEvent{}, false
		}
		event.Kind = bus.KindAudioTranscript
		event.Text = strings.TrimSpace(text)
	default:
		a.log.Debug("Skipping unsupported message type", "type", message.Type)
		return bus.InboundEvent{}, false
	}

	return event, true
}

func firstMessage(payload webhookPayload) (inboundMessage, bool) {
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if len(change.Value.Messages) > 0 {
				return change.Value.Messages[0], true
			}
		}
	}
	return inboundMessage{}, false
}

func selectionValue(id, title string) string {
	if strings.TrimSpace(id) != "" {
		return strings.TrimSpace(id)
	}
	return strings.TrimSpace(title)
}

// Send delivers one outbound message through the Graph messages endpoint.
func (a *Adapter) Send(ctx context.Context, out bus.Outbound) error {
	var payload map[string]any
	if out.IsMenu() {
		payload = listPayload(out)
	} else {
		if strings.TrimSpace(out.Text) == "" {
			return nil
		}
		payload = map[string]any{
			"messaging_product": "whatsapp",
			"to":                out.Recipient,
			"type":              "text",
			"text":              map[string]any{"body": out.Text},
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode graph payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", a.baseURL, a.cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build graph request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("send graph request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("graph api status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

// listPayload renders a menu as an interactive list message.
func listPayload(out bus.Outbound) map[string]any {
	sections := make([]map[string]any, 0, len(out.Menu.Sections))
	for _, section := range out.Menu.Sections {
		rows := make([]map[string]any, 0, len(section.Rows))
		for _, row := range section.Rows {
			rows = append(rows, map[string]any{
				"id":    row.ID,
				"title": truncate(row.Label, rowTitleLimit),
			})
		}
		sections = append(sections, map[string]any{
			"title": truncate(section.Title, rowTitleLimit),
			"rows":  rows,
		})
	}

	return map[string]any{
		"messaging_product": "whatsapp",
		"to":                out.Recipient,
		"type":              "interactive",
		"interactive": map[string]any{
			"type": "list",
			"body": map[string]any{"text": out.Menu.Prompt},
			"action": map[string]any{
				"button":   truncate(out.Menu.ButtonLabel, rowTitleLimit),
				"sections": sections,
			},
		},
	}
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
