package whatsapp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"sahayak/pkg/bus"
	"sahayak/pkg/config"
)

func testConfig() config.WhatsAppConfig {
	return config.WhatsAppConfig{
		Enabled:       true,
		Token:         "test-token",
		PhoneNumberID: "12345",
		VerifyToken:   "verify-me",
	}
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(context.Context, string) (string, error) {
	return f.text, f.err
}

func newTestAdapter(t *testing.T, transcriber Transcriber) *Adapter {
	t.Helper()

	adapter, err := NewAdapter(testConfig(), transcriber, nil)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	return adapter
}

func captureIntake(events *[]bus.InboundEvent) func(context.Context, bus.InboundEvent) error {
	return func(_ context.Context, event bus.InboundEvent) error {
		*events = append(*events, event)
		return nil
	}
}

func TestVerifyHandshake(t *testing.T) {
	t.Parallel()

	adapter := newTestAdapter(t, nil)
	router := adapter.Routes(func(context.Context, bus.InboundEvent) error { return nil })

	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12321", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "12321" {
		t.Fatalf("body = %q, want echoed challenge", rec.Body.String())
	}
}

func TestVerifyRejectsWrongToken(t *testing.T) {
	t.Parallel()

	adapter := newTestAdapter(t, nil)
	router := adapter.Routes(func(context.Context, bus.InboundEvent) error { return nil })

	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want forbidden", rec.Code)
	}
}

func postWebhook(t *testing.T, router http.Handler, payload string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func wrapMessage(message string) string {
	return `{"entry":[{"changes":[{"value":{"messages":[` + message + `]}}]}]}`
}

func TestWebhookParsesText(t *testing.T) {
	t.Parallel()

	var events []bus.InboundEvent
	adapter := newTestAdapter(t, nil)
	router := adapter.Routes(captureIntake(&events))

	rec := postWebhook(t, router, wrapMessage(`{"from":"919999","id":"wamid-1","type":"text","text":{"body":" kaj chai "}}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}

	event := events[0]
	if event.Kind != bus.KindText || event.Text != "kaj chai" {
		t.Fatalf("event = %+v", event)
	}
	if event.EventID != "wamid-1" || event.SenderID != "919999" {
		t.Fatalf("event ids = %+v", event)
	}
}

func TestWebhookParsesListReply(t *testing.T) {
	t.Parallel()

	var events []bus.InboundEvent
	adapter := newTestAdapter(t, nil)
	router := adapter.Routes(captureIntake(&events))

	postWebhook(t, router, wrapMessage(`{"from":"919999","id":"wamid-2","type":"interactive","interactive":{"type":"list_reply","list_reply":{"id":"NADIA","title":"Nadia"}}}`))
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].Kind != bus.KindSelection || events[0].Text != "NADIA" {
		t.Fatalf("event = %+v", events[0])
	}
}

func TestWebhookParsesLocationPin(t *testing.T) {
	t.Parallel()

	var events []bus.InboundEvent
	adapter := newTestAdapter(t, nil)
	router := adapter.Routes(captureIntake(&events))

	postWebhook(t, router, wrapMessage(`{"from":"919999","id":"wamid-3","type":"location","location":{"latitude":22.96,"longitude":88.53}}`))
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}

	event := events[0]
	if event.Kind != bus.KindLocationPin || event.Pin == nil {
		t.Fatalf("event = %+v", event)
	}
	if event.Pin.Latitude != 22.96 || event.Pin.Longitude != 88.53 {
		t.Fatalf("pin = %+v", event.Pin)
	}
}

func TestWebhookTranscribesAudio(t *testing.T) {
	t.Parallel()

	var events []bus.InboundEvent
	adapter := newTestAdapter(t, &fakeTranscriber{text: "amar mojuri kom"})
	router := adapter.Routes(captureIntake(&events))

	postWebhook(t, router, wrapMessage(`{"from":"919999","id":"wamid-4","type":"audio","audio":{"id":"media-9"}}`))
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].Kind != bus.KindAudioTranscript || events[0].Text != "amar mojuri kom" {
		t.Fatalf("event = %+v", events[0])
	}
}

func TestWebhookSkipsAudioWithoutTranscriber(t *testing.T) {
	t.Parallel()

	var events []bus.InboundEvent
	adapter := newTestAdapter(t, nil)
	router := adapter.Routes(captureIntake(&events))

	rec := postWebhook(t, router, wrapMessage(`{"from":"919999","id":"wamid-5","type":"audio","audio":{"id":"media-9"}}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, webhook must still acknowledge", rec.Code)
	}
	if len(events) != 0 {
		t.Fatalf("events = %d, want 0", len(events))
	}
}

func TestWebhookIgnoresStatusDeliveries(t *testing.T) {
	t.Parallel()

	var events []bus.InboundEvent
	adapter := newTestAdapter(t, nil)
	router := adapter.Routes(captureIntake(&events))

	rec := postWebhook(t, router, `{"entry":[{"changes":[{"value":{"statuses":[{"id":"wamid-1","status":"delivered"}]}}]}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(events) != 0 {
		t.Fatalf("events = %d, want 0", len(events))
	}
}

func TestSendText(t *testing.T) {
	t.Parallel()

	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/12345/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-token" {
			t.Errorf("authorization = %q", auth)
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Write([]byte(`{"messages":[{"id":"out-1"}]}`))
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.GraphBaseURL = server.URL
	adapter, err := NewAdapter(cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}

	err = adapter.Send(context.Background(), bus.Outbound{
		Channel:   channelName,
		Recipient: "919999",
		Text:      "hello there",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got["type"] != "text" || got["to"] != "919999" {
		t.Fatalf("payload = %v", got)
	}
	text := got["text"].(map[string]any)
	if text["body"] != "hello there" {
		t.Fatalf("body = %v", text["body"])
	}
}

func TestSendMenuAsInteractiveList(t *testing.T) {
	t.Parallel()

	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.GraphBaseURL = server.URL
	adapter, err := NewAdapter(cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}

	menu := &bus.Menu{
		Prompt:      "Please select your district:",
		ButtonLabel: "View Districts",
		Sections: []bus.MenuSection{{
			Title: "Select District",
			Rows: []bus.MenuRow{
				{ID: "NADIA", Label: "Nadia"},
				{ID: "NORTH 24 PARGANAS", Label: "A district name that runs far too long"},
			},
		}},
	}
	if err := adapter.Send(context.Background(), bus.Outbound{Channel: channelName, Recipient: "919999", Menu: menu}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if got["type"] != "interactive" {
		t.Fatalf("payload type = %v", got["type"])
	}
	interactive := got["interactive"].(map[string]any)
	if interactive["type"] != "list" {
		t.Fatalf("interactive type = %v", interactive["type"])
	}
	action := interactive["action"].(map[string]any)
	if action["button"] != "View Districts" {
		t.Fatalf("button = %v", action["button"])
	}
	rows := action["sections"].([]any)[0].(map[string]any)["rows"].([]any)
	if len(rows) != 2 {
		t.Fatalf("rows = %d", len(rows))
	}
	longTitle := rows[1].(map[string]any)["title"].(string)
	if len(longTitle) > rowTitleLimit {
		t.Fatalf("row title %q exceeds the graph limit", longTitle)
	}
}

func TestSendSurfacesGraphErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"bad token"}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.GraphBaseURL = server.URL
	adapter, err := NewAdapter(cfg, nil, nil)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}

	err = adapter.Send(context.Background(), bus.Outbound{Recipient: "919999", Text: "hi"})
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("err = %v, want graph status error", err)
	}
}

func TestTruncateCountsRunes(t *testing.T) {
	t.Parallel()

	if got := truncate("short", rowTitleLimit); got != "short" {
		t.Fatalf("short value changed: %q", got)
	}

	label := "মোল্লাবেলিয়া গ্রাম পঞ্চায়েত অফিস"
	got := truncate(label, rowTitleLimit)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated label is not valid UTF-8: %q", got)
	}
	if n := utf8.RuneCountInString(got); n > rowTitleLimit {
		t.Fatalf("truncated label has %d runes, limit %d", n, rowTitleLimit)
	}
	if !strings.HasPrefix(label, got) {
		t.Fatalf("truncation must keep a prefix, got %q", got)
	}
}
