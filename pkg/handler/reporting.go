package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"sahayak/pkg/bus"
	"sahayak/pkg/provider"
	providertypes "sahayak/pkg/provider/types"
	"sahayak/pkg/state"
)

// SafetyReport is one normalized complaint ready for the report sink.
type SafetyReport struct {
	UserID      string
	Category    string
	Description string
	Village     string
	Block       string
	District    string
	Latitude    *float64
	Longitude   *float64
}

// ReportSink stores safety reports. Returns a reference the user can quote.
type ReportSink interface {
	Submit(ctx context.Context, report SafetyReport) (string, error)
}

// Reporting turns raw complaints into normalized English safety reports and
// submits them.
type Reporting struct {
	sink   ReportSink
	client provider.Client
	model  string
}

func NewReporting(sink ReportSink, client provider.Client, model string) *Reporting {
	return &Reporting{sink: sink, client: client, model: model}
}

func (h *Reporting) Name() string { return NameReporting }

func (h *Reporting) Handle(ctx context.Context, st *state.ConversationState, event bus.InboundEvent) (state.Update, Output, error) {
	category, description := h.normalize(ctx, event.Text)

	report := SafetyReport{
		UserID:      st.UserID,
		Category:    category,
		Description: description,
		Village:     st.Location.Village,
		Block:       st.Location.Block,
		District:    st.Location.District,
		Latitude:    st.Latitude,
		Longitude:   st.Longitude,
	}
	if event.Pin != nil {
		lat, lon := event.Pin.Latitude, event.Pin.Longitude
		report.Latitude, report.Longitude = &lat, &lon
	}

	reference, err := h.sink.Submit(ctx, report)
	if err != nil {
		return state.Update{}, Output{}, fmt.Errorf("submit safety report: %w", err)
	}

	update := state.Update{LastRoute: NameReporting}
	text := fmt.Sprintf("Your safety report is logged (reference %s). The area team reviews every report. If you are in danger right now, call 112.", reference)
	return update, Output{Text: text, Done: true}, nil
}

// normalize translates and categorizes the complaint. Falls back to the raw
// text under a generic category when no provider is wired or the call fails:
// a submitted report beats a perfect one.
func (h *Reporting) normalize(ctx context.Context, raw string) (category, description string) {
	category = "General Safety"
	description = strings.TrimSpace(raw)

	if h.client == nil {
		return category, description
	}

	analysis, err := h.client.Complete(ctx, providertypes.CompletionRequest{
		System: `Translate and summarize this worker's safety complaint into professional English.
Output exactly two lines:
Category: Workplace, Infrastructure, or Health
Description: one clear sentence in English`,
		Prompt:    raw,
		Model:     h.model,
		MaxTokens: 120,
	})
	if err != nil {
		slog.Default().With("component", "handler.reporting").Warn("Complaint normalization failed, storing raw text", "error", err)
		return category, description
	}

	for _, line := range strings.Split(analysis, "\n") {
		switch {
		case strings.HasPrefix(line, "Category:"):
			if v := strings.TrimSpace(strings.TrimPrefix(line, "Category:")); v != "" {
				category = v
			}
		case strings.HasPrefix(line, "Description:"):
			if v := strings.TrimSpace(strings.TrimPrefix(line, "Description:")); v != "" {
				description = v
			}
		}
	}
	return category, description
}

// LogReportSink records reports to the log only. Used by the local chat
// command where no report database is attached.
type LogReportSink struct {
	counter int
}

func (s *LogReportSink) Submit(_ context.Context, report SafetyReport) (string, error) {
	s.counter++
	reference := fmt.Sprintf("LOCAL-%04d", s.counter)
	slog.Default().With("component", "handler.reporting").Info("Safety report received",
		"reference", reference, "category", report.Category, "village", report.Village)
	return reference, nil
}
