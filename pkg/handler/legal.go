package handler

import (
	"context"
	"fmt"
	"strings"

	"sahayak/pkg/bus"
	"sahayak/pkg/provider"
	providertypes "sahayak/pkg/provider/types"
	"sahayak/pkg/state"
)

// ComplianceSource retrieves labor-law context for a query, typically from a
// document index. Opaque to the orchestration core.
type ComplianceSource interface {
	Lookup(ctx context.Context, query string) (string, error)
}

// Legal audits wages and rights questions against retrieved labor-law
// context.
type Legal struct {
	source ComplianceSource
	client provider.Client
	model  string
}

func NewLegal(source ComplianceSource, client provider.Client, model string) *Legal {
	return &Legal{source: source, client: client, model: model}
}

func (h *Legal) Name() string { return NameLegal }

func (h *Legal) Handle(ctx context.Context, st *state.ConversationState, event bus.InboundEvent) (state.Update, Output, error) {
	skills := strings.TrimSpace(st.Occupation)
	if skills == "" {
		skills = "general worker"
	}

	query := fmt.Sprintf("minimum wage and labor rights for %s in %s, West Bengal", skills, titleCase(st.Location.District))
	lawContext, err := h.source.Lookup(ctx, query)
	if err != nil {
		return state.Update{}, Output{}, fmt.Errorf("compliance lookup: %w", err)
	}

	update := state.Update{LastRoute: NameLegal}

	if h.client == nil {
		return update, Output{
			Text: fmt.Sprintf("Here is what the law says for a %s in your district:\n%s", skills, lawContext),
			Done: true,
		}, nil
	}

	system := fmt.Sprintf(`You audit wages for informal workers. Compare the user's situation against the labor-law context.
State clearly whether the reported pay is below the legal minimum for a %s, and name any other violated right.
Reply in %s, at most five short sentences, no legal jargon.`, skills, st.LanguageOrDefault())

	text, err := h.client.Complete(ctx, providertypes.CompletionRequest{
		System: system,
		Prompt: fmt.Sprintf("LABOR LAW CONTEXT:\n%s\n\nUSER MESSAGE:\n%s", lawContext, event.Text),
		Model:  h.model,
	})
	if err != nil {
		return state.Update{}, Output{}, fmt.Errorf("legal completion: %w", err)
	}

	return update, Output{Text: text, Done: true}, nil
}

// StaticComplianceSource returns one fixed context block for every query.
// Used by the local chat command and tests.
type StaticComplianceSource struct {
	Context string
}

func (s *StaticComplianceSource) Lookup(context.Context, string) (string, error) {
	return s.Context, nil
}
