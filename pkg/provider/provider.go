// Package provider abstracts the LLM completion backend used by the
// classifier and the specialist handlers.
package provider

import (
	"context"
	"fmt"
	"log/slog"

	"sahayak/pkg/config"
	provideropenai "sahayak/pkg/provider/openai"
	providertypes "sahayak/pkg/provider/types"
)

// Client is the minimal completion contract the core depends on.
// Conversation state lives in this service, so there is no provider-side
// session concept.
type Client interface {
	Health(ctx context.Context) error
	Complete(ctx context.Context, req providertypes.CompletionRequest) (string, error)
}

// New resolves the configured provider client.
func New(cfg *config.Config) (Client, error) {
	providerID := cfg.Provider.Name
	if providerID == "" {
		providerID = "openai"
	}

	slog.Default().With("component", "provider.factory").Debug("Resolving provider client", "provider", providerID)

	switch providerID {
	case "openai":
		return provideropenai.New(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", providerID)
	}
}
