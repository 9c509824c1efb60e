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

const generalPersona = `You are Sahayak, a warm, neighborly assistant for informal workers in West Bengal.
You help people find local work, check fair pay, learn about training, and join women's groups.
Reply in the user's language (%s), in at most three short sentences. Never invent jobs, wages, or laws.`

// General handles greetings, usage questions, farewells, and anything the
// classifier could not place. It is also the router's default when
// classification fails, so it must work without a provider.
type General struct {
	client provider.Client
	model  string
}

// NewGeneral builds the handler. client may be nil; replies then fall back
// to a static greeting.
func NewGeneral(client provider.Client, model string) *General {
	return &General{client: client, model: model}
}

func (h *General) Name() string { return NameGeneral }

var staticGreeting = map[string]string{
	"Bengali": "নমস্কার! আমি সহায়ক। কাজ, মজুরি বা প্রশিক্ষণ নিয়ে জিজ্ঞেস করুন।",
	"Hindi":   "नमस्ते! मैं सहायक हूँ। काम, मज़दूरी या प्रशिक्षण के बारे में पूछें।",
	"English": "Hello! I am Sahayak. Ask me about work, wages, or training.",
}

func (h *General) Handle(ctx context.Context, st *state.ConversationState, event bus.InboundEvent) (state.Update, Output, error) {
	update := state.Update{LastRoute: NameGeneral}
	language := st.LanguageOrDefault()

	if h.client == nil {
		text, ok := staticGreeting[language]
		if !ok {
			text = staticGreeting["English"]
		}
		return update, Output{Text: text, Done: true}, nil
	}

	prompt := strings.TrimSpace(event.Text)
	if prompt == "" {
		prompt = "The user sent an empty or non-text message. Greet them briefly."
	}

	text, err := h.client.Complete(ctx, providertypes.CompletionRequest{
		System:      fmt.Sprintf(generalPersona, language),
		Prompt:      prompt,
		Model:       h.model,
		MaxTokens:   200,
		Temperature: 0.4,
	})
	if err != nil {
		return state.Update{}, Output{}, fmt.Errorf("general completion: %w", err)
	}

	return update, Output{Text: text, Done: true}, nil
}
