package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"sahayak/pkg/provider"
	providertypes "sahayak/pkg/provider/types"
	"sahayak/pkg/state"
)

const historyWindow = 8

// The responses API rejects max_output_tokens below 16; one tag word fits
// comfortably under this cap either way.
const classifierMaxTokens = 100

const classifierInstructions = `You route messages from informal workers to one capability.
Answer with exactly one word from this list and nothing else:
- jobs: finding work, earning money, training, certificates, self-help groups, loans.
- legal: wages, minimum pay, overtime, labor rights, workplace law.
- reporting: reporting an unsafe site, area, or workplace incident.
- general: greetings, questions about this service, casual talk, anything unclear.
- end: the user says goodbye or the task is fully complete.`

// LLMClassifier asks the completion backend for a capability tag.
type LLMClassifier struct {
	client provider.Client
	model  string
	log    *slog.Logger
}

// NewLLMClassifier builds a classifier on the shared provider client.
// model overrides the provider default when non-empty; a small, cheap model
// is the expected choice.
func NewLLMClassifier(client provider.Client, model string, log *slog.Logger) *LLMClassifier {
	if log == nil {
		log = slog.Default()
	}
	return &LLMClassifier{
		client: client,
		model:  model,
		log:    log.With("component", "classify.llm"),
	}
}

func (c *LLMClassifier) Classify(ctx context.Context, st *state.ConversationState, latest string) (Tag, error) {
	prompt := buildPrompt(st, latest)

	raw, err := c.client.Complete(ctx, providertypes.CompletionRequest{
		System:    classifierInstructions,
		Prompt:    prompt,
		Model:     c.model,
		MaxTokens: classifierMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("classifier call: %w", err)
	}

	tag, err := ParseTag(firstWord(raw))
	if err != nil {
		c.log.Warn("Classifier returned unrecognized tag", "raw", raw)
		return "", err
	}

	return tag, nil
}

func buildPrompt(st *state.ConversationState, latest string) string {
	var b strings.Builder

	if st != nil {
		fmt.Fprintf(&b, "User location: district=%s block=%s village=%s\n",
			orUnknown(st.Location.District), orUnknown(st.Location.Block), orUnknown(st.Location.Village))
		if st.Occupation != "" {
			fmt.Fprintf(&b, "User occupation: %s\n", st.Occupation)
		}

		history := st.History
		if len(history) > historyWindow {
			history = history[len(history)-historyWindow:]
		}
		for _, msg := range history {
			fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
		}
	}

	fmt.Fprintf(&b, "user: %s", latest)
	return b.String()
}

func orUnknown(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

func firstWord(raw string) string {
	fields := strings.Fields(strings.TrimSpace(raw))
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], ".,:;'\"")
}
