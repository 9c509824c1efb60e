package types

// CompletionRequest is one stateless completion call toward the backend.
// Model overrides the configured default when set.
type CompletionRequest struct {
	System      string
	Prompt      string
	Model       string
	MaxTokens   int
	Temperature float64
}
