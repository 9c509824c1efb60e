// Package classify maps conversation context to a capability tag.
package classify

import (
	"context"
	"fmt"
	"strings"

	"sahayak/pkg/state"
)

// Tag is one capability from the fixed routing enumeration.
type Tag string

const (
	// TagJobs covers job search, training, and self-help-group matching.
	TagJobs Tag = "jobs"
	// TagLegal covers wage audits and labor rights questions.
	TagLegal Tag = "legal"
	// TagReporting covers new safety complaints about sites or areas.
	TagReporting Tag = "reporting"
	// TagGeneral covers greetings, usage questions, and anything undecidable.
	TagGeneral Tag = "general"
	// TagEnd means the user is done and the conversation should close.
	TagEnd Tag = "end"
)

// Classifier decides the capability tag for the latest message given state.
// Implementations may be rule-based or LLM-backed; the router treats both
// identically and recovers from any error by defaulting to TagGeneral.
type Classifier interface {
	Classify(ctx context.Context, st *state.ConversationState, latest string) (Tag, error)
}

// NeedsLocation reports whether handlers for tag require the full
// district/block/village hierarchy.
func NeedsLocation(tag Tag) bool {
	switch tag {
	case TagJobs, TagLegal, TagReporting:
		return true
	default:
		return false
	}
}

// ParseTag validates a raw classifier answer against the enumeration.
func ParseTag(raw string) (Tag, error) {
	cleaned := Tag(strings.ToLower(strings.TrimSpace(raw)))
	switch cleaned {
	case TagJobs, TagLegal, TagReporting, TagGeneral, TagEnd:
		return cleaned, nil
	default:
		return "", fmt.Errorf("unrecognized capability tag %q", raw)
	}
}
