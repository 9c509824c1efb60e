package classify

import (
	"context"
	"strings"

	"sahayak/pkg/state"
)

// RuleClassifier is a deterministic keyword classifier.
// It backs the local chat command and tests, and doubles as an offline
// fallback when no provider is configured.
type RuleClassifier struct{}

func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

var ruleTable = []struct {
	tag      Tag
	keywords []string
}{
	{tag: TagEnd, keywords: []string{"bye", "goodbye", "dhonnobad", "thank you", "thanks"}},
	{tag: TagReporting, keywords: []string{"report", "unsafe", "accident", "harass", "complain"}},
	{tag: TagLegal, keywords: []string{"wage", "salary", "pay", "rights", "law", "overtime", "minimum"}},
	{tag: TagJobs, keywords: []string{"job", "work", "kaj", "earn", "training", "course", "shg", "loan"}},
}

func (c *RuleClassifier) Classify(_ context.Context, _ *state.ConversationState, latest string) (Tag, error) {
	lowered := strings.ToLower(latest)

	for _, rule := range ruleTable {
		for _, keyword := range rule.keywords {
			if strings.Contains(lowered, keyword) {
				return rule.tag, nil
			}
		}
	}

	return TagGeneral, nil
}
