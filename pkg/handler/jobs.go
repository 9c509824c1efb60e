package handler

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"sahayak/pkg/bus"
	"sahayak/pkg/provider"
	providertypes "sahayak/pkg/provider/types"
	"sahayak/pkg/state"
)

// Job is one community-vetted opening near the user.
type Job struct {
	Title    string
	Site     string
	Village  string
	DailyPay string
}

// JobFinder matches openings to a skill set and a resolved location.
type JobFinder interface {
	Match(ctx context.Context, skills string, loc state.Location) ([]Job, error)
}

// Jobs finds local work for the user. The onboarding gate guarantees a
// complete location before this handler runs.
type Jobs struct {
	finder JobFinder
	client provider.Client
	model  string
}

// NewJobs builds the handler. client may be nil; the job list is then
// formatted without a model pass.
func NewJobs(finder JobFinder, client provider.Client, model string) *Jobs {
	return &Jobs{finder: finder, client: client, model: model}
}

func (h *Jobs) Name() string { return NameJobs }

func (h *Jobs) Handle(ctx context.Context, st *state.ConversationState, event bus.InboundEvent) (state.Update, Output, error) {
	skills := strings.TrimSpace(st.Occupation)
	if skills == "" || strings.EqualFold(skills, "none") {
		skills = "labor"
	}

	jobs, err := h.finder.Match(ctx, skills, st.Location)
	if err != nil {
		return state.Update{}, Output{}, fmt.Errorf("match jobs: %w", err)
	}

	update := state.Update{LastRoute: NameJobs}
	if len(jobs) == 0 {
		return update, Output{
			Text: fmt.Sprintf("No openings for %q near %s right now. I will keep looking. Try again in a few days.", skills, titleCase(st.Location.Village)),
			Done: true,
		}, nil
	}

	report := formatJobs(jobs)
	if h.client == nil {
		return update, Output{Text: report, Done: true}, nil
	}

	text, err := h.client.Complete(ctx, providertypes.CompletionRequest{
		System: fmt.Sprintf("You present job findings to an informal worker in %s. Keep every fact exactly as given; translate and soften the tone, at most five short lines.", st.LanguageOrDefault()),
		Prompt: fmt.Sprintf("User asked: %q\nMatched openings:\n%s", event.Text, report),
		Model:  h.model,
	})
	if err != nil {
		return state.Update{}, Output{}, fmt.Errorf("jobs completion: %w", err)
	}

	return update, Output{Text: text, Done: true}, nil
}

func formatJobs(jobs []Job) string {
	var b strings.Builder
	for i, job := range jobs {
		fmt.Fprintf(&b, "%d. %s at %s (%s), daily pay %s\n", i+1, job.Title, job.Site, titleCase(job.Village), job.DailyPay)
	}
	return strings.TrimRight(b.String(), "\n")
}

// StaticJobFinder serves a fixed job table filtered by village, then block.
// Used by the local chat command and tests.
type StaticJobFinder struct {
	ByVillage map[string][]Job
	ByBlock   map[string][]Job
}

func (f *StaticJobFinder) Match(_ context.Context, _ string, loc state.Location) ([]Job, error) {
	if jobs, ok := f.ByVillage[loc.Village]; ok {
		return jobs, nil
	}
	return f.ByBlock[loc.Block], nil
}

func titleCase(value string) string {
	words := strings.Fields(strings.ToLower(value))
	for i, word := range words {
		first, size := utf8.DecodeRuneInString(word)
		words[i] = string(unicode.ToUpper(first)) + word[size:]
	}
	return strings.Join(words, " ")
}
