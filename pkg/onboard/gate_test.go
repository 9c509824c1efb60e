package onboard

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"unicode/utf8"

	"sahayak/pkg/classify"
	"sahayak/pkg/directory"
	"sahayak/pkg/state"
)

func testDirectory() directory.Directory {
	entries := []directory.Entry{
		{District: "NADIA", Block: "HARINGHATA", Village: "MOLLABELIA"},
		{District: "NADIA", Block: "HARINGHATA", Village: "NAGARUKHRA"},
		{District: "NADIA", Block: "CHAKDAHA", Village: "TATLA"},
		{District: "HOWRAH", Block: "BALLY", Village: "DURGAPUR"},
	}
	return directory.NewStatic(entries)
}

func TestCheckPassesWithoutLocationNeed(t *testing.T) {
	t.Parallel()

	gate := NewGate(testDirectory(), 10, nil)
	st := &state.ConversationState{UserID: "u1"}

	action, err := gate.Check(context.Background(), st, classify.TagGeneral)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if action != nil {
		t.Fatalf("greeting intent must pass the gate, got %+v", action)
	}
}

func TestCheckAsksForLevelsTopDown(t *testing.T) {
	t.Parallel()

	gate := NewGate(testDirectory(), 10, nil)
	ctx := context.Background()

	st := &state.ConversationState{UserID: "u1", Language: "English"}
	action, err := gate.Check(ctx, st, classify.TagJobs)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if action == nil || action.Level != LevelDistrict {
		t.Fatalf("expected district menu, got %+v", action)
	}
	if len(action.Menu.Sections) != 1 || len(action.Menu.Sections[0].Rows) != 2 {
		t.Fatalf("district menu rows = %+v", action.Menu.Sections)
	}
	if action.Menu.Prompt == "" || action.Menu.ButtonLabel != "View Districts" {
		t.Fatalf("menu chrome = %+v", action.Menu)
	}

	st.Location.District = "NADIA"
	action, err = gate.Check(ctx, st, classify.TagLegal)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if action == nil || action.Level != LevelBlock {
		t.Fatalf("expected block menu, got %+v", action)
	}

	st.Location.Block = "HARINGHATA"
	action, err = gate.Check(ctx, st, classify.TagReporting)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if action == nil || action.Level != LevelVillage {
		t.Fatalf("expected village menu, got %+v", action)
	}

	st.Location.Village = "MOLLABELIA"
	action, err = gate.Check(ctx, st, classify.TagJobs)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if action != nil {
		t.Fatalf("complete hierarchy must pass the gate, got %+v", action)
	}
}

func TestCheckCapsMenuRows(t *testing.T) {
	t.Parallel()

	entries := make([]directory.Entry, 0, 25)
	for i := 0; i < 25; i++ {
		entries = append(entries, directory.Entry{District: fmt.Sprintf("DISTRICT-%02d", i)})
	}

	gate := NewGate(directory.NewStatic(entries), 10, nil)
	action, err := gate.Check(context.Background(), &state.ConversationState{}, classify.TagJobs)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if got := len(action.Menu.Sections[0].Rows); got != 10 {
		t.Fatalf("menu rows = %d, want capped at 10", got)
	}
}

func TestCheckPromptFollowsLanguage(t *testing.T) {
	t.Parallel()

	gate := NewGate(testDirectory(), 10, nil)
	ctx := context.Background()

	bengali, err := gate.Check(ctx, &state.ConversationState{}, classify.TagJobs)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	english, err := gate.Check(ctx, &state.ConversationState{Language: "English"}, classify.TagJobs)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if bengali.Menu.Prompt == english.Menu.Prompt {
		t.Fatal("expected language-specific prompts")
	}
}

func TestResolveFillsNextMissingLevel(t *testing.T) {
	t.Parallel()

	gate := NewGate(testDirectory(), 10, nil)
	ctx := context.Background()

	st := &state.ConversationState{UserID: "u1"}
	update, err := gate.Resolve(ctx, st, "Nadia")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if update.District != "NADIA" {
		t.Fatalf("district update = %+v", update)
	}

	st.Location.District = "NADIA"
	update, err = gate.Resolve(ctx, st, "haringhata")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if update.Block != "HARINGHATA" {
		t.Fatalf("block update = %+v", update)
	}

	// A selection that matches no candidate is ignored.
	update, err = gate.Resolve(ctx, st, "LONDON")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !update.IsZero() {
		t.Fatalf("invalid selection produced update %+v", update)
	}
}

type gappedDirectory struct{}

func (gappedDirectory) Districts(context.Context) ([]string, error) {
	return []string{"NADIA"}, nil
}
func (gappedDirectory) Blocks(context.Context, string) ([]string, error) { return nil, nil }
func (gappedDirectory) Villages(context.Context, string) ([]string, error) { return nil, nil }

func TestCheckFallsBackToTextOnDirectoryGap(t *testing.T) {
	t.Parallel()

	gate := NewGate(gappedDirectory{}, 10, nil)
	st := &state.ConversationState{UserID: "u1", Language: "English"}
	st.Location.District = "NADIA"

	action, err := gate.Check(context.Background(), st, classify.TagJobs)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if action == nil {
		t.Fatal("expected an action for the missing block")
	}
	if action.Text == "" {
		t.Fatal("expected a text reply when the directory has no candidates")
	}
	if len(action.Menu.Sections) != 0 {
		t.Fatalf("rowless menu must not be built, got %+v", action.Menu)
	}
}

func TestTitleCasePreservesMultibyteRunes(t *testing.T) {
	t.Parallel()

	label := "মোল্লাবেলিয়া"
	got := titleCase(label)
	if !utf8.ValidString(got) {
		t.Fatalf("titleCase produced invalid UTF-8: %q", got)
	}
	if got != label {
		t.Fatalf("titleCase(%q) = %q, want unchanged", label, got)
	}
}

type failingDirectory struct{}

func (failingDirectory) Districts(context.Context) ([]string, error) {
	return nil, errors.New("directory down")
}
func (failingDirectory) Blocks(context.Context, string) ([]string, error) {
	return nil, errors.New("directory down")
}
func (failingDirectory) Villages(context.Context, string) ([]string, error) {
	return nil, errors.New("directory down")
}

func TestCheckSurfacesDirectoryErrors(t *testing.T) {
	t.Parallel()

	gate := NewGate(failingDirectory{}, 10, nil)
	if _, err := gate.Check(context.Background(), &state.ConversationState{}, classify.TagJobs); err == nil {
		t.Fatal("expected directory error")
	}
}
