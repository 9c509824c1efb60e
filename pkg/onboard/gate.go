// Package onboard gates location-dependent routing behind a resolved
// district/block/village hierarchy.
package onboard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"sahayak/pkg/bus"
	"sahayak/pkg/classify"
	"sahayak/pkg/directory"
	"sahayak/pkg/state"
)

// Level is one step of the hierarchy, resolved strictly top-down.
type Level string

const (
	LevelDistrict Level = "district"
	LevelBlock    Level = "block"
	LevelVillage  Level = "village"
)

// MenuAction asks the user for the next missing hierarchy level. Text is set
// instead of Menu when the directory has no candidates for the level, since
// channels reject list messages without rows.
type MenuAction struct {
	Level Level
	Menu  bus.Menu
	Text  string
}

// Gate decides whether routing may proceed for an intent, and builds the
// onboarding menu when it may not.
type Gate struct {
	dir      directory.Directory
	rowLimit int
	log      *slog.Logger
}

func NewGate(dir directory.Directory, rowLimit int, log *slog.Logger) *Gate {
	if rowLimit <= 0 {
		rowLimit = 10
	}
	if log == nil {
		log = slog.Default()
	}
	return &Gate{
		dir:      dir,
		rowLimit: rowLimit,
		log:      log.With("component", "onboard.gate"),
	}
}

// Check returns nil when routing may proceed: either the intent does not need
// location, or all three levels are resolved. Otherwise it returns the menu
// action for the next missing level.
func (g *Gate) Check(ctx context.Context, st *state.ConversationState, tag classify.Tag) (*MenuAction, error) {
	if !classify.NeedsLocation(tag) {
		return nil, nil
	}
	if st.Location.Complete() {
		return nil, nil
	}

	level, values, err := g.nextLevel(ctx, st)
	if err != nil {
		return nil, err
	}

	g.log.Debug("Onboarding incomplete for intent", "intent", string(tag), "missing_level", string(level), "user_id", st.UserID)

	if len(values) == 0 {
		g.log.Warn("Directory has no candidates for level", "level", string(level), "user_id", st.UserID)
		return &MenuAction{
			Level: level,
			Text:  unavailablePrompt(st.LanguageOrDefault()),
		}, nil
	}

	return &MenuAction{
		Level: level,
		Menu:  g.buildMenu(level, values, st.LanguageOrDefault()),
	}, nil
}

// Resolve assigns a menu selection to the next missing level, validating it
// against the directory. Selections that match no candidate are ignored so a
// stray tap cannot corrupt the hierarchy.
func (g *Gate) Resolve(ctx context.Context, st *state.ConversationState, selection string) (state.Update, error) {
	cleaned := strings.ToUpper(strings.TrimSpace(selection))
	if cleaned == "" || st.Location.Complete() {
		return state.Update{}, nil
	}

	level, values, err := g.nextLevel(ctx, st)
	if err != nil {
		return state.Update{}, err
	}

	for _, value := range values {
		if strings.EqualFold(value, cleaned) {
			switch level {
			case LevelDistrict:
				return state.Update{District: value}, nil
			case LevelBlock:
				return state.Update{Block: value}, nil
			case LevelVillage:
				return state.Update{Village: value}, nil
			}
		}
	}

	g.log.Debug("Selection matched no candidate", "selection", selection, "level", string(level))
	return state.Update{}, nil
}

func (g *Gate) nextLevel(ctx context.Context, st *state.ConversationState) (Level, []string, error) {
	switch {
	case st.Location.District == "":
		values, err := g.dir.Districts(ctx)
		if err != nil {
			return "", nil, fmt.Errorf("list districts: %w", err)
		}
		return LevelDistrict, values, nil
	case st.Location.Block == "":
		values, err := g.dir.Blocks(ctx, st.Location.District)
		if err != nil {
			return "", nil, fmt.Errorf("list blocks for %s: %w", st.Location.District, err)
		}
		return LevelBlock, values, nil
	default:
		values, err := g.dir.Villages(ctx, st.Location.Block)
		if err != nil {
			return "", nil, fmt.Errorf("list villages for %s: %w", st.Location.Block, err)
		}
		return LevelVillage, values, nil
	}
}

func (g *Gate) buildMenu(level Level, values []string, language string) bus.Menu {
	if len(values) > g.rowLimit {
		values = values[:g.rowLimit]
	}

	rows := make([]bus.MenuRow, 0, len(values))
	for _, value := range values {
		rows = append(rows, bus.MenuRow{ID: value, Label: titleCase(value)})
	}

	return bus.Menu{
		Prompt:      prompt(language, level),
		ButtonLabel: buttonLabel(level),
		Sections: []bus.MenuSection{{
			Title: "Select " + titleCase(string(level)),
			Rows:  rows,
		}},
	}
}

func titleCase(value string) string {
	words := strings.Fields(strings.ToLower(value))
	for i, word := range words {
		first, size := utf8.DecodeRuneInString(word)
		words[i] = string(unicode.ToUpper(first)) + word[size:]
	}
	return strings.Join(words, " ")
}

func buttonLabel(level Level) string {
	return "View " + titleCase(string(level)) + "s"
}
