// Package state holds per-user conversation state with merge-on-write updates.
package state

import "time"

// Role tags one history entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged turn history entry.
type Message struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Location is the three-level administrative hierarchy, resolved top-down.
// A level stays empty until resolved.
type Location struct {
	District string `json:"district,omitempty"`
	Block    string `json:"block,omitempty"`
	Village  string `json:"village,omitempty"`
}

// Complete reports whether all three levels are resolved.
func (l Location) Complete() bool {
	return l.District != "" && l.Block != "" && l.Village != ""
}

// ConversationState is the long-lived per-user record.
// Created on first contact, mutated only through Update merges, never deleted.
type ConversationState struct {
	UserID     string    `json:"user_id"`
	Name       string    `json:"name,omitempty"`
	Language   string    `json:"language,omitempty"`
	Occupation string    `json:"occupation,omitempty"`
	SkillLevel string    `json:"skill_level,omitempty"`
	Location   Location  `json:"location"`
	Latitude   *float64  `json:"latitude,omitempty"`
	Longitude  *float64  `json:"longitude,omitempty"`
	History    []Message `json:"history,omitempty"`
	LastRoute  string    `json:"last_route,omitempty"`
	Emergency  bool      `json:"emergency,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// LanguageOrDefault returns the preferred language, defaulting to Bengali.
func (s *ConversationState) LanguageOrDefault() string {
	if s == nil || s.Language == "" {
		return "Bengali"
	}
	return s.Language
}

// Clone returns a deep copy safe to hand to handlers.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}

	out := *s
	if s.Latitude != nil {
		lat := *s.Latitude
		out.Latitude = &lat
	}
	if s.Longitude != nil {
		lon := *s.Longitude
		out.Longitude = &lon
	}
	if len(s.History) > 0 {
		out.History = make([]Message, len(s.History))
		copy(out.History, s.History)
	}
	return &out
}

// Update is a partial state proposal produced by a handler or the runner.
// Zero-valued fields leave the stored value untouched.
type Update struct {
	Name       string
	Language   string
	Occupation string
	SkillLevel string
	District   string
	Block      string
	Village    string
	Latitude   *float64
	Longitude  *float64
	Append     []Message
	LastRoute  string
	Emergency  *bool
}

// IsZero reports whether the update proposes no change at all.
func (u Update) IsZero() bool {
	return u.Name == "" && u.Language == "" && u.Occupation == "" &&
		u.SkillLevel == "" && u.District == "" && u.Block == "" &&
		u.Village == "" && u.Latitude == nil && u.Longitude == nil &&
		len(u.Append) == 0 && u.LastRoute == "" && u.Emergency == nil
}
