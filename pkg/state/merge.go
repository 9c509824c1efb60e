package state

import (
	"strings"
	"time"
)

// apply folds an update into the state in place.
//
// Scalar fields follow merge-on-write: a non-empty new value replaces the old
// one, an empty value preserves it. History is append-only. A changed district
// clears block and village, and a changed block clears village, so stale lower
// levels are never silently retained across a hierarchy override.
func apply(s *ConversationState, u Update, now time.Time) {
	if v := strings.TrimSpace(u.Name); v != "" {
		s.Name = v
	}
	if v := strings.TrimSpace(u.Language); v != "" {
		s.Language = v
	}
	if v := strings.TrimSpace(u.Occupation); v != "" {
		s.Occupation = v
	}
	if v := strings.TrimSpace(u.SkillLevel); v != "" {
		s.SkillLevel = v
	}

	applyLocation(&s.Location, u)

	if u.Latitude != nil {
		lat := *u.Latitude
		s.Latitude = &lat
	}
	if u.Longitude != nil {
		lon := *u.Longitude
		s.Longitude = &lon
	}

	for _, msg := range u.Append {
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		if msg.At.IsZero() {
			msg.At = now
		}
		s.History = append(s.History, msg)
	}

	if v := strings.TrimSpace(u.LastRoute); v != "" {
		s.LastRoute = v
	}
	if u.Emergency != nil {
		s.Emergency = *u.Emergency
	}

	s.UpdatedAt = now
}

func applyLocation(loc *Location, u Update) {
	district := strings.TrimSpace(u.District)
	block := strings.TrimSpace(u.Block)
	village := strings.TrimSpace(u.Village)

	if district != "" && district != loc.District {
		loc.District = district
		loc.Block = ""
		loc.Village = ""
	}
	if block != "" && block != loc.Block {
		loc.Block = block
		loc.Village = ""
	}
	if village != "" {
		loc.Village = village
	}
}
