package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Entry is one row of the administrative hierarchy.
type Entry struct {
	District string `json:"district"`
	Block    string `json:"block"`
	Village  string `json:"village"`
}

// Static serves hierarchy reads from an in-memory table.
// Names are normalized to upper case, matching the directory records.
type Static struct {
	districts []string
	blocks    map[string][]string
	villages  map[string][]string
}

// NewStatic indexes entries for lookup. Blank levels are skipped, so partial
// rows (district only, district+block) are accepted.
func NewStatic(entries []Entry) *Static {
	districtSet := make(map[string]struct{})
	blockSets := make(map[string]map[string]struct{})
	villageSets := make(map[string]map[string]struct{})

	for _, e := range entries {
		district := normalize(e.District)
		if district == "" {
			continue
		}
		districtSet[district] = struct{}{}

		block := normalize(e.Block)
		if block == "" {
			continue
		}
		if blockSets[district] == nil {
			blockSets[district] = make(map[string]struct{})
		}
		blockSets[district][block] = struct{}{}

		village := normalize(e.Village)
		if village == "" {
			continue
		}
		if villageSets[block] == nil {
			villageSets[block] = make(map[string]struct{})
		}
		villageSets[block][village] = struct{}{}
	}

	return &Static{
		districts: sortedKeys(districtSet),
		blocks:    sortedSets(blockSets),
		villages:  sortedSets(villageSets),
	}
}

// LoadFile reads a JSON array of entries from path.
func LoadFile(path string) (*Static, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hierarchy file: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(content, &entries); err != nil {
		return nil, fmt.Errorf("parse hierarchy file: %w", err)
	}

	return NewStatic(entries), nil
}

func (s *Static) Districts(_ context.Context) ([]string, error) {
	return append([]string(nil), s.districts...), nil
}

func (s *Static) Blocks(_ context.Context, district string) ([]string, error) {
	return append([]string(nil), s.blocks[normalize(district)]...), nil
}

func (s *Static) Villages(_ context.Context, block string) ([]string, error) {
	return append([]string(nil), s.villages[normalize(block)]...), nil
}

func normalize(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedSets(sets map[string]map[string]struct{}) map[string][]string {
	out := make(map[string][]string, len(sets))
	for k, set := range sets {
		out[k] = sortedKeys(set)
	}
	return out
}
