package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// legacyDateLayout is the lastUpdated format older consumers expect.
const legacyDateLayout = "02-01-2006"

// legacyArtifact is the original sponsors.json shape: names grouped
// under the lowercased first word of the organisation.
type legacyArtifact struct {
	LastUpdated string              `json:"lastUpdated"`
	Sponsors    map[string][]string `json:"sponsors"`
}

// legacyView groups a record set into the legacy artifact shape.
func legacyView(set *Set, now time.Time) *legacyArtifact {
	groups := make(map[string][]string)
	for _, r := range set.Records() {
		key := legacyKey(r)
		groups[key] = append(groups[key], r.PrimaryName)
	}
	return &legacyArtifact{
		LastUpdated: now.Format(legacyDateLayout),
		Sponsors:    groups,
	}
}

func legacyKey(r *SponsorRecord) string {
	if len(r.FirstWords) > 0 {
		return r.FirstWords[0]
	}
	return strings.ToLower(r.PrimaryName)
}

// ReadLegacy loads organisation names from a legacy sponsors.json.
// Group keys are walked in sorted order so the result is deterministic.
func ReadLegacy(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read legacy artifact: %w", err)
	}
	var legacy legacyArtifact
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("decode legacy artifact %s: %w", path, err)
	}
	if legacy.Sponsors == nil {
		return nil, fmt.Errorf("legacy artifact %s has no sponsors", path)
	}

	keys := make([]string, 0, len(legacy.Sponsors))
	for k := range legacy.Sponsors {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []string
	for _, k := range keys {
		out = append(out, legacy.Sponsors[k]...)
	}
	return out, nil
}
