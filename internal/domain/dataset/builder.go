package dataset

import (
	"log/slog"
	"strings"
	"unicode"

	"github.com/kakiii/kmatch/internal/ports"
)

// BuildStats summarizes one record-building pass.
type BuildStats struct {
	Rows              int
	Records           int
	DuplicatesDropped int
	MalformedSkipped  int
}

// Builder turns raw source rows into a record set. Deduplication is
// case-insensitive exact-string on the organisation name; the first
// occurrence wins and later duplicates are dropped. Malformed rows are
// warned and skipped; a single bad row never aborts a build.
type Builder struct {
	log *slog.Logger
}

// NewBuilder returns a Builder logging through log, or slog.Default()
// when log is nil.
func NewBuilder(log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{log: log}
}

// Build processes rows in order into an immutable record set.
func (b *Builder) Build(rows []ports.Row) (*Set, BuildStats) {
	stats := BuildStats{Rows: len(rows)}

	seen := make(map[string]struct{}, len(rows))
	records := make([]*SponsorRecord, 0, len(rows))

	for i, row := range rows {
		name := strings.TrimSpace(row.Organisation)
		if !validName(name) {
			stats.MalformedSkipped++
			b.log.Warn("skipping malformed row", "row", i, "organisation", row.Organisation)
			continue
		}

		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			stats.DuplicatesDropped++
			b.log.Debug("dropping duplicate organisation", "row", i, "organisation", name)
			continue
		}
		seen[key] = struct{}{}
		records = append(records, NewRecord(name))
	}

	stats.Records = len(records)
	return NewSet(records), stats
}

// validName requires at least one letter or digit; empty strings and
// pure punctuation/control noise are malformed.
func validName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
