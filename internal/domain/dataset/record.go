// Package dataset owns the sponsor data model: records, the deduplicating
// record builder, the serialized artifact formats (canonical, sharded,
// legacy) and the writer that publishes them with backups.
package dataset

import (
	"crypto/md5"
	"encoding/hex"
	"strings"

	"github.com/kakiii/kmatch/internal/domain/names"
)

// SponsorRecord is one organisation from the register, enriched with the
// derived lookup forms. Built once by the pipeline; treated as read-only
// everywhere else.
type SponsorRecord struct {
	ID             string   `json:"id"`
	PrimaryName    string   `json:"primaryName"`
	NormalizedName string   `json:"normalizedName"`
	Aliases        []string `json:"aliases"`
	SearchTokens   []string `json:"searchTokens"`
	FirstWords     []string `json:"firstWords"`
	Domain         string   `json:"domain,omitempty"`

	// Variations carries extra name arrays from older artifacts. Loaders
	// fold them into Aliases so query time never branches on shape.
	Variations []string `json:"variations,omitempty"`
}

// RecordID derives the stable identifier for a primary name: the first
// 8 hex characters of the MD5 of its lowercased form. Collision-safe at
// registry cardinality (thousands), not a security primitive.
func RecordID(name string) string {
	sum := md5.Sum([]byte(strings.ToLower(name)))
	return hex.EncodeToString(sum[:])[:8]
}

// NewRecord builds a record for a raw organisation name.
func NewRecord(name string) *SponsorRecord {
	rec := &SponsorRecord{
		ID:             RecordID(name),
		PrimaryName:    name,
		NormalizedName: names.Normalize(name),
		Aliases:        names.GenerateAliases(name),
		SearchTokens:   names.Tokenize(name),
		FirstWords:     names.ExtractFirstWords(name),
	}
	if d, ok := names.ExtractDomain(name); ok {
		rec.Domain = d
	}
	return rec
}

// Set is an immutable snapshot of records in ingestion order. The order
// matters: index construction and collision policy are defined over it.
type Set struct {
	records []*SponsorRecord
	byID    map[string]*SponsorRecord
}

// NewSet wraps records preserving their order. Records with duplicate
// ids keep the first occurrence.
func NewSet(records []*SponsorRecord) *Set {
	s := &Set{byID: make(map[string]*SponsorRecord, len(records))}
	for _, r := range records {
		if _, ok := s.byID[r.ID]; ok {
			continue
		}
		s.byID[r.ID] = r
		s.records = append(s.records, r)
	}
	return s
}

// Records returns the records in ingestion order. Callers must not
// mutate the returned slice.
func (s *Set) Records() []*SponsorRecord {
	return s.records
}

// ByID looks up a record by its identifier.
func (s *Set) ByID(id string) (*SponsorRecord, bool) {
	r, ok := s.byID[id]
	return r, ok
}

// Len reports the number of records.
func (s *Set) Len() int {
	return len(s.records)
}
