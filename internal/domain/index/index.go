// Package index builds the inverted lookup structures over a sponsor
// record set: first-word and search-token posting lists plus the unique
// normalized-name and domain maps.
package index

import (
	"log/slog"

	"github.com/kakiii/kmatch/internal/domain/dataset"
)

// Stats summarizes one index build.
type Stats struct {
	Records              int
	FirstWordKeys        int
	SearchTokenKeys      int
	NormalizedCollisions int
	DomainCollisions     int
}

// Build walks the record set once, in ingestion order, and fills all
// four indexes. ByNormalizedName and ByDomain keep the first record
// that claims a key; later claimants are counted as collisions and
// logged, never silently preferred. Posting lists append ids in
// ingestion order, at most once per key.
func Build(set *dataset.Set, log *slog.Logger) (*dataset.Indexes, Stats) {
	if log == nil {
		log = slog.Default()
	}

	idx := dataset.NewIndexes()
	stats := Stats{Records: set.Len()}

	for _, rec := range set.Records() {
		for _, w := range rec.FirstWords {
			appendPosting(idx.ByFirstWord, w, rec.ID)
		}
		for _, tok := range rec.SearchTokens {
			appendPosting(idx.BySearchToken, tok, rec.ID)
		}

		if rec.NormalizedName != "" {
			if prev, taken := idx.ByNormalizedName[rec.NormalizedName]; taken {
				if prev != rec.ID {
					stats.NormalizedCollisions++
					log.Debug("normalized name collision",
						"key", rec.NormalizedName,
						"kept", prev,
						"dropped", rec.ID)
				}
			} else {
				idx.ByNormalizedName[rec.NormalizedName] = rec.ID
			}
		}

		if rec.Domain != "" {
			if prev, taken := idx.ByDomain[rec.Domain]; taken {
				if prev != rec.ID {
					stats.DomainCollisions++
				}
			} else {
				idx.ByDomain[rec.Domain] = rec.ID
			}
		}
	}

	stats.FirstWordKeys = len(idx.ByFirstWord)
	stats.SearchTokenKeys = len(idx.BySearchToken)
	return idx, stats
}

// appendPosting adds id under key unless it is already the most recent
// entry there. Records emit each key once, so checking the tail is
// enough to keep postings duplicate-free per key.
func appendPosting(m map[string][]string, key, id string) {
	if key == "" {
		return
	}
	ids := m[key]
	if n := len(ids); n > 0 && ids[n-1] == id {
		return
	}
	m[key] = append(m[key], id)
}
