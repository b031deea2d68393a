// Package changes decides whether a freshly fetched register differs
// from the previous snapshot, and how. A raw-byte hash gives the cheap
// fast path; the semantic diff keyed by organisation name gives the
// truth. The two signals are deliberately kept apart: formatting churn
// flips the hash without producing a single semantic change.
package changes

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sort"
	"strings"

	"github.com/kakiii/kmatch/internal/ports"
)

// Result reports one comparison of new input against the prior snapshot.
type Result struct {
	// HasChanges is true only when the semantic diff is non-empty.
	HasChanges bool
	// Hash is the SHA-256 of the new raw input, for the next snapshot.
	Hash string

	Added    []string
	Removed  []string
	Modified []string
}

// HashRaw fingerprints a raw source blob.
func HashRaw(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Detector diffs register snapshots.
type Detector struct {
	log *slog.Logger
}

// NewDetector returns a Detector logging through log, or slog.Default()
// when log is nil.
func NewDetector(log *slog.Logger) *Detector {
	if log == nil {
		log = slog.Default()
	}
	return &Detector{log: log}
}

// Detect compares newRows (parsed from raw) against the previous
// snapshot. When the raw hash equals prevHash the diff is skipped
// entirely. A missing previous snapshot (empty prevHash, nil prevRows)
// diffs against the empty set: everything counts as added.
func (d *Detector) Detect(prevHash string, prevRows, newRows []ports.Row, raw []byte) Result {
	res := Result{Hash: HashRaw(raw)}

	if prevHash != "" && res.Hash == prevHash {
		d.log.Debug("source unchanged", "hash", res.Hash)
		return res
	}

	old := keyRows(prevRows)
	cur := keyRows(newRows)

	for name, row := range cur {
		prev, existed := old[name]
		switch {
		case !existed:
			res.Added = append(res.Added, row.Organisation)
		case !equalFields(prev.Fields, row.Fields):
			res.Modified = append(res.Modified, row.Organisation)
		}
	}
	for name, row := range old {
		if _, still := cur[name]; !still {
			res.Removed = append(res.Removed, row.Organisation)
		}
	}

	sort.Strings(res.Added)
	sort.Strings(res.Removed)
	sort.Strings(res.Modified)

	res.HasChanges = len(res.Added)+len(res.Removed)+len(res.Modified) > 0
	if !res.HasChanges {
		d.log.Debug("hash changed but content did not", "hash", res.Hash)
	}
	return res
}

// keyRows maps rows by trimmed organisation name, first occurrence wins.
func keyRows(rows []ports.Row) map[string]ports.Row {
	m := make(map[string]ports.Row, len(rows))
	for _, r := range rows {
		name := strings.TrimSpace(r.Organisation)
		if name == "" {
			continue
		}
		if _, ok := m[name]; !ok {
			m[name] = r
		}
	}
	return m
}

func equalFields(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
