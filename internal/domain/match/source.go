package match

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kakiii/kmatch/internal/domain/dataset"
	"github.com/kakiii/kmatch/internal/domain/index"
	"github.com/kakiii/kmatch/internal/domain/names"
)

// Source is what an engine can load: a prebuilt artifact carrying its
// indexes, or a raw record set whose indexes are rebuilt during load.
// The variant is resolved exactly once, inside Load; afterwards the
// engine holds a single canonical representation.
type Source struct {
	artifact *dataset.Artifact
	raw      []*dataset.SponsorRecord
}

// Prebuilt wraps a canonical artifact. When its indexes are intact the
// index build is skipped; otherwise Load falls back to the raw path.
func Prebuilt(a *dataset.Artifact) Source {
	return Source{artifact: a}
}

// Raw wraps plain records; indexes are rebuilt during Load.
func Raw(records []*dataset.SponsorRecord) Source {
	return Source{raw: records}
}

// RawNames builds records from bare organisation names, the shape legacy
// artifacts provide.
func RawNames(orgs []string) Source {
	records := make([]*dataset.SponsorRecord, 0, len(orgs))
	for _, o := range orgs {
		if strings.TrimSpace(o) == "" {
			continue
		}
		records = append(records, dataset.NewRecord(o))
	}
	return Raw(records)
}

// FromFile sniffs path and returns the matching source: a canonical
// artifact (or single shard) first, the legacy first-word grouping as
// the fallback.
func FromFile(path string) (Source, error) {
	art, artErr := dataset.ReadArtifact(path)
	if artErr == nil {
		return Prebuilt(art), nil
	}

	orgs, legacyErr := dataset.ReadLegacy(path)
	if legacyErr == nil {
		return RawNames(orgs), nil
	}

	return Source{}, fmt.Errorf("%s is neither a dataset artifact (%v) nor a legacy sponsor file (%v)",
		path, artErr, legacyErr)
}

// FromManifest merges every shard a manifest lists into one raw source.
func FromManifest(path string) (Source, error) {
	m, err := dataset.ReadManifest(path)
	if err != nil {
		return Source{}, err
	}
	dir := filepath.Dir(path)

	var records []*dataset.SponsorRecord
	seen := make(map[string]struct{})
	for _, entry := range m.Files {
		shard, err := dataset.ReadShard(filepath.Join(dir, entry.File))
		if err != nil {
			return Source{}, fmt.Errorf("manifest names unreadable shard: %w", err)
		}
		for id, rec := range shard.Sponsors {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			records = append(records, rec)
		}
	}
	sortRecords(records)
	return Raw(records), nil
}

// Load resolves src into the engine's canonical in-memory form. It
// fails loud on an empty or double load; after it returns nil the
// engine is immutable apart from the query cache.
func (e *Engine) Load(src Source) error {
	if e.loaded {
		return ErrAlreadyLoaded
	}

	switch {
	case src.artifact != nil:
		records := src.artifact.Sponsors
		if len(records) == 0 {
			return ErrNoRecords
		}
		if idx := src.artifact.Index; indexUsable(idx) {
			e.commit(records, idx)
			return nil
		}

		e.log.Warn("artifact has no usable index, rebuilding",
			"records", len(records))
		ordered := make([]*dataset.SponsorRecord, 0, len(records))
		for _, rec := range records {
			ordered = append(ordered, rec)
		}
		sortRecords(ordered)
		return e.loadRaw(ordered)

	case len(src.raw) > 0:
		return e.loadRaw(src.raw)

	default:
		return ErrNoRecords
	}
}

// loadRaw wraps records into an ordered set, rebuilds the indexes and
// commits.
func (e *Engine) loadRaw(records []*dataset.SponsorRecord) error {
	set := dataset.NewSet(records)
	if set.Len() == 0 {
		return ErrNoRecords
	}
	idx, stats := index.Build(set, e.log)
	e.log.Debug("indexes rebuilt on load",
		"records", stats.Records,
		"tokenKeys", stats.SearchTokenKeys,
		"collisions", stats.NormalizedCollisions)

	byID := make(map[string]*dataset.SponsorRecord, set.Len())
	for _, rec := range set.Records() {
		byID[rec.ID] = rec
	}
	e.commit(byID, idx)
	return nil
}

// indexUsable requires the three lookup maps a query path depends on.
// A partially decoded index is rebuilt rather than trusted.
func indexUsable(idx *dataset.Indexes) bool {
	return idx != nil &&
		idx.ByNormalizedName != nil &&
		idx.ByFirstWord != nil &&
		idx.BySearchToken != nil
}

// sortRecords orders records by folded, lowercased primary name so raw
// loads resolve identically across processes.
func sortRecords(records []*dataset.SponsorRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return loadKey(records[i].PrimaryName) < loadKey(records[j].PrimaryName)
	})
}

func loadKey(name string) string {
	return strings.ToLower(names.Fold(name))
}
