// Package kmatch answers one question: is this organisation a
// recognised sponsor? It loads a published sponsor dataset once and
// then serves concurrent lookups from memory.
//
//	m, err := kmatch.LoadFile("data/sponsors-dataset.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if m.IsRecognizedSponsor("asml holding") {
//		// on the register
//	}
//
// LoadFile accepts both the canonical dataset artifact and the legacy
// first-word sponsor file; LoadManifest merges a sharded artifact. The
// pipeline that produces these files lives in cmd/kmatch.
package kmatch

import (
	"log/slog"

	"github.com/kakiii/kmatch/internal/domain/match"
)

// Details is the per-stage diagnostic view of one query.
type Details = match.Details

// Match stage labels reported in Details.MatchedTypes.
const (
	StageExact      = match.StageExact
	StageNormalized = match.StageNormalized
	StageOverlap    = match.StageOverlap
	StageFuzzy      = match.StageFuzzy
)

// DefaultThreshold is the fuzzy similarity floor used when Config leaves
// Threshold zero.
const DefaultThreshold = match.DefaultThreshold

var (
	// ErrAlreadyLoaded rejects a second load; build a new Matcher to
	// pick up a fresh dataset.
	ErrAlreadyLoaded = match.ErrAlreadyLoaded
	// ErrNoRecords rejects loading an empty dataset.
	ErrNoRecords = match.ErrNoRecords
)

// Config tunes a Matcher before load. The zero value is ready to use.
type Config struct {
	// Threshold is the fuzzy similarity floor; 0 means DefaultThreshold.
	Threshold float64
	// Logger receives load diagnostics; nil means slog.Default().
	Logger *slog.Logger
}

// Matcher answers sponsor queries over one loaded dataset. Load exactly
// once; afterwards every method is safe for concurrent use.
type Matcher struct {
	eng *match.Engine
}

// New returns an unloaded Matcher. Every query answers false until one
// of the Load methods succeeds.
func New(cfg Config) *Matcher {
	return &Matcher{eng: match.New(match.Config{
		Threshold: cfg.Threshold,
		Logger:    cfg.Logger,
	})}
}

// LoadFile loads a dataset artifact, a single shard, or a legacy
// sponsor file from path.
func (m *Matcher) LoadFile(path string) error {
	src, err := match.FromFile(path)
	if err != nil {
		return err
	}
	return m.eng.Load(src)
}

// LoadManifest merges every shard a manifest lists and loads the result.
func (m *Matcher) LoadManifest(path string) error {
	src, err := match.FromManifest(path)
	if err != nil {
		return err
	}
	return m.eng.Load(src)
}

// LoadNames loads bare organisation names, rebuilding every derived
// form. Blank names are dropped.
func (m *Matcher) LoadNames(orgs []string) error {
	return m.eng.Load(match.RawNames(orgs))
}

// IsRecognizedSponsor reports whether name refers to an organisation on
// the loaded register. Empty input and an unloaded matcher answer false.
func (m *Matcher) IsRecognizedSponsor(name string) bool {
	return m.eng.IsRecognizedSponsor(name)
}

// MatchDetails evaluates every match stage for name and reports which
// ones hit, without touching the query cache.
func (m *Matcher) MatchDetails(name string) Details {
	return m.eng.MatchDetails(name)
}

// Loaded reports whether a dataset has been loaded.
func (m *Matcher) Loaded() bool {
	return m.eng.Loaded()
}

// Size reports the number of loaded records.
func (m *Matcher) Size() int {
	return m.eng.Size()
}

// String describes the matcher state for logs.
func (m *Matcher) String() string {
	return m.eng.String()
}

// LoadFile builds a Matcher with default settings from a dataset
// artifact or legacy sponsor file.
func LoadFile(path string) (*Matcher, error) {
	m := New(Config{})
	if err := m.LoadFile(path); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadManifest builds a Matcher with default settings from a sharded
// artifact's manifest.
func LoadManifest(path string) (*Matcher, error) {
	m := New(Config{})
	if err := m.LoadManifest(path); err != nil {
		return nil, err
	}
	return m, nil
}
