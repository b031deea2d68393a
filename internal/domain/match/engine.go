// Package match implements the layered sponsor matcher: exact and
// normalized lookups first, token-overlap scoring over index candidates
// next, bounded edit distance last. Queries are cached for the engine's
// lifetime. A matcher loads once; reloading means building a fresh
// engine and swapping the reference.
package match

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"

	"github.com/kakiii/kmatch/internal/domain/dataset"
	"github.com/kakiii/kmatch/internal/domain/names"
)

// DefaultThreshold is the fuzzy similarity floor: a candidate within
// floor((1-threshold) * len(query)) edits is accepted.
const DefaultThreshold = 0.85

// maxQueryLen caps query length before Levenshtein work so a pathological
// input cannot inflate the distance computation.
const maxQueryLen = 200

// Overlap acceptance floors. Short token sets need near-total overlap
// to suppress false positives.
const (
	overlapFloor      = 0.6
	overlapFloorShort = 0.8
	shortSetLimit     = 3
)

// Match stage labels reported by Details.
const (
	StageExact      = "exact"
	StageNormalized = "normalized"
	StageOverlap    = "token_overlap"
	StageFuzzy      = "fuzzy"
)

var (
	// ErrAlreadyLoaded rejects a second load; reload by building a new
	// engine and swapping the reference.
	ErrAlreadyLoaded = errors.New("matcher already loaded")
	// ErrNoRecords rejects loading an empty dataset.
	ErrNoRecords = errors.New("dataset has no records")
)

// Config tunes an Engine before load.
type Config struct {
	// Threshold is the fuzzy similarity floor; 0 means DefaultThreshold.
	Threshold float64
	// Logger receives load and build diagnostics; nil means slog.Default().
	Logger *slog.Logger
}

// Engine answers sponsor queries over one loaded dataset. All lookup
// maps are filled during Load and read-only afterwards, so concurrent
// queries are safe; only the result cache mutates and it has its own
// lock.
type Engine struct {
	threshold float64
	log       *slog.Logger

	loaded  bool
	records map[string]*dataset.SponsorRecord
	idx     *dataset.Indexes
	exact   map[string]string // lowercased primary/alias/variation -> id

	cacheMu sync.RWMutex
	cache   map[string]bool // lowercased trimmed query -> outcome
}

// New returns an unloaded Engine. Every query against it answers false
// until a dataset is loaded.
func New(cfg Config) *Engine {
	threshold := cfg.Threshold
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultThreshold
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		threshold: threshold,
		log:       log,
		cache:     make(map[string]bool),
	}
}

// Loaded reports whether a dataset has been resolved into the engine.
func (e *Engine) Loaded() bool {
	return e.loaded
}

// Size reports the number of loaded records.
func (e *Engine) Size() int {
	return len(e.records)
}

// IsRecognizedSponsor reports whether name refers to an organisation on
// the loaded register. Empty input and an unloaded engine answer false;
// queries never fail once load has succeeded.
func (e *Engine) IsRecognizedSponsor(name string) bool {
	q := strings.TrimSpace(name)
	if q == "" || !e.loaded {
		return false
	}
	key := strings.ToLower(q)
	if r := []rune(key); len(r) > maxQueryLen {
		key = string(r[:maxQueryLen])
	}

	e.cacheMu.RLock()
	cached, ok := e.cache[key]
	e.cacheMu.RUnlock()
	if ok {
		return cached
	}

	matched := e.match(key)

	e.cacheMu.Lock()
	e.cache[key] = matched
	e.cacheMu.Unlock()
	return matched
}

// match runs the staged strategy over a lowercased, trimmed query.
func (e *Engine) match(q string) bool {
	if _, ok := e.exact[q]; ok {
		return true
	}
	if e.normalizedHit(q) {
		return true
	}

	probes, qTokens := queryTokens(q)
	candidates := e.gatherCandidates(probes)
	for _, id := range candidates {
		if e.overlapHit(qTokens, e.records[id]) {
			return true
		}
	}

	maxDist := e.maxDistance(q)
	if maxDist < 1 {
		return false
	}
	for _, id := range candidates {
		if e.fuzzyHit(q, e.records[id], maxDist) {
			return true
		}
	}
	return false
}

func (e *Engine) normalizedHit(q string) bool {
	n := names.Normalize(q)
	if n == "" {
		return false
	}
	_, ok := e.idx.ByNormalizedName[n]
	return ok
}

// queryTokens is the union of search tokens and first words, as both an
// ordered probe list and a membership set.
func queryTokens(q string) ([]string, map[string]struct{}) {
	set := make(map[string]struct{})
	var probes []string
	add := func(t string) {
		if _, dup := set[t]; dup {
			return
		}
		set[t] = struct{}{}
		probes = append(probes, t)
	}
	for _, t := range names.Tokenize(q) {
		add(t)
	}
	for _, w := range names.ExtractFirstWords(q) {
		add(w)
	}
	return probes, set
}

// gatherCandidates unions the posting lists of every query token across
// both the first-word and search-token indexes. Union over intersection
// is deliberate: the scorer downstream filters, the gatherer must not.
// Probe order is deterministic, so candidates score in a stable order.
func (e *Engine) gatherCandidates(probes []string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(ids []string) {
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	for _, t := range probes {
		add(e.idx.ByFirstWord[t])
		add(e.idx.BySearchToken[t])
	}
	return out
}

func (e *Engine) overlapHit(qTokens map[string]struct{}, rec *dataset.SponsorRecord) bool {
	if rec == nil {
		return false
	}
	ratio, minSize := overlapRatio(qTokens, recordTokens(rec))
	return acceptOverlap(ratio, minSize)
}

func recordTokens(rec *dataset.SponsorRecord) map[string]struct{} {
	set := make(map[string]struct{}, len(rec.SearchTokens)+len(rec.FirstWords))
	for _, t := range rec.SearchTokens {
		set[t] = struct{}{}
	}
	for _, w := range rec.FirstWords {
		set[w] = struct{}{}
	}
	return set
}

// overlapRatio is |a∩b| / min(|a|,|b|), with the min set size returned
// for threshold selection.
func overlapRatio(a, b map[string]struct{}) (float64, int) {
	minSize := len(a)
	if len(b) < minSize {
		minSize = len(b)
	}
	if minSize == 0 {
		return 0, 0
	}

	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	shared := 0
	for t := range small {
		if _, ok := large[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(minSize), minSize
}

// acceptOverlap applies the floor: 0.6 when the smaller token set has
// at least 3 entries, 0.8 otherwise.
func acceptOverlap(ratio float64, minSize int) bool {
	if minSize == 0 {
		return false
	}
	if minSize >= shortSetLimit {
		return ratio >= overlapFloor
	}
	return ratio >= overlapFloorShort
}

// maxDistance is the edit budget for a query: floor((1-threshold)*len).
// Queries under 3 runes never go through the fuzzy stage.
func (e *Engine) maxDistance(q string) int {
	n := len([]rune(q))
	if n < 3 {
		return 0
	}
	return int(math.Floor((1 - e.threshold) * float64(n)))
}

// fuzzyHit compares the query against the candidate's primary name,
// normalized name and first three aliases, all lowercased.
func (e *Engine) fuzzyHit(q string, rec *dataset.SponsorRecord, maxDist int) bool {
	if rec == nil {
		return false
	}
	targets := make([]string, 0, 5)
	targets = append(targets, strings.ToLower(rec.PrimaryName), rec.NormalizedName)
	for i, a := range rec.Aliases {
		if i == 3 {
			break
		}
		targets = append(targets, strings.ToLower(a))
	}

	qLen := len([]rune(q))
	for _, t := range targets {
		if t == "" {
			continue
		}
		// A length gap beyond the budget cannot be within it.
		if diff := len([]rune(t)) - qLen; diff > maxDist || -diff > maxDist {
			continue
		}
		if levenshtein.ComputeDistance(q, t) <= maxDist {
			return true
		}
	}
	return false
}

// commit installs the resolved representation and builds the exact
// lookup set. Variations from older artifacts fold into aliases here so
// no later code ever branches on record shape.
func (e *Engine) commit(records map[string]*dataset.SponsorRecord, idx *dataset.Indexes) {
	exact := make(map[string]string, len(records)*4)
	claim := func(s, id string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			return
		}
		if _, taken := exact[s]; !taken {
			exact[s] = id
		}
	}

	for id, rec := range records {
		if len(rec.Variations) > 0 {
			rec.Aliases = mergeNames(rec.Aliases, rec.Variations)
			rec.Variations = nil
		}
		claim(rec.PrimaryName, id)
		for _, a := range rec.Aliases {
			claim(a, id)
		}
	}

	e.records = records
	e.idx = idx
	e.exact = exact
	e.loaded = true
	e.log.Info("sponsor dataset loaded", "records", len(records), "exactKeys", len(exact))
}

// mergeNames appends extras to base, skipping duplicates case-insensitively.
func mergeNames(base, extras []string) []string {
	seen := make(map[string]struct{}, len(base))
	for _, b := range base {
		seen[strings.ToLower(b)] = struct{}{}
	}
	for _, x := range extras {
		k := strings.ToLower(x)
		if _, dup := seen[k]; dup || strings.TrimSpace(x) == "" {
			continue
		}
		seen[k] = struct{}{}
		base = append(base, x)
	}
	return base
}

// Details is the diagnostic view of one query, for threshold tuning.
type Details struct {
	Query        string   `json:"query"`
	Matched      bool     `json:"matched"`
	MatchedTypes []string `json:"matchedTypes"`
	Normalized   string   `json:"normalized"`
	Tokens       []string `json:"tokens"`
	FirstWords   []string `json:"firstWords"`
}

// MatchDetails evaluates every stage for name and reports which ones
// hit. Unlike IsRecognizedSponsor it never short-circuits and does not
// touch the cache.
func (e *Engine) MatchDetails(name string) Details {
	q := strings.ToLower(strings.TrimSpace(name))
	d := Details{
		Query:      q,
		Normalized: names.Normalize(q),
		Tokens:     names.Tokenize(q),
		FirstWords: names.ExtractFirstWords(q),
	}
	if q == "" || !e.loaded {
		return d
	}

	if _, ok := e.exact[q]; ok {
		d.MatchedTypes = append(d.MatchedTypes, StageExact)
	}
	if e.normalizedHit(q) {
		d.MatchedTypes = append(d.MatchedTypes, StageNormalized)
	}

	probes, qTokens := queryTokens(q)
	candidates := e.gatherCandidates(probes)
	for _, id := range candidates {
		if e.overlapHit(qTokens, e.records[id]) {
			d.MatchedTypes = append(d.MatchedTypes, StageOverlap)
			break
		}
	}
	if maxDist := e.maxDistance(q); maxDist >= 1 {
		for _, id := range candidates {
			if e.fuzzyHit(q, e.records[id], maxDist) {
				d.MatchedTypes = append(d.MatchedTypes, StageFuzzy)
				break
			}
		}
	}

	d.Matched = len(d.MatchedTypes) > 0
	return d
}

// String describes the engine state for logs and the CLI.
func (e *Engine) String() string {
	if !e.loaded {
		return "matcher(unloaded)"
	}
	return fmt.Sprintf("matcher(%d records, threshold %.2f)", len(e.records), e.threshold)
}
