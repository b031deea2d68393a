package match

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kakiii/kmatch/internal/domain/dataset"
)

func testRecords() []*dataset.SponsorRecord {
	return []*dataset.SponsorRecord{
		dataset.NewRecord("ASML Holding N.V."),
		dataset.NewRecord("Heineken N.V."),
		dataset.NewRecord("Koninklijke Philips Electronics N.V."),
		dataset.NewRecord("Stroopwafelfabriek B.V."),
		dataset.NewRecord("Coöperatie Royal FloraHolland U.A."),
	}
}

func loadedEngine(t *testing.T) *Engine {
	t.Helper()
	e := New(Config{})
	require.NoError(t, e.Load(Raw(testRecords())))
	return e
}

func TestEngine_UnloadedAnswersFalse(t *testing.T) {
	e := New(Config{})

	assert.False(t, e.Loaded())
	assert.Zero(t, e.Size())
	assert.False(t, e.IsRecognizedSponsor("ASML Holding N.V."))
	assert.Equal(t, "matcher(unloaded)", e.String())
}

func TestEngine_EmptyQueryAnswersFalse(t *testing.T) {
	e := loadedEngine(t)

	assert.False(t, e.IsRecognizedSponsor(""))
	assert.False(t, e.IsRecognizedSponsor("   \t "))
}

// Every primary name, its uppercased form and every generated alias
// must answer true once loaded.
func TestEngine_MatchesPrimariesAndAliases(t *testing.T) {
	records := testRecords()
	e := New(Config{})
	require.NoError(t, e.Load(Raw(records)))

	for _, rec := range records {
		assert.True(t, e.IsRecognizedSponsor(rec.PrimaryName), rec.PrimaryName)
		assert.True(t, e.IsRecognizedSponsor(strings.ToUpper(rec.PrimaryName)), rec.PrimaryName)
		for _, a := range rec.Aliases {
			assert.True(t, e.IsRecognizedSponsor(a), "alias %q of %q", a, rec.PrimaryName)
		}
	}
}

func TestEngine_NormalizedLookup(t *testing.T) {
	e := loadedEngine(t)

	// Neither query is a stored alias; both collapse to "asml".
	d := e.MatchDetails("A.S.M.L. Holding")
	assert.True(t, d.Matched)
	assert.Contains(t, d.MatchedTypes, StageNormalized)
	assert.NotContains(t, d.MatchedTypes, StageExact)

	d = e.MatchDetails("ASML Corporation")
	assert.Equal(t, []string{StageNormalized}, d.MatchedTypes)
	assert.Equal(t, "asml", d.Normalized)
}

func TestEngine_TokenOverlap(t *testing.T) {
	e := loadedEngine(t)

	// Shares the philips/electronics token family with the stored
	// record but normalizes differently, so only overlap can catch it.
	d := e.MatchDetails("Philips Electronics Nederland")
	assert.True(t, d.Matched)
	assert.Equal(t, []string{StageOverlap}, d.MatchedTypes)
	assert.True(t, e.IsRecognizedSponsor("Philips Electronics Nederland"))
}

func TestEngine_FuzzyCatchesTypos(t *testing.T) {
	e := loadedEngine(t)

	// One substitution against "stroopwafelfabriek": inside the edit
	// budget floor(0.15*18) = 2.
	d := e.MatchDetails("strxopwafelfabriek")
	assert.True(t, d.Matched)
	assert.Equal(t, []string{StageFuzzy}, d.MatchedTypes)
	assert.True(t, e.IsRecognizedSponsor("strxopwafelfabriek"))

	// Three substitutions: over budget, every stage misses.
	assert.False(t, e.IsRecognizedSponsor("strxxxwafelfabriek"))
}

// A ten-rune query budgets exactly one edit at the default threshold.
func TestEngine_FuzzyBoundaryAtLenTen(t *testing.T) {
	e := New(Config{})
	rec := dataset.NewRecord("Vliegveld B.V.")

	require.Equal(t, 1, e.maxDistance("vliegveldx"))
	assert.True(t, e.fuzzyHit("vliegveldx", rec, 1), "distance 1 is inside the budget")
	assert.False(t, e.fuzzyHit("vlitgveldx", rec, 1), "distance 2 is not")
}

func TestEngine_RejectsUnrelatedNames(t *testing.T) {
	e := loadedEngine(t)

	assert.False(t, e.IsRecognizedSponsor("Quantum Bakery Collective"))
	assert.False(t, e.IsRecognizedSponsor("Rundfunk Berlin-Brandenburg"))
}

func TestEngine_CachesOutcomesPerLoweredQuery(t *testing.T) {
	e := loadedEngine(t)

	assert.True(t, e.IsRecognizedSponsor("  ASML Holding N.V.  "))
	got, ok := e.cache["asml holding n.v."]
	require.True(t, ok)
	assert.True(t, got)

	// Case and padding variants collapse onto the same entry.
	assert.True(t, e.IsRecognizedSponsor("ASML HOLDING n.v."))
	assert.Len(t, e.cache, 1)

	assert.False(t, e.IsRecognizedSponsor("Quantum Bakery Collective"))
	assert.False(t, e.cache["quantum bakery collective"])
	assert.False(t, e.IsRecognizedSponsor("Quantum Bakery Collective"))
	assert.Len(t, e.cache, 2)
}

func TestEngine_TruncatesOversizedQueries(t *testing.T) {
	e := loadedEngine(t)

	long := strings.Repeat("a", maxQueryLen+50)
	assert.False(t, e.IsRecognizedSponsor(long))

	_, ok := e.cache[strings.Repeat("a", maxQueryLen)]
	assert.True(t, ok, "the cache key is the truncated query")
}

func TestEngine_ConcurrentQueries(t *testing.T) {
	e := loadedEngine(t)
	queries := []string{
		"ASML Holding N.V.", "Heineken", "Quantum Bakery Collective",
		"strxopwafelfabriek", "Philips Electronics Nederland", "",
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, q := range queries {
				e.IsRecognizedSponsor(q)
			}
		}()
	}
	wg.Wait()

	assert.True(t, e.IsRecognizedSponsor("ASML Holding N.V."))
	assert.False(t, e.IsRecognizedSponsor("Quantum Bakery Collective"))
}

func TestEngine_MaxDistance(t *testing.T) {
	e := New(Config{})

	tests := []struct {
		query string
		want  int
	}{
		{"ab", 0},
		{"abc", 0},
		{"abcdefg", 1},
		{"abcdefghij", 1},
		{strings.Repeat("x", 20), 3},
		// Runes, not bytes: ten two-byte runes still budget 1.
		{strings.Repeat("ö", 10), 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, e.maxDistance(tt.query), "query %q", tt.query)
	}

	loose := New(Config{Threshold: 0.7})
	assert.Equal(t, 3, loose.maxDistance("abcdefghij"))
}

func tokSet(tokens ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}

func TestOverlapRatio(t *testing.T) {
	ratio, minSize := overlapRatio(tokSet("a", "b", "c"), tokSet("a", "b", "c", "d", "e"))
	assert.InDelta(t, 1.0, ratio, 1e-9)
	assert.Equal(t, 3, minSize)

	ratio, minSize = overlapRatio(
		tokSet("a", "b", "c", "x", "y"),
		tokSet("a", "b", "c", "p", "q", "r"))
	assert.InDelta(t, 0.6, ratio, 1e-9)
	assert.Equal(t, 5, minSize)

	ratio, minSize = overlapRatio(nil, tokSet("a"))
	assert.Zero(t, ratio)
	assert.Zero(t, minSize)
}

func TestAcceptOverlap(t *testing.T) {
	tests := []struct {
		ratio   float64
		minSize int
		want    bool
	}{
		{0.6, 5, true},
		{0.59, 5, false},
		{0.6, 3, true},
		{1.0, 2, true},
		{0.8, 2, true},
		{0.79, 2, false},
		{1.0, 1, true},
		{0.5, 1, false},
		{1.0, 0, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, acceptOverlap(tt.ratio, tt.minSize),
			"ratio %.2f minSize %d", tt.ratio, tt.minSize)
	}
}

func TestEngine_MatchDetails(t *testing.T) {
	e := loadedEngine(t)

	d := e.MatchDetails("ASML Holding N.V.")
	assert.Equal(t, "asml holding n.v.", d.Query)
	assert.True(t, d.Matched)
	assert.Contains(t, d.MatchedTypes, StageExact)
	assert.Equal(t, "asml", d.Normalized)
	assert.NotEmpty(t, d.Tokens)
	assert.Equal(t, []string{"asml"}, d.FirstWords)

	// Diagnostics still describe the query when nothing is loaded.
	cold := New(Config{}).MatchDetails("ASML")
	assert.False(t, cold.Matched)
	assert.Empty(t, cold.MatchedTypes)
	assert.Equal(t, "asml", cold.Normalized)
}

func TestEngine_String(t *testing.T) {
	e := loadedEngine(t)
	assert.Equal(t, "matcher(5 records, threshold 0.85)", e.String())
	assert.Equal(t, 5, e.Size())
	assert.True(t, e.Loaded())
}
