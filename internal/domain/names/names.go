// Package names holds the pure string transforms behind sponsor matching:
// canonical normalization, alias generation, tokenization, first-word
// extraction and the best-effort domain guess. Everything here is
// deterministic and side-effect free; all lookups elsewhere are built on
// these forms.
package names

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffixes are business-entity designators dropped during
// normalization. Dotted variants collapse to these once periods are
// removed ("b.v." -> "bv"), so only bare forms are listed.
var legalSuffixes = map[string]struct{}{
	"bv": {}, "nv": {}, "cv": {}, "ba": {}, "ua": {}, "vof": {},
	"ltd": {}, "limited": {}, "inc": {}, "incorporated": {},
	"corp": {}, "corporation": {}, "co": {}, "company": {},
	"llc": {}, "llp": {}, "lp": {}, "plc": {},
	"gmbh": {}, "ag": {}, "sa": {}, "se": {},
	"holding": {}, "holdings": {}, "group": {},
	"stichting": {}, "cooperatie": {}, "cooperatief": {},
}

// accentFold decomposes accented runes and drops the combining marks,
// so "Coöperatie" and "Fryslân" compare equal to their ASCII spellings.
var accentFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

var (
	nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)
	multiSpace = regexp.MustCompile(`\s{2,}`)
)

// Normalize reduces a raw organisation name to its canonical index key:
// lowercase, accents folded, legal suffixes dropped, punctuation stripped,
// all whitespace removed. When every word is a suffix the first word is
// kept, so a name never normalizes to "" unless it holds no letters at
// all. That rule also makes Normalize idempotent when the surviving
// words happen to concatenate to a suffix ("S&E" -> "se").
func Normalize(name string) string {
	words := cleanWords(name)

	var b strings.Builder
	for _, w := range words {
		if _, ok := legalSuffixes[w]; ok {
			continue
		}
		b.WriteString(w)
	}
	if b.Len() == 0 && len(words) > 0 {
		return words[0]
	}
	return b.String()
}

// cleanWords lowercases, folds accents, removes periods and apostrophes
// in place ("n.v." -> "nv", "o'neill" -> "oneill"), converts remaining
// punctuation to spaces and returns the resulting words.
func cleanWords(s string) []string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil
	}
	s = foldAccents(s)
	s = strings.NewReplacer(".", "", "'", "", "’", "").Replace(s)
	s = nonAlnumRe.ReplaceAllString(s, " ")
	return strings.Fields(s)
}

// strippedWords is cleanWords minus legal-suffix words.
func strippedWords(s string) []string {
	words := cleanWords(s)
	kept := words[:0]
	for _, w := range words {
		if _, ok := legalSuffixes[w]; ok {
			continue
		}
		kept = append(kept, w)
	}
	return kept
}

// Fold strips combining accents from s, leaving case and spacing alone.
// Sort keys and shard range labels go through this so "Écart" files
// under E.
func Fold(s string) string {
	return foldAccents(s)
}

func foldAccents(s string) string {
	out, _, err := transform.String(accentFold, s)
	if err != nil {
		return s
	}
	return out
}

// canonicalWord reduces a single word to the form used for suffix
// lookups: lowercased, accent-folded, punctuation removed.
func canonicalWord(w string) string {
	w = foldAccents(strings.ToLower(w))
	return nonAlnumRe.ReplaceAllString(w, "")
}

func collapseSpaces(s string) string {
	return strings.TrimSpace(multiSpace.ReplaceAllString(s, " "))
}
