package names

import (
	"regexp"
)

// segmentRe splits a name into display segments: comma, hyphen, pipe,
// slash, backslash, opening paren or bracket.
var segmentRe = regexp.MustCompile(`[,\-|/\\(\[]`)

const (
	prefixMin = 3
	prefixMax = 6
)

// Tokenize breaks a name into the search tokens used for index keys and
// overlap scoring. Tokens are never an identity on their own. Produced,
// in order: words longer than one character, prefixes of length 3-6 for
// words of 6+ characters, and 2-3 word concatenations of both the full
// and the suffix-stripped word runs.
func Tokenize(name string) []string {
	words := cleanWords(name)
	if len(words) == 0 {
		return nil
	}

	set := newOrderedSet()
	var kept []string
	for _, w := range words {
		if len(w) < 2 {
			continue
		}
		kept = append(kept, w)
		set.add(w)
	}

	stripped := make([]string, 0, len(kept))
	for _, w := range kept {
		if _, ok := legalSuffixes[w]; ok {
			continue
		}
		stripped = append(stripped, w)
	}

	for _, w := range kept {
		if len(w) < prefixMax {
			continue
		}
		for l := prefixMin; l <= prefixMax; l++ {
			set.add(w[:l])
		}
	}

	addConcatenations(set, kept)
	addConcatenations(set, stripped)

	return set.values()
}

// addConcatenations joins each adjacent 2- and 3-word run into a single
// token, bridging queries that write multi-word names as one word.
func addConcatenations(set *orderedSet, words []string) {
	for i := 0; i+1 < len(words); i++ {
		set.add(words[i] + words[i+1])
		if i+2 < len(words) {
			set.add(words[i] + words[i+1] + words[i+2])
		}
	}
}

// ExtractFirstWords returns the first word of the whole name plus the
// first word of each segment after splitting on , - | / \ ( and [.
// All output is lowercased and accent-folded.
func ExtractFirstWords(name string) []string {
	set := newOrderedSet()
	for _, seg := range segmentRe.Split(name, -1) {
		words := cleanWords(seg)
		if len(words) > 0 {
			set.add(words[0])
		}
	}
	return set.values()
}

// ExtractDomain guesses a web domain from the first one or two
// suffix-stripped words. Auxiliary signal only; a domain hit is never
// sufficient for a match by itself.
func ExtractDomain(name string) (string, bool) {
	words := strippedWords(name)
	if len(words) == 0 {
		return "", false
	}
	d := words[0]
	if len(words) > 1 {
		d += words[1]
	}
	return d + ".com", true
}
