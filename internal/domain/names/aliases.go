package names

import (
	"regexp"
	"strings"
	"unicode"
)

// canonicalSuffixes are the designators recombined with a stripped base
// to produce lookup aliases ("ASML Holding" -> "ASML Holding B.V.", ...).
var canonicalSuffixes = []string{"B.V.", "BV", "N.V.", "NV", "Ltd", "Inc", "Holding", "Group"}

var (
	andWordRe  = regexp.MustCompile(`(?i)\band\b`)
	dotSpaceRe = regexp.MustCompile(`\.\s+`)
)

// GenerateAliases derives the lookup variants of a raw organisation name:
// the original, progressively suffix-stripped bases, the first base
// recombined with each canonical suffix, punctuation-relaxed spellings,
// ampersand/"and" swaps and an acronym when the base has 2-5 words.
// Output is duplicate-free and deterministic for a given input.
func GenerateAliases(name string) []string {
	name = collapseSpaces(name)
	if name == "" {
		return nil
	}

	set := newOrderedSet()
	set.add(name)

	bases := suffixStrippedBases(name)
	for _, b := range bases {
		set.add(b)
	}
	base := name
	if len(bases) > 0 {
		base = bases[0]
	}

	for _, suf := range canonicalSuffixes {
		set.add(base + " " + suf)
	}
	for _, v := range dotVariants(name) {
		set.add(v)
	}
	for _, v := range ampersandVariants(name) {
		set.add(v)
	}
	if a, ok := acronym(base); ok {
		set.add(a)
	}
	return set.values()
}

// suffixStrippedBases peels legal-suffix words off the end of the name
// one at a time, returning each intermediate form. "ASML Holding N.V."
// yields ["ASML Holding", "ASML"]. At least one word always remains.
func suffixStrippedBases(name string) []string {
	words := strings.Fields(name)
	var bases []string
	for len(words) > 1 {
		last := canonicalWord(words[len(words)-1])
		if _, ok := legalSuffixes[last]; !ok {
			break
		}
		words = words[:len(words)-1]
		bases = append(bases, strings.Join(words, " "))
	}
	return bases
}

// dotVariants relaxes period spacing: removed entirely, spaced after
// each period, and collapsed where spaces follow periods.
func dotVariants(name string) []string {
	if !strings.Contains(name, ".") {
		return nil
	}
	return []string{
		collapseSpaces(strings.ReplaceAll(name, ".", "")),
		collapseSpaces(strings.ReplaceAll(name, ".", ". ")),
		collapseSpaces(dotSpaceRe.ReplaceAllString(name, ".")),
	}
}

func ampersandVariants(name string) []string {
	var vs []string
	if strings.Contains(name, "&") {
		vs = append(vs, collapseSpaces(strings.ReplaceAll(name, "&", " and ")))
	}
	if andWordRe.MatchString(name) {
		vs = append(vs, collapseSpaces(andWordRe.ReplaceAllString(name, "&")))
	}
	return vs
}

// acronym joins the first letter of each word, uppercased, when the
// name has 2-5 words all starting with a letter.
func acronym(name string) (string, bool) {
	words := strings.Fields(foldAccents(name))
	if len(words) < 2 || len(words) > 5 {
		return "", false
	}
	var b strings.Builder
	for _, w := range words {
		r := []rune(w)[0]
		if !unicode.IsLetter(r) {
			return "", false
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String(), true
}

// orderedSet keeps first-seen insertion order while deduplicating.
type orderedSet struct {
	seen map[string]struct{}
	vals []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{})}
}

func (s *orderedSet) add(v string) {
	if v == "" {
		return
	}
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.vals = append(s.vals, v)
}

func (s *orderedSet) values() []string {
	return s.vals
}
