package names

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tokens := Tokenize("ASML Holding N.V.")

	assert.Contains(t, tokens, "asml")
	assert.Contains(t, tokens, "holding")
	assert.Contains(t, tokens, "nv")
	// Prefixes 3..6 for words of 6+ characters.
	assert.Contains(t, tokens, "hol")
	assert.Contains(t, tokens, "hold")
	assert.Contains(t, tokens, "holdi")
	assert.Contains(t, tokens, "holdin")
	// Adjacent 2- and 3-word concatenations.
	assert.Contains(t, tokens, "asmlholding")
	assert.Contains(t, tokens, "asmlholdingnv")
	assert.Contains(t, tokens, "holdingnv")

	assert.NotContains(t, tokens, "asm", "no prefixes for short words")
}

func TestTokenize_SingleCharWordsDropped(t *testing.T) {
	tokens := Tokenize("P&O Ferries")
	assert.NotContains(t, tokens, "p")
	assert.NotContains(t, tokens, "o")
	assert.Contains(t, tokens, "ferries")
}

func TestTokenize_DuplicateFree(t *testing.T) {
	tokens := Tokenize("Shell Shell Shell B.V.")
	seen := make(map[string]struct{})
	for _, tok := range tokens {
		_, dup := seen[tok]
		assert.False(t, dup, "duplicate token %q", tok)
		seen[tok] = struct{}{}
	}
}

func TestTokenize_Empty(t *testing.T) {
	assert.Nil(t, Tokenize(""))
	assert.Nil(t, Tokenize("  .  "))
}

func TestExtractFirstWords(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"plain name", "ASML Holding N.V.", []string{"asml"}},
		{"parenthesised location", "ING Bank N.V. (Amsterdam)", []string{"ing", "amsterdam"}},
		{"hyphenated name", "Ahold-Delhaize", []string{"ahold", "delhaize"}},
		{"comma segments", "Deloitte, Rotterdam", []string{"deloitte", "rotterdam"}},
		{"slash segments", "Shell / BP Joint", []string{"shell", "bp"}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractFirstWords(tt.in))
		})
	}
}

func TestExtractDomain(t *testing.T) {
	d, ok := ExtractDomain("ASML Holding N.V.")
	assert.True(t, ok)
	assert.Equal(t, "asml.com", d)

	d, ok = ExtractDomain("Royal FloraHolland")
	assert.True(t, ok)
	assert.Equal(t, "royalfloraholland.com", d)

	_, ok = ExtractDomain("B.V.")
	assert.False(t, ok, "suffix-only names have no domain guess")
}
