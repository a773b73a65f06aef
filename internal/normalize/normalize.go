// Package normalize canonicalizes caller text ahead of matching: casefold,
// punctuation strip, filler-word removal and synonym substitution. All token
// lists come from tenant configuration.
package normalize

import (
	"strings"
	"unicode"

	"github.com/aretw0/switchboard/pkg/domain"
)

// Normalizer applies a tenant's canonicalization rules.
type Normalizer struct {
	fillers  map[string]bool
	synonyms map[string]string
	// multi-word fillers are matched as phrases before tokenization
	fillerPhrases []string
}

// New builds a normalizer from tenant config.
func New(cfg domain.NormalizerConfig) *Normalizer {
	n := &Normalizer{
		fillers:  make(map[string]bool),
		synonyms: make(map[string]string),
	}
	for _, f := range cfg.FillerWords {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		if strings.Contains(f, " ") {
			n.fillerPhrases = append(n.fillerPhrases, f)
		} else {
			n.fillers[f] = true
		}
	}
	for from, to := range cfg.Synonyms {
		n.synonyms[strings.ToLower(from)] = strings.ToLower(to)
	}
	return n
}

// Normalize returns the canonical form of text.
func (n *Normalizer) Normalize(text string) string {
	return strings.Join(n.Tokens(text), " ")
}

// Tokens returns the canonical token sequence of text.
func (n *Normalizer) Tokens(text string) []string {
	lower := strings.ToLower(text)
	for _, phrase := range n.fillerPhrases {
		lower = strings.ReplaceAll(lower, phrase, " ")
	}

	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})

	out := make([]string, 0, len(fields))
	for _, tok := range fields {
		if n.fillers[tok] {
			continue
		}
		if repl, ok := n.synonyms[tok]; ok {
			tok = repl
		}
		out = append(out, tok)
	}
	return out
}

// TokenSet returns the canonical tokens as a set.
func (n *Normalizer) TokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range n.Tokens(text) {
		set[tok] = true
	}
	return set
}
