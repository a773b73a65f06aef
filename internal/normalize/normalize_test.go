package normalize_test

import (
	"testing"

	"github.com/aretw0/switchboard/internal/normalize"
	"github.com/aretw0/switchboard/pkg/domain"
	"github.com/stretchr/testify/require"
)

func newNormalizer() *normalize.Normalizer {
	return normalize.New(domain.NormalizerConfig{
		FillerWords: []string{"um", "uh", "like", "you know", "please"},
		Synonyms: map[string]string{
			"appt":  "appointment",
			"sched": "schedule",
		},
	})
}

func TestNormalize_CasefoldAndPunctuation(t *testing.T) {
	n := newNormalizer()
	require.Equal(t, "book an appointment", n.Normalize("Book an APPOINTMENT!"))
}

func TestNormalize_StripsFillers(t *testing.T) {
	n := newNormalizer()
	require.Equal(t, "book an appointment", n.Normalize("um, like, book an appointment please"))
}

func TestNormalize_MultiWordFiller(t *testing.T) {
	n := newNormalizer()
	require.Equal(t, "i want to book", n.Normalize("I want to, you know, book"))
}

func TestNormalize_Synonyms(t *testing.T) {
	n := newNormalizer()
	require.Equal(t, "book an appointment", n.Normalize("book an appt"))
}

func TestNormalize_KeepsApostrophes(t *testing.T) {
	n := newNormalizer()
	require.Equal(t, []string{"what's", "open"}, n.Tokens("What's open?"))
}

func TestTokenSet(t *testing.T) {
	n := newNormalizer()
	set := n.TokenSet("book a book")
	require.True(t, set["book"])
	require.True(t, set["a"])
	require.Len(t, set, 2)
}
