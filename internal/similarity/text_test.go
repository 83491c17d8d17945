package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "cannot login error 401", Normalize("Cannot login!! (Error: 401)"))
	assert.Equal(t, "", Normalize("  ...  "))
}

func TestTokenizeDropsStopwordsAndShortTokens(t *testing.T) {
	got := Tokenize("The user cannot login to the app")
	assert.Equal(t, []string{"user", "cannot", "login", "app"}, got)
}

func TestFingerprintStableUnderFormatting(t *testing.T) {
	a := Fingerprint("Cannot LOGIN, error 401!")
	b := Fingerprint("cannot login error 401")
	assert.Equal(t, a, b)

	c := Fingerprint("payment declined")
	assert.NotEqual(t, a, c)
}

func TestLexicalCosine(t *testing.T) {
	a := termFreqs([]string{"login", "error", "401"})
	b := termFreqs([]string{"login", "error", "401"})
	assert.InDelta(t, 1.0, lexicalCosine(a, b), 1e-9)

	disjoint := termFreqs([]string{"billing", "invoice"})
	assert.Zero(t, lexicalCosine(a, disjoint))

	assert.Zero(t, lexicalCosine(a, termFreqs(nil)))
}

func TestOverlapTermsDeterministic(t *testing.T) {
	a := termFreqs([]string{"login", "login", "error", "cache", "401"})
	b := termFreqs([]string{"login", "error", "cache", "401"})

	// login has the highest combined count; the rest tie and sort
	// alphabetically.
	got := overlapTerms(a, b, 3)
	assert.Equal(t, []string{"login", "401", "cache"}, got)
}
