// Package similarity ranks historical issues by closeness to new issue
// text, with a semantic vector path and a lexical fallback path.
package similarity

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sort"
	"strings"
	"unicode"
)

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "have": true, "has": true, "was": true, "are": true,
	"not": true, "but": true, "can": true, "when": true, "from": true,
	"you": true, "your": true, "our": true, "its": true, "will": true,
}

// Normalize lowercases text and collapses punctuation into spaces.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Tokenize splits normalized text into terms, dropping stopwords and
// very short tokens.
func Tokenize(s string) []string {
	fields := strings.Fields(Normalize(s))
	out := fields[:0]
	for _, f := range fields {
		if len(f) < 3 || stopwords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Fingerprint returns a stable key for issue text, used to cache
// similarity results.
func Fingerprint(s string) string {
	sum := sha256.Sum256([]byte(Normalize(s)))
	return hex.EncodeToString(sum[:])
}

// termFreqs counts term occurrences.
func termFreqs(tokens []string) map[string]int {
	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	return tf
}

// lexicalCosine is the cosine similarity of two term-frequency vectors.
func lexicalCosine(a, b map[string]int) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for t, ca := range a {
		normA += float64(ca * ca)
		if cb, ok := b[t]; ok {
			dot += float64(ca * cb)
		}
	}
	for _, cb := range b {
		normB += float64(cb * cb)
	}
	if dot == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// overlapTerms returns the dominant terms shared by both vectors,
// ordered by combined frequency and then alphabetically so the result
// is deterministic.
func overlapTerms(a, b map[string]int, limit int) []string {
	type scored struct {
		term  string
		count int
	}
	var shared []scored
	for t, ca := range a {
		if cb, ok := b[t]; ok {
			shared = append(shared, scored{term: t, count: ca + cb})
		}
	}
	sort.Slice(shared, func(i, j int) bool {
		if shared[i].count != shared[j].count {
			return shared[i].count > shared[j].count
		}
		return shared[i].term < shared[j].term
	})
	if len(shared) > limit {
		shared = shared[:limit]
	}
	terms := make([]string, len(shared))
	for i, s := range shared {
		terms[i] = s.term
	}
	return terms
}
