// Package textproc cleans up raw transcripts: an optional local LLM pass for
// grammar, guarded by a similarity check so a hallucinating model can never
// replace what the user actually said, with a rule-based fallback.
package textproc

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// fillers are discourse words ignored when comparing transcripts and removed
// by the rule-based cleanup.
var fillers = map[string]bool{
	"um": true, "uh": true, "like": true,
	"basically": true, "actually": true, "literally": true,
	"yeah": true, "okay": true, "so": true, "well": true,
}

// fillerPhrases are multi-word fillers matched before single words.
var fillerPhrases = []string{"you know"}

const (
	charWeight = 0.3
	wordWeight = 0.7

	minLengthRatio = 0.5
	maxLengthRatio = 1.8
)

// Similarity scores how close candidate stays to original, in [0, 1].
// Character-level Jaro-Winkler is blended with filler-insensitive word
// overlap; the word term dominates so reorderings of real content words
// hurt more than spelling-level edits.
func Similarity(original, candidate string) float64 {
	a := strings.ToLower(strings.TrimSpace(original))
	b := strings.ToLower(strings.TrimSpace(candidate))
	if a == "" || b == "" {
		return 0
	}
	char := matchr.JaroWinkler(a, b, false)
	word := jaccard(contentWords(a), contentWords(b))
	return charWeight*char + wordWeight*word
}

// Validate reports whether candidate is an acceptable rewrite of original.
// Length drift outside [0.5, 1.8] fails regardless of the score.
func Validate(original, candidate string, threshold float64) (bool, float64) {
	origLen := len(strings.TrimSpace(original))
	candLen := len(strings.TrimSpace(candidate))
	if origLen == 0 || candLen == 0 {
		return false, 0
	}
	ratio := float64(candLen) / float64(origLen)
	score := Similarity(original, candidate)
	if ratio < minLengthRatio || ratio > maxLengthRatio {
		return false, score
	}
	return score >= threshold, score
}

// contentWords lowercases, strips punctuation edges and drops fillers.
func contentWords(s string) map[string]bool {
	for _, p := range fillerPhrases {
		s = strings.ReplaceAll(s, p, " ")
	}
	out := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		w = strings.Trim(w, ".,!?;:'\"()-")
		if w == "" || fillers[w] {
			continue
		}
		out[w] = true
	}
	return out
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if b[w] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
