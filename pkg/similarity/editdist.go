package similarity

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

// minTokenRunes is the minimum token length considered for pairwise token
// comparison. Shorter tokens ("of", "to", "a") would match almost anything
// within the distance threshold and produce junk suggestions.
const minTokenRunes = 4

// editOutcome is the winning comparison for one candidate: the smallest edit
// distance found across comparison strategies and the similarity ratio of the
// string pair that produced it.
type editOutcome struct {
	distance int
	ratio    float64
}

// editMatches scores every candidate against the normalized query by bounded
// edit distance and returns a result for each candidate within the distance
// threshold. Candidate order is preserved; the ranker sorts globally.
func (e *Engine) editMatches(query string, candidates []FieldDescriptor) []SimilarityResult {
	var results []SimilarityResult
	for _, c := range candidates {
		name := Normalize(c.Name)
		if name == "" {
			continue
		}

		out := bestEditOutcome(query, name)
		if out.distance > e.editDistanceMax {
			continue
		}

		results = append(results, SimilarityResult{
			Field:       c,
			Score:       editScore(out.ratio),
			Kind:        MatchEditDistance,
			Explanation: editExplanation(out.distance),
		})
	}
	return results
}

// bestEditOutcome computes the effective edit distance between the query and
// a candidate name using two strategies:
//
//  1. Full-string comparison (e.g., "ratng" vs "rating").
//  2. Best pairwise token comparison — the minimum Levenshtein distance
//     between any query token and any candidate token of at least
//     minTokenRunes runes each (catches a typo of one word against a
//     multi-word name, e.g. "presentaton" vs "presentation quality").
//
// Strategy 2 applies only when exactly one side is multi-word. When both
// sides are multi-word phrases, a single shared token ("video rating" vs
// "video length") says nothing about the phrases being duplicates, and the
// full-string comparison is the honest measure.
//
// The ratio is always computed from the string pair that won, not from the
// full strings, so a one-word typo against a long name is not penalized for
// the length difference.
func bestEditOutcome(query, name string) editOutcome {
	best := editOutcome{
		distance: matchr.Levenshtein(query, name),
	}
	best.ratio = editRatio(query, name, best.distance)

	qTokens := strings.Fields(query)
	nTokens := strings.Fields(name)
	if len(qTokens) > 1 == (len(nTokens) > 1) {
		return best
	}

	for _, qt := range qTokens {
		if utf8.RuneCountInString(qt) < minTokenRunes {
			continue
		}
		for _, nt := range nTokens {
			if utf8.RuneCountInString(nt) < minTokenRunes {
				continue
			}
			d := matchr.Levenshtein(qt, nt)
			r := editRatio(qt, nt, d)
			if d < best.distance || (d == best.distance && r > best.ratio) {
				best = editOutcome{distance: d, ratio: r}
			}
		}
	}
	return best
}

// editRatio converts a raw edit distance into a length-normalized similarity
// ratio in [0,1] (1.0 = identical). Raw distance is not comparable across
// string-length pairs; the ratio is what maps to a score, while the raw
// distance is used only for threshold gating and the explanation text.
func editRatio(a, b string, distance int) float64 {
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(distance)/float64(maxLen)
}

// editScore maps a similarity ratio linearly into the edit-distance score
// band, so no edit-distance score can ever reach an exact match (1.0) or fall
// into the semantic band.
func editScore(ratio float64) float64 {
	return editBandLow + ratio*(editBandHigh-editBandLow)
}

// editExplanation renders the raw character difference count.
func editExplanation(distance int) string {
	if distance == 1 {
		return "1 character difference"
	}
	return fmt.Sprintf("%d character differences", distance)
}
