package similarity

import "sort"

// rank merges per-strategy result lists into the final ranked output:
// deduplicates by candidate ID keeping the highest-scoring entry, drops
// results below the global minimum score, and sorts descending by score.
//
// Deduplication uses an explicit ordered accumulation (first-seen candidate
// order) rather than map iteration, so equal-score entries keep their
// original relative order through the stable sort. Because the per-kind score
// bands never overlap, the sort alone reproduces the intended strategy
// precedence: exact > edit distance > semantic.
func rank(results []SimilarityResult, minScore float64) []SimilarityResult {
	index := make(map[string]int, len(results))
	merged := make([]SimilarityResult, 0, len(results))
	for _, r := range results {
		if i, ok := index[r.Field.ID]; ok {
			if r.Score > merged[i].Score {
				merged[i] = r
			}
			continue
		}
		index[r.Field.ID] = len(merged)
		merged = append(merged, r)
	}

	ranked := merged[:0]
	for _, r := range merged {
		if r.Score >= minScore {
			ranked = append(ranked, r)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}
