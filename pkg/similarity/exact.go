package similarity

// exactMatches returns an exact-match result for every candidate whose
// normalized name equals the normalized query, preserving candidate order.
// query must already be normalized.
func exactMatches(query string, candidates []FieldDescriptor) []SimilarityResult {
	var results []SimilarityResult
	for _, c := range candidates {
		if Normalize(c.Name) != query {
			continue
		}
		results = append(results, SimilarityResult{
			Field:       c,
			Score:       ScoreExact,
			Kind:        MatchExact,
			Explanation: "exact match",
		})
	}
	return results
}
