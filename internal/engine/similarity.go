package engine

import "strings"

// tokenSet lowercases s and splits it on whitespace into a set of words.
func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// jaccardSimilarity returns |A∩B| / |A∪B| over the word sets of a and b.
// Two texts with no words score 0.
func jaccardSimilarity(a, b string) float64 {
	setA, setB := tokenSet(a), tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}

	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// normalizeContent is the comparison form used by exact matching.
func normalizeContent(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
