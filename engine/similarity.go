package engine

import "unicode"

// EditDistance returns the Levenshtein distance between a and b.
// Runes are compared after lowercasing; insertion, deletion and substitution cost 1.
func EditDistance(a, b string) int {
	ra := lowerRunes(a)
	rb := lowerRunes(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1]
				continue
			}
			curr[j] = min(prev[j-1], curr[j-1], prev[j]) + 1
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// SimilarityPercent returns (maxLen - distance) / maxLen * 100, lengths in runes.
// Two empty strings are identical and score 100.
func SimilarityPercent(a, b string) float64 {
	maxLen := max(runeCount(a), runeCount(b))
	if maxLen == 0 {
		return 100
	}
	dist := EditDistance(a, b)
	// Multiply first so whole percentages such as 80 and 75 stay exact.
	return float64((maxLen-dist)*100) / float64(maxLen)
}

func lowerRunes(s string) []rune {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		out = append(out, unicode.ToLower(r))
	}
	return out
}

func runeCount(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}
