package engine

import (
	"strings"

	"github.com/whisperwalls/censor/models"
)

// minTokenLength is the shortest cleaned token worth fuzzy matching.
const minTokenLength = 2

// ContainsTriggerWords scans text for tokens similar to any trigger word.
// A pair matches when its similarity is >= threshold. Every qualifying pair is
// reported, in token order and then trigger-list order.
func ContainsTriggerWords(text string, triggerWords []string, threshold float64) models.FilterOutcome {
	if len(triggerWords) == 0 {
		return models.FilterOutcome{HasMatch: false, Matches: []models.MatchResult{}}
	}

	lowered := make([]string, len(triggerWords))
	for i, trigger := range triggerWords {
		lowered[i] = strings.ToLower(trigger)
	}

	matches := make([]models.MatchResult, 0, 4)
	for _, word := range strings.Fields(text) {
		clean := cleanToken(word)
		if runeCount(clean) < minTokenLength {
			continue
		}
		for i, trigger := range lowered {
			sim := SimilarityPercent(clean, trigger)
			if sim >= threshold {
				matches = append(matches, models.MatchResult{
					Original:   word,
					Trigger:    triggerWords[i],
					Similarity: sim,
				})
			}
		}
	}

	return models.FilterOutcome{HasMatch: len(matches) > 0, Matches: matches}
}
