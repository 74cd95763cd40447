package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/whisperwalls/censor/models"
)

// DefaultThreshold is the similarity percentage used when callers have no preference.
const DefaultThreshold = 80.0

// Thresholds holds per-call similarity thresholds.
type Thresholds struct {
	// Trigger matches when similarity >= Trigger.
	Trigger float64
	// Profanity censors when similarity > Profanity.
	Profanity float64
}

// DefaultThresholds returns DefaultThreshold for both checks.
func DefaultThresholds() Thresholds {
	return Thresholds{Trigger: DefaultThreshold, Profanity: DefaultThreshold}
}

// Engine is a fuzzy content filter over a fixed profanity lexicon.
// It is read-only after construction and safe for concurrent use.
type Engine struct {
	lexicon []string
}

// New creates an engine with the built-in lexicon.
func New() *Engine {
	return &Engine{lexicon: append([]string(nil), defaultLexicon...)}
}

// NewWithLexicon creates an engine with a custom lexicon.
func NewWithLexicon(words []string) (*Engine, error) {
	if len(words) == 0 {
		return nil, errors.New("engine: lexicon is empty")
	}
	lexicon := make([]string, 0, len(words))
	for i, word := range words {
		w := strings.ToLower(strings.TrimSpace(word))
		if w == "" {
			return nil, fmt.Errorf("engine: lexicon entry %d is blank", i)
		}
		lexicon = append(lexicon, w)
	}
	return &Engine{lexicon: lexicon}, nil
}

// Lexicon returns a copy of the profanity lexicon.
func (e *Engine) Lexicon() []string {
	return append([]string(nil), e.lexicon...)
}

// ContainsTriggerWords is ContainsTriggerWords bound to the engine.
func (e *Engine) ContainsTriggerWords(text string, triggerWords []string, threshold float64) models.FilterOutcome {
	return ContainsTriggerWords(text, triggerWords, threshold)
}

// CensorProfanity masks every whitespace-delimited token whose cleaned form is
// more than threshold percent similar to a lexicon entry. The whole token,
// punctuation included, becomes one '*' per rune. Tokens are rejoined with
// single spaces, so runs of whitespace collapse.
func (e *Engine) CensorProfanity(text string, threshold float64) string {
	words := splitWhitespace(text)
	for i, word := range words {
		if e.isProfane(cleanToken(word), threshold) {
			words[i] = strings.Repeat("*", runeCount(word))
		}
	}
	return strings.Join(words, " ")
}

func (e *Engine) isProfane(clean string, threshold float64) bool {
	for _, bad := range e.lexicon {
		if SimilarityPercent(clean, bad) > threshold {
			return true
		}
	}
	return false
}

// FilterContent applies prefs to content with default thresholds.
func (e *Engine) FilterContent(content string, prefs models.Preferences) models.Decision {
	return e.FilterContentWith(content, prefs, DefaultThresholds())
}

// FilterContentWith censors profanity when enabled and scans the uncensored
// content for trigger words. Only trigger matches block.
func (e *Engine) FilterContentWith(content string, prefs models.Preferences, th Thresholds) models.Decision {
	filtered := content
	reasons := make([]string, 0, 1)
	if prefs.ProfanityFilter {
		filtered = e.CensorProfanity(content, th.Profanity)
		if filtered != content {
			reasons = append(reasons, models.ReasonProfanityFiltered)
		}
	}

	triggers := ContainsTriggerWords(content, prefs.TriggerWords, th.Trigger)
	confidence := 0.0
	for _, m := range triggers.Matches {
		confidence = max(confidence, m.Similarity)
	}

	return models.Decision{
		ShouldBlock:     triggers.HasMatch,
		FilteredContent: filtered,
		Reasons:         reasons,
		TriggerMatches:  triggers.Matches,
		Confidence:      confidence,
	}
}
