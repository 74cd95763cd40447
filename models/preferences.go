package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// ErrNotFound is returned by preference stores for unknown users.
var ErrNotFound = errors.New("models: preferences not found")

// Preferences is the per-user filter configuration kept by the external store.
type Preferences struct {
	TriggerWords    []string `json:"trigger_words"`
	ProfanityFilter bool     `json:"profanity_filter"`
}

// DefaultPreferences returns the settings of a user who never edited them:
// no trigger words, profanity filter on.
func DefaultPreferences() Preferences {
	return Preferences{TriggerWords: []string{}, ProfanityFilter: true}
}

type preferencesWire struct {
	TriggerWords    []string `json:"trigger_words"`
	ProfanityFilter *bool    `json:"profanity_filter"`
}

// UnmarshalJSON treats a missing or null profanity_filter as enabled.
// Unknown keys are rejected.
func (p *Preferences) UnmarshalJSON(data []byte) error {
	var w preferencesWire
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return err
	}
	p.TriggerWords = w.TriggerWords
	p.ProfanityFilter = true
	if w.ProfanityFilter != nil {
		p.ProfanityFilter = *w.ProfanityFilter
	}
	return nil
}

// Normalize trims trigger words, drops blanks and case-insensitive duplicates.
// The first spelling of a duplicated word wins.
func (p Preferences) Normalize() Preferences {
	out := Preferences{
		TriggerWords:    make([]string, 0, len(p.TriggerWords)),
		ProfanityFilter: p.ProfanityFilter,
	}
	seen := make(map[string]struct{}, len(p.TriggerWords))
	for _, word := range p.TriggerWords {
		w := strings.TrimSpace(word)
		if w == "" {
			continue
		}
		key := strings.ToLower(w)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out.TriggerWords = append(out.TriggerWords, w)
	}
	return out
}

// AddTriggerWord appends word unless it is blank or already present.
func (p *Preferences) AddTriggerWord(word string) bool {
	w := strings.TrimSpace(word)
	if w == "" || p.HasTriggerWord(w) {
		return false
	}
	p.TriggerWords = append(p.TriggerWords, w)
	return true
}

// RemoveTriggerWord deletes word, compared case-insensitively.
func (p *Preferences) RemoveTriggerWord(word string) bool {
	key := strings.ToLower(strings.TrimSpace(word))
	if key == "" {
		return false
	}
	removed := false
	kept := make([]string, 0, len(p.TriggerWords))
	for _, w := range p.TriggerWords {
		if strings.ToLower(w) == key {
			removed = true
			continue
		}
		kept = append(kept, w)
	}
	p.TriggerWords = kept
	return removed
}

// HasTriggerWord reports whether word is configured, ignoring case.
func (p Preferences) HasTriggerWord(word string) bool {
	key := strings.ToLower(strings.TrimSpace(word))
	for _, w := range p.TriggerWords {
		if strings.ToLower(w) == key {
			return true
		}
	}
	return false
}
