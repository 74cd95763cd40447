package models

import "fmt"

// ReasonProfanityFiltered is reported when censoring changed the content.
const ReasonProfanityFiltered = "Profanity filtered"

// MatchResult is one token that matched one trigger word.
type MatchResult struct {
	// Original is the token as it appeared in the text, punctuation included.
	Original   string  `json:"original"`
	Trigger    string  `json:"trigger"`
	Similarity float64 `json:"similarity"`
}

// FilterOutcome is the result of a trigger-word scan.
type FilterOutcome struct {
	HasMatch bool          `json:"has_match"`
	Matches  []MatchResult `json:"matches"`
}

// Decision is the combined filtering result for one piece of content.
type Decision struct {
	ShouldBlock     bool          `json:"should_block"`
	FilteredContent string        `json:"filtered_content"`
	Reasons         []string      `json:"reasons"`
	TriggerMatches  []MatchResult `json:"trigger_matches"`
	Confidence      float64       `json:"confidence"`
}

// Action returns the classification of the decision.
func (d Decision) Action() Action {
	if d.ShouldBlock {
		return ActionBlock
	}
	for _, r := range d.Reasons {
		if r == ReasonProfanityFiltered {
			return ActionCensor
		}
	}
	return ActionShow
}

// Action classifies a decision. Mapping it to hide, blur or show is up to the caller.
type Action int

const (
	ActionShow Action = 1 + iota
	ActionCensor
	ActionBlock
)

// Valid returns true when action is in range [1..3].
func (a Action) Valid() bool {
	return a >= ActionShow && a <= ActionBlock
}

func (a Action) String() string {
	switch a {
	case ActionShow:
		return "show"
	case ActionCensor:
		return "censor"
	case ActionBlock:
		return "block"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// MarshalText emits the lowercase action name.
func (a Action) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("models: invalid action %d", int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText parses an action name.
func (a *Action) UnmarshalText(text []byte) error {
	switch string(text) {
	case "show":
		*a = ActionShow
	case "censor":
		*a = ActionCensor
	case "block":
		*a = ActionBlock
	default:
		return fmt.Errorf("models: unsupported action %q", string(text))
	}
	return nil
}

// Verdict is the per-viewer decision for one message.
type Verdict struct {
	Message  Message  `json:"message"`
	ViewerID string   `json:"viewer_id,omitempty"`
	Decision Decision `json:"decision"`
	Action   Action   `json:"action"`
	// Truncated is set when the content exceeded the size limit and was cut before filtering.
	Truncated bool `json:"truncated,omitempty"`
	// PreferencesFallback is set when the viewer's preferences could not be loaded
	// and defaults were applied instead.
	PreferencesFallback bool `json:"preferences_fallback,omitempty"`
}
