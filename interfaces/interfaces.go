package interfaces

import (
	"context"

	"github.com/whisperwalls/censor/models"
)

// PreferenceStore persists per-user filter preferences.
// Unknown users yield models.ErrNotFound from GetPreferences.
type PreferenceStore interface {
	GetPreferences(ctx context.Context, userID string) (models.Preferences, error)
	SetPreferences(ctx context.Context, userID string, prefs models.Preferences) error
	AddTriggerWord(ctx context.Context, userID, word string) error
	RemoveTriggerWord(ctx context.Context, userID, word string) error
}

// Pinger is implemented by stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DecisionHandler handles verdicts by action.
type DecisionHandler interface {
	OnShow(ctx context.Context, verdict models.Verdict) error
	OnCensor(ctx context.Context, verdict models.Verdict) error
	OnBlock(ctx context.Context, verdict models.Verdict) error
}

// ProcessedHandler handles every verdict with one method.
type ProcessedHandler interface {
	OnProcessed(ctx context.Context, verdict models.Verdict) error
}

// Logger is an optional structured logger.
type Logger interface {
	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}
