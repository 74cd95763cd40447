package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/whisperwalls/censor/models"
)

// SQLAdapter is a generic SQL storage implementation.
type SQLAdapter struct {
	db     *sql.DB
	table  string
	dollar bool
}

// SQLOption configures SQLAdapter.
type SQLOption func(*SQLAdapter)

// WithDollarPlaceholders switches query placeholders from ? to $1, $2 (PostgreSQL).
func WithDollarPlaceholders() SQLOption {
	return func(s *SQLAdapter) { s.dollar = true }
}

// NewSQLAdapter creates an adapter over *sql.DB.
func NewSQLAdapter(db *sql.DB, table string, opts ...SQLOption) (*SQLAdapter, error) {
	if db == nil {
		return nil, errors.New("storage: db is nil")
	}
	if strings.TrimSpace(table) == "" {
		table = "user_preferences"
	}
	s := &SQLAdapter{db: db, table: table}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// EnsureSchema creates table if missing.
func (s *SQLAdapter) EnsureSchema(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	user_id TEXT PRIMARY KEY,
	trigger_words TEXT NOT NULL DEFAULT '[]',
	profanity_filter BOOLEAN NOT NULL DEFAULT TRUE
)`, s.table)
	_, err := s.db.ExecContext(ctx, q)
	return err
}

func (s *SQLAdapter) GetPreferences(ctx context.Context, userID string) (models.Preferences, error) {
	q := s.bind(fmt.Sprintf(`SELECT trigger_words, profanity_filter FROM %s WHERE user_id = ? LIMIT 1`, s.table))
	var (
		raw       string
		profanity bool
	)
	err := s.db.QueryRowContext(ctx, q, userID).Scan(&raw, &profanity)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Preferences{}, models.ErrNotFound
	}
	if err != nil {
		return models.Preferences{}, err
	}
	words, err := decodeTriggerWords(raw)
	if err != nil {
		return models.Preferences{}, fmt.Errorf("storage: decode trigger words for %s: %w", userID, err)
	}
	return models.Preferences{TriggerWords: words, ProfanityFilter: profanity}, nil
}

func (s *SQLAdapter) SetPreferences(ctx context.Context, userID string, prefs models.Preferences) error {
	raw, err := encodeTriggerWords(prefs.TriggerWords)
	if err != nil {
		return err
	}
	q := s.bind(fmt.Sprintf(`INSERT INTO %s (user_id, trigger_words, profanity_filter) VALUES (?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET trigger_words = excluded.trigger_words, profanity_filter = excluded.profanity_filter`, s.table))
	_, err = s.db.ExecContext(ctx, q, userID, raw, prefs.ProfanityFilter)
	return err
}

// AddTriggerWord reads, edits and writes back the row. Concurrent edits of the
// same user are last-writer-wins.
func (s *SQLAdapter) AddTriggerWord(ctx context.Context, userID, word string) error {
	p, err := s.GetPreferences(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		p, err = models.DefaultPreferences(), nil
	}
	if err != nil {
		return err
	}
	if !p.AddTriggerWord(word) {
		return nil
	}
	return s.SetPreferences(ctx, userID, p)
}

func (s *SQLAdapter) RemoveTriggerWord(ctx context.Context, userID, word string) error {
	p, err := s.GetPreferences(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !p.RemoveTriggerWord(word) {
		return nil
	}
	return s.SetPreferences(ctx, userID, p)
}

// Ping checks the database connection.
func (s *SQLAdapter) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// bind rewrites ? placeholders to $n when dollar placeholders are enabled.
func (s *SQLAdapter) bind(q string) string {
	if !s.dollar {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

func encodeTriggerWords(words []string) (string, error) {
	if words == nil {
		words = []string{}
	}
	raw, err := json.Marshal(words)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeTriggerWords(raw string) ([]string, error) {
	words := []string{}
	if strings.TrimSpace(raw) == "" {
		return words, nil
	}
	if err := json.Unmarshal([]byte(raw), &words); err != nil {
		return nil, err
	}
	if words == nil {
		words = []string{}
	}
	return words, nil
}
