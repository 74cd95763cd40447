package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/whisperwalls/censor/models"
)

const preferenceColumns = "trigger_words,profanity_filter"

// PostgRESTAdapter stores preferences in the users table of a hosted PostgREST API.
type PostgRESTAdapter struct {
	client   *resty.Client
	path     string
	idColumn string
}

// PostgRESTOptions configures adapter.
type PostgRESTOptions struct {
	BaseURL string
	APIKey  string
	// Table defaults to "users".
	Table string
	// IDColumn defaults to "user_id".
	IDColumn string
	Timeout  time.Duration
}

// NewPostgRESTAdapter creates adapter instance.
func NewPostgRESTAdapter(opt PostgRESTOptions) (*PostgRESTAdapter, error) {
	if strings.TrimSpace(opt.BaseURL) == "" {
		return nil, errors.New("rest: base URL is required")
	}
	if strings.TrimSpace(opt.APIKey) == "" {
		return nil, errors.New("rest: API key is required")
	}
	if strings.TrimSpace(opt.Table) == "" {
		opt.Table = "users"
	}
	if strings.TrimSpace(opt.IDColumn) == "" {
		opt.IDColumn = "user_id"
	}
	if opt.Timeout <= 0 {
		opt.Timeout = 10 * time.Second
	}
	return &PostgRESTAdapter{
		path:     "/rest/v1/" + opt.Table,
		idColumn: opt.IDColumn,
		client: resty.New().
			SetTimeout(opt.Timeout).
			SetBaseURL(strings.TrimRight(opt.BaseURL, "/")).
			SetAuthToken(opt.APIKey).
			SetHeader("apikey", opt.APIKey).
			SetHeader("Accept", "application/json").
			SetHeader("Content-Type", "application/json"),
	}, nil
}

func (p *PostgRESTAdapter) GetPreferences(ctx context.Context, userID string) (models.Preferences, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("select", preferenceColumns).
		SetQueryParam(p.idColumn, "eq."+userID).
		Get(p.path)
	if err != nil {
		return models.Preferences{}, err
	}
	if resp.StatusCode() >= http.StatusMultipleChoices {
		return models.Preferences{}, fmt.Errorf("rest: status %d: %s", resp.StatusCode(), resp.String())
	}
	return firstRow(resp.Body())
}

// SetPreferences patches the user's row. The row itself is owned by the
// hosted signup flow, so a missing user yields models.ErrNotFound.
func (p *PostgRESTAdapter) SetPreferences(ctx context.Context, userID string, prefs models.Preferences) error {
	words := prefs.TriggerWords
	if words == nil {
		words = []string{}
	}
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam(p.idColumn, "eq."+userID).
		SetQueryParam("select", preferenceColumns).
		SetHeader("Prefer", "return=representation").
		SetBody(models.Preferences{TriggerWords: words, ProfanityFilter: prefs.ProfanityFilter}).
		Patch(p.path)
	if err != nil {
		return err
	}
	if resp.StatusCode() >= http.StatusMultipleChoices {
		return fmt.Errorf("rest: status %d: %s", resp.StatusCode(), resp.String())
	}
	_, err = firstRow(resp.Body())
	return err
}

// AddTriggerWord is a read-modify-write; concurrent edits are last-writer-wins.
func (p *PostgRESTAdapter) AddTriggerWord(ctx context.Context, userID, word string) error {
	prefs, err := p.GetPreferences(ctx, userID)
	if err != nil {
		return err
	}
	if !prefs.AddTriggerWord(word) {
		return nil
	}
	return p.SetPreferences(ctx, userID, prefs)
}

func (p *PostgRESTAdapter) RemoveTriggerWord(ctx context.Context, userID, word string) error {
	prefs, err := p.GetPreferences(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !prefs.RemoveTriggerWord(word) {
		return nil
	}
	return p.SetPreferences(ctx, userID, prefs)
}

// Ping requests zero rows of the table.
func (p *PostgRESTAdapter) Ping(ctx context.Context) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("select", p.idColumn).
		SetQueryParam("limit", "0").
		Get(p.path)
	if err != nil {
		return err
	}
	if resp.StatusCode() >= http.StatusMultipleChoices {
		return fmt.Errorf("rest: ping status %d", resp.StatusCode())
	}
	return nil
}

func firstRow(body []byte) (models.Preferences, error) {
	var rows []models.Preferences
	if err := json.Unmarshal(body, &rows); err != nil {
		return models.Preferences{}, fmt.Errorf("rest: decode rows: %w", err)
	}
	if len(rows) == 0 {
		return models.Preferences{}, models.ErrNotFound
	}
	out := rows[0]
	if out.TriggerWords == nil {
		out.TriggerWords = []string{}
	}
	return out, nil
}
