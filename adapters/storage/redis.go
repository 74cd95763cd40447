package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/whisperwalls/censor/models"
)

const (
	fieldTriggerWords    = "trigger_words"
	fieldProfanityFilter = "profanity_filter"
	maxWatchRetries      = 5
)

// RedisAdapter keeps one hash per user under prefix+userID.
type RedisAdapter struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisAdapter creates an adapter over a go-redis client.
func NewRedisAdapter(client redis.UniversalClient, prefix string) (*RedisAdapter, error) {
	if client == nil {
		return nil, errors.New("storage: redis client is nil")
	}
	if strings.TrimSpace(prefix) == "" {
		prefix = "censor:prefs:"
	}
	return &RedisAdapter{client: client, prefix: prefix}, nil
}

func (r *RedisAdapter) key(userID string) string {
	return r.prefix + userID
}

func (r *RedisAdapter) GetPreferences(ctx context.Context, userID string) (models.Preferences, error) {
	fields, err := r.client.HGetAll(ctx, r.key(userID)).Result()
	if err != nil {
		return models.Preferences{}, fmt.Errorf("storage: redis hgetall %s: %w", userID, err)
	}
	return decodeHash(fields)
}

func (r *RedisAdapter) SetPreferences(ctx context.Context, userID string, prefs models.Preferences) error {
	values, err := encodeHash(prefs)
	if err != nil {
		return err
	}
	return r.client.HSet(ctx, r.key(userID), values).Err()
}

func (r *RedisAdapter) AddTriggerWord(ctx context.Context, userID, word string) error {
	return r.update(ctx, userID, func(p *models.Preferences, found bool) bool {
		return p.AddTriggerWord(word)
	})
}

func (r *RedisAdapter) RemoveTriggerWord(ctx context.Context, userID, word string) error {
	return r.update(ctx, userID, func(p *models.Preferences, found bool) bool {
		return found && p.RemoveTriggerWord(word)
	})
}

// update applies edit under WATCH and retries when the key changed concurrently.
func (r *RedisAdapter) update(ctx context.Context, userID string, edit func(p *models.Preferences, found bool) bool) error {
	key := r.key(userID)
	txf := func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		p, err := decodeHash(fields)
		found := true
		if errors.Is(err, models.ErrNotFound) {
			p, err, found = models.DefaultPreferences(), nil, false
		}
		if err != nil {
			return err
		}
		if !edit(&p, found) {
			return nil
		}
		values, err := encodeHash(p)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, values)
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("storage: redis update %s: too many concurrent writers", userID)
}

// Ping checks the redis connection.
func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func encodeHash(p models.Preferences) (map[string]any, error) {
	raw, err := encodeTriggerWords(p.TriggerWords)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		fieldTriggerWords:    raw,
		fieldProfanityFilter: strconv.FormatBool(p.ProfanityFilter),
	}, nil
}

func decodeHash(fields map[string]string) (models.Preferences, error) {
	if len(fields) == 0 {
		return models.Preferences{}, models.ErrNotFound
	}
	words, err := decodeTriggerWords(fields[fieldTriggerWords])
	if err != nil {
		return models.Preferences{}, fmt.Errorf("storage: decode trigger words: %w", err)
	}
	p := models.Preferences{TriggerWords: words, ProfanityFilter: true}
	if raw, ok := fields[fieldProfanityFilter]; ok && raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return models.Preferences{}, fmt.Errorf("storage: decode profanity filter: %w", err)
		}
		p.ProfanityFilter = v
	}
	return p, nil
}
