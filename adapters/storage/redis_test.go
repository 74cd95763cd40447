package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whisperwalls/censor/models"
)

func TestNewRedisAdapter(t *testing.T) {
	_, err := NewRedisAdapter(nil, "")
	assert.Error(t, err)

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	a, err := NewRedisAdapter(client, "")
	require.NoError(t, err)
	assert.Equal(t, "censor:prefs:u1", a.key("u1"))
}

func TestRedisHashRoundTrip(t *testing.T) {
	values, err := encodeHash(models.Preferences{TriggerWords: []string{"spider"}, ProfanityFilter: false})
	require.NoError(t, err)

	fields := make(map[string]string, len(values))
	for k, v := range values {
		fields[k] = v.(string)
	}
	p, err := decodeHash(fields)
	require.NoError(t, err)
	assert.Equal(t, []string{"spider"}, p.TriggerWords)
	assert.False(t, p.ProfanityFilter)
}

func TestRedisDecodeHash(t *testing.T) {
	_, err := decodeHash(map[string]string{})
	assert.True(t, errors.Is(err, models.ErrNotFound))

	p, err := decodeHash(map[string]string{fieldTriggerWords: `["a1"]`})
	require.NoError(t, err)
	assert.True(t, p.ProfanityFilter, "missing profanity field defaults to enabled")

	_, err = decodeHash(map[string]string{fieldProfanityFilter: "maybe"})
	assert.Error(t, err)
}

func TestRedisAdapterUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	a, err := NewRedisAdapter(client, "test:")
	require.NoError(t, err)

	ctx := context.Background()
	_, err = a.GetPreferences(ctx, "u1")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, models.ErrNotFound))
	assert.Error(t, a.AddTriggerWord(ctx, "u1", "x1"))
	assert.Error(t, a.Ping(ctx))
}
