package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whisperwalls/censor/models"
)

func TestNewPostgRESTAdapterValidation(t *testing.T) {
	if _, err := NewPostgRESTAdapter(PostgRESTOptions{APIKey: "k"}); err == nil {
		t.Fatalf("expected base URL error")
	}
	if _, err := NewPostgRESTAdapter(PostgRESTOptions{BaseURL: "http://x"}); err == nil {
		t.Fatalf("expected API key error")
	}
	a, err := NewPostgRESTAdapter(PostgRESTOptions{BaseURL: "http://x/", APIKey: "k"})
	if err != nil {
		t.Fatal(err)
	}
	if a.path != "/rest/v1/users" || a.idColumn != "user_id" {
		t.Fatalf("unexpected defaults: %s %s", a.path, a.idColumn)
	}
}

func TestGetPreferencesRequest(t *testing.T) {
	a, err := NewPostgRESTAdapter(PostgRESTOptions{BaseURL: "http://db.local", APIKey: "anon"})
	if err != nil {
		t.Fatal(err)
	}
	a.client.SetTransport(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodGet {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		if r.URL.Path != "/rest/v1/users" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("user_id") != "eq.u1" || r.URL.Query().Get("select") != preferenceColumns {
			t.Fatalf("unexpected query: %s", r.URL.RawQuery)
		}
		if r.Header.Get("apikey") != "anon" || r.Header.Get("Authorization") != "Bearer anon" {
			t.Fatalf("missing auth headers")
		}
		return jsonResponse(200, `[{"trigger_words":["spider"]}]`), nil
	}))

	p, err := a.GetPreferences(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(p.TriggerWords) != 1 || p.TriggerWords[0] != "spider" || !p.ProfanityFilter {
		t.Fatalf("unexpected preferences: %+v", p)
	}
}

func TestGetPreferencesErrors(t *testing.T) {
	a, _ := NewPostgRESTAdapter(PostgRESTOptions{BaseURL: "http://db.local", APIKey: "anon"})
	ctx := context.Background()

	a.client.SetTransport(roundTripFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(200, `[]`), nil
	}))
	if _, err := a.GetPreferences(ctx, "u1"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	a.client.SetTransport(roundTripFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(401, `{"message":"JWT expired"}`), nil
	}))
	if _, err := a.GetPreferences(ctx, "u1"); err == nil || errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected status error, got %v", err)
	}

	a.client.SetTransport(roundTripFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(200, `{`), nil
	}))
	if _, err := a.GetPreferences(ctx, "u1"); err == nil {
		t.Fatalf("expected decode error")
	}

	a.client.SetTransport(roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("dial")
	}))
	if _, err := a.GetPreferences(ctx, "u1"); err == nil {
		t.Fatalf("expected transport error")
	}
}

func TestTriggerWordEditsAgainstServer(t *testing.T) {
	srv := newFakePostgREST(map[string]models.Preferences{
		"u1": {TriggerWords: []string{"needles"}, ProfanityFilter: true},
	})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	a, err := NewPostgRESTAdapter(PostgRESTOptions{BaseURL: ts.URL, APIKey: "service"})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, a.AddTriggerWord(ctx, "u1", "spiders"))
	require.NoError(t, a.AddTriggerWord(ctx, "u1", "NEEDLES"))
	p, err := a.GetPreferences(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"needles", "spiders"}, p.TriggerWords)

	require.NoError(t, a.RemoveTriggerWord(ctx, "u1", "needles"))
	p, err = a.GetPreferences(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"spiders"}, p.TriggerWords)

	require.NoError(t, a.SetPreferences(ctx, "u1", models.Preferences{ProfanityFilter: false}))
	p, err = a.GetPreferences(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, p.TriggerWords)
	assert.NotNil(t, p.TriggerWords)
	assert.False(t, p.ProfanityFilter)

	assert.ErrorIs(t, a.AddTriggerWord(ctx, "ghost", "x1"), models.ErrNotFound)
	assert.ErrorIs(t, a.SetPreferences(ctx, "ghost", models.DefaultPreferences()), models.ErrNotFound)
	assert.NoError(t, a.RemoveTriggerWord(ctx, "ghost", "x1"))
	assert.NoError(t, a.Ping(ctx))
	assert.Equal(t, 1, srv.pings)
}

func TestPingStatusError(t *testing.T) {
	a, _ := NewPostgRESTAdapter(PostgRESTOptions{BaseURL: "http://db.local", APIKey: "anon"})
	a.client.SetTransport(roundTripFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(503, `{}`), nil
	}))
	assert.Error(t, a.Ping(context.Background()))
}

type fakePostgREST struct {
	mu    sync.Mutex
	rows  map[string]models.Preferences
	pings int
}

func newFakePostgREST(rows map[string]models.Preferences) *fakePostgREST {
	return &fakePostgREST{rows: rows}
}

func (f *fakePostgREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.Header.Get("apikey") == "" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	q := r.URL.Query()
	if q.Get("limit") == "0" {
		f.pings++
		_, _ = io.WriteString(w, `[]`)
		return
	}
	id := strings.TrimPrefix(q.Get("user_id"), "eq.")
	row, ok := f.rows[id]
	switch r.Method {
	case http.MethodGet:
	case http.MethodPatch:
		if ok {
			var next models.Preferences
			if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			f.rows[id] = next
			row = next
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	out := []models.Preferences{}
	if ok {
		out = append(out, row)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func jsonResponse(status int, body string) *http.Response {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body)), Header: h}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (r roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return r(req)
}
