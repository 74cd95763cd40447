package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/whisperwalls/censor/interfaces"
	"github.com/whisperwalls/censor/models"
)

type mockStore struct {
	mu       sync.RWMutex
	prefs    map[string]models.Preferences
	getCalls atomic.Int64
	err      error
}

func newMockStore() *mockStore {
	return &mockStore{prefs: make(map[string]models.Preferences)}
}

func (m *mockStore) with(userID string, prefs models.Preferences) *mockStore {
	m.prefs[userID] = prefs
	return m
}

func (m *mockStore) GetPreferences(_ context.Context, userID string) (models.Preferences, error) {
	m.getCalls.Add(1)
	if m.err != nil {
		return models.Preferences{}, m.err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.prefs[userID]
	if !ok {
		return models.Preferences{}, models.ErrNotFound
	}
	return p, nil
}

func (m *mockStore) SetPreferences(_ context.Context, userID string, prefs models.Preferences) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	m.prefs[userID] = prefs
	m.mu.Unlock()
	return nil
}

func (m *mockStore) AddTriggerWord(_ context.Context, userID, word string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prefs[userID]
	if !ok {
		p = models.DefaultPreferences()
	}
	p.AddTriggerWord(word)
	m.prefs[userID] = p
	return nil
}

func (m *mockStore) RemoveTriggerWord(_ context.Context, userID, word string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prefs[userID]
	if !ok {
		return nil
	}
	p.RemoveTriggerWord(word)
	m.prefs[userID] = p
	return nil
}

var _ interfaces.PreferenceStore = (*mockStore)(nil)

func TestProcessMessageBlocksOnViewerTriggerWords(t *testing.T) {
	st := newMockStore().with("u1", models.Preferences{TriggerWords: []string{"spider"}, ProfanityFilter: true})
	c := New(Options{Store: st})

	v, err := c.ProcessMessage(context.Background(), "u1", models.Message{ID: 7, AuthorID: "a", Content: "I saw a spidr today, fuck that was scary"})
	if err != nil {
		t.Fatal(err)
	}
	if v.Action != models.ActionBlock || !v.Decision.ShouldBlock {
		t.Fatalf("expected block, got %+v", v)
	}
	if v.Decision.FilteredContent != "I saw a spidr today, **** that was scary" {
		t.Fatalf("unexpected filtered content: %q", v.Decision.FilteredContent)
	}
	if v.ViewerID != "u1" || v.Message.ID != 7 || v.PreferencesFallback {
		t.Fatalf("unexpected verdict metadata: %+v", v)
	}
}

func TestSameMessageDiffersPerViewer(t *testing.T) {
	st := newMockStore().
		with("arachnophobe", models.Preferences{TriggerWords: []string{"spider"}, ProfanityFilter: false}).
		with("calm", models.Preferences{TriggerWords: []string{}, ProfanityFilter: false})
	c := New(Options{Store: st})
	msg := models.Message{ID: 1, Content: "big spider"}

	a, _ := c.ProcessMessage(context.Background(), "arachnophobe", msg)
	b, _ := c.ProcessMessage(context.Background(), "calm", msg)
	if a.Action != models.ActionBlock || b.Action != models.ActionShow {
		t.Fatalf("unexpected actions: %s / %s", a.Action, b.Action)
	}
}

func TestUnknownAndAnonymousViewersGetDefaults(t *testing.T) {
	st := newMockStore()
	c := New(Options{Store: st})

	v, err := c.ProcessMessage(context.Background(), "nobody", models.Message{ID: 1, Content: "oh shit"})
	if err != nil {
		t.Fatal(err)
	}
	if v.Action != models.ActionCensor || v.PreferencesFallback {
		t.Fatalf("expected default censoring without fallback flag, got %+v", v)
	}

	calls := st.getCalls.Load()
	v, err = c.ProcessMessage(context.Background(), "", models.Message{ID: 2, Content: "oh shit"})
	if err != nil {
		t.Fatal(err)
	}
	if v.Action != models.ActionCensor {
		t.Fatalf("anonymous viewer must get defaults, got %s", v.Action)
	}
	if st.getCalls.Load() != calls {
		t.Fatalf("anonymous viewer must not hit the store")
	}
}

func TestStoreFailureFallsBackWithoutError(t *testing.T) {
	st := newMockStore()
	st.err = errors.New("backend down")
	lg := &testLogger{}
	c := New(Options{Store: st, Logger: lg})

	v, err := c.ProcessMessage(context.Background(), "u1", models.Message{ID: 1, Content: "damn"})
	if err != nil {
		t.Fatalf("store failure must not fail filtering: %v", err)
	}
	if !v.PreferencesFallback || v.Decision.FilteredContent != "****" {
		t.Fatalf("expected fallback verdict, got %+v", v)
	}
	if lg.warned.Load() == 0 {
		t.Fatalf("expected warning log")
	}
}

func TestPreferencesAreCached(t *testing.T) {
	st := newMockStore().with("u1", models.Preferences{TriggerWords: []string{"x1"}, ProfanityFilter: true})
	c := New(Options{Store: st, CacheTTL: time.Hour})

	for i := 0; i < 3; i++ {
		if _, err := c.ProcessMessage(context.Background(), "u1", models.Message{ID: int64(i), Content: "hi"}); err != nil {
			t.Fatal(err)
		}
	}
	if st.getCalls.Load() != 1 {
		t.Fatalf("expected one store call, got %d", st.getCalls.Load())
	}
}

func TestCacheTTLExpiration(t *testing.T) {
	st := newMockStore().with("u1", models.DefaultPreferences())
	c := New(Options{Store: st, CacheTTL: 10 * time.Millisecond})

	_, _ = c.ProcessMessage(context.Background(), "u1", models.Message{ID: 1, Content: "a"})
	time.Sleep(25 * time.Millisecond)
	_, _ = c.ProcessMessage(context.Background(), "u1", models.Message{ID: 2, Content: "a"})
	if st.getCalls.Load() != 2 {
		t.Fatalf("expected second store call after TTL, got %d", st.getCalls.Load())
	}
}

func TestDisableCacheAlwaysHitsStore(t *testing.T) {
	st := newMockStore().with("u1", models.DefaultPreferences())
	c := New(Options{Store: st, DisableCache: true})
	_, _ = c.ProcessBatch(context.Background(), "u1", []models.Message{{ID: 1, Content: "a"}})
	_, _ = c.ProcessBatch(context.Background(), "u1", []models.Message{{ID: 2, Content: "a"}})
	if st.getCalls.Load() != 2 {
		t.Fatalf("expected two store calls, got %d", st.getCalls.Load())
	}
}

func TestUpdatePreferencesInvalidatesCache(t *testing.T) {
	st := newMockStore().with("u1", models.Preferences{TriggerWords: []string{}, ProfanityFilter: false})
	c := New(Options{Store: st, CacheTTL: time.Hour})
	ctx := context.Background()

	v, _ := c.ProcessMessage(ctx, "u1", models.Message{ID: 1, Content: "clowns everywhere"})
	if v.Action != models.ActionShow {
		t.Fatalf("expected show before update")
	}
	if err := c.AddTriggerWord(ctx, "u1", "  clown "); err != nil {
		t.Fatal(err)
	}
	v, _ = c.ProcessMessage(ctx, "u1", models.Message{ID: 2, Content: "clowns everywhere"})
	if v.Action != models.ActionBlock {
		t.Fatalf("expected block after adding trigger word, got %s", v.Action)
	}
	if err := c.RemoveTriggerWord(ctx, "u1", "CLOWN"); err != nil {
		t.Fatal(err)
	}
	v, _ = c.ProcessMessage(ctx, "u1", models.Message{ID: 3, Content: "clowns everywhere"})
	if v.Action != models.ActionShow {
		t.Fatalf("expected show after removal, got %s", v.Action)
	}

	if err := c.UpdatePreferences(ctx, "u1", models.Preferences{TriggerWords: []string{" a1 ", "A1", ""}, ProfanityFilter: true}); err != nil {
		t.Fatal(err)
	}
	p, err := c.Preferences(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(p.TriggerWords) != 1 || p.TriggerWords[0] != "a1" || !p.ProfanityFilter {
		t.Fatalf("expected normalized preferences, got %+v", p)
	}
}

func TestTriggerWordValidation(t *testing.T) {
	c := New(Options{Store: newMockStore(), MaxTriggerWordLength: 8})
	ctx := context.Background()
	if err := c.AddTriggerWord(ctx, "u1", "   "); err == nil {
		t.Fatalf("expected empty word error")
	}
	if err := c.AddTriggerWord(ctx, "u1", strings.Repeat("a", 9)); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if err := c.AddTriggerWord(ctx, "", "ok"); err == nil {
		t.Fatalf("expected viewer error")
	}
	if err := c.RemoveTriggerWord(ctx, "u1", ""); err == nil {
		t.Fatalf("expected empty word error")
	}
	if err := c.UpdatePreferences(ctx, "u1", models.Preferences{TriggerWords: []string{strings.Repeat("b", 9)}}); err == nil {
		t.Fatalf("expected length error")
	}
}

func TestMaxSizeTrim(t *testing.T) {
	c := New(Options{Store: newMockStore(), MaxMessageSize: 5})
	v, err := c.ProcessMessage(context.Background(), "", models.Message{ID: 1, Content: "abcdéfgh"})
	if err != nil {
		t.Fatal(err)
	}
	if !v.Truncated || v.Message.Content != "abcd" {
		t.Fatalf("expected rune-safe trim, got %q truncated=%v", v.Message.Content, v.Truncated)
	}
}

func TestProcessBatchKeepsInputOrder(t *testing.T) {
	st := newMockStore().with("u1", models.Preferences{TriggerWords: []string{"snake"}, ProfanityFilter: true})
	c := New(Options{Store: st})

	in := []models.Message{
		{ID: 10, Content: "hello"},
		{ID: 20, Content: "a snake!"},
		{ID: 30, Content: "crap"},
	}
	out, err := c.ProcessBatch(context.Background(), "u1", in)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(in) {
		t.Fatalf("unexpected len: %d", len(out))
	}
	want := []models.Action{models.ActionShow, models.ActionBlock, models.ActionCensor}
	for i := range in {
		if out[i].Message.ID != in[i].ID {
			t.Fatalf("order mismatch at %d: got %d want %d", i, out[i].Message.ID, in[i].ID)
		}
		if out[i].Action != want[i] {
			t.Fatalf("action mismatch at %d: got %s want %s", i, out[i].Action, want[i])
		}
	}
	m := c.Metrics()
	if m[models.ActionShow] != 1 || m[models.ActionBlock] != 1 || m[models.ActionCensor] != 1 {
		t.Fatalf("unexpected metrics: %v", m)
	}
}

func TestProcessBatchEmptyAndNilStore(t *testing.T) {
	c := New(Options{Store: newMockStore()})
	res, err := c.ProcessBatch(context.Background(), "u1", nil)
	if err != nil || res != nil {
		t.Fatalf("expected nil result: %v %v", res, err)
	}

	c2 := New(Options{})
	if _, err := c2.ProcessMessage(context.Background(), "u1", models.Message{ID: 1}); err == nil {
		t.Fatalf("expected nil store error")
	}
	if err := c2.Run(context.Background()); err == nil {
		t.Fatalf("expected run error")
	}
	if _, err := c2.Preferences(context.Background(), "u1"); err == nil {
		t.Fatalf("expected nil store error")
	}
}

func TestConcurrentProcess(t *testing.T) {
	st := newMockStore().with("u1", models.Preferences{TriggerWords: []string{"spider"}, ProfanityFilter: true})
	c := New(Options{Store: st})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			v, err := c.ProcessMessage(context.Background(), "u1", models.Message{ID: id, Content: "spidr"})
			if err != nil || v.Action != models.ActionBlock {
				t.Errorf("unexpected verdict: %+v err=%v", v, err)
			}
		}(int64(i + 1))
	}
	wg.Wait()
	if c.Metrics()[models.ActionBlock] != 100 {
		t.Fatalf("expected 100 blocks, got %d", c.Metrics()[models.ActionBlock])
	}
}

func TestFilterUsesConfiguredThresholds(t *testing.T) {
	c := New(Options{Store: newMockStore(), TriggerThreshold: 90})
	v, err := c.Filter("spidr", models.Preferences{TriggerWords: []string{"spider"}})
	if err != nil {
		t.Fatal(err)
	}
	if v.Decision.ShouldBlock {
		t.Fatalf("83%% similarity must not block at threshold 90")
	}
}
