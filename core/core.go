package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/whisperwalls/censor/engine"
	"github.com/whisperwalls/censor/interfaces"
	"github.com/whisperwalls/censor/models"
)

const (
	defaultMaxMessageSize       = 16 * KB
	defaultMaxTriggerWordLength = 255
	defaultMaxTriggerWords      = 100
	defaultCacheTTL             = 5 * time.Minute
	defaultCacheMaxBytes        = 8 * MB
	defaultSweepInterval        = time.Minute
)

// ErrInvalidInput marks rejected viewer IDs and trigger words.
var ErrInvalidInput = errors.New("core: invalid input")

// EventName is a callback bus event.
type EventName string

const (
	EventShow   EventName = "show"
	EventCensor EventName = "censor"
	EventBlock  EventName = "block"
)

// DecisionEvent is callback payload.
type DecisionEvent struct {
	MessageID      int64
	AuthorID       string
	ViewerID       string
	Action         models.Action
	Reasons        []string
	TriggerMatches []models.MatchResult
	Confidence     float64
}

// EventHandler handles one filtering event.
type EventHandler func(ctx context.Context, event DecisionEvent) error

// Options configure core filter.
type Options struct {
	Store           interfaces.PreferenceStore
	Engine          *engine.Engine
	DecisionHandler interfaces.DecisionHandler
	Processed       interfaces.ProcessedHandler
	Logger          interfaces.Logger

	TriggerThreshold     float64
	ProfanityThreshold   float64
	MaxMessageSize       int
	MaxTriggerWordLength int
	MaxTriggerWords      int
	CacheTTL             time.Duration
	CacheMaxBytes        int
	DisableCache         bool
	SweepInterval        time.Duration
}

// Core applies each viewer's stored preferences to the messages they read.
type Core struct {
	store  interfaces.PreferenceStore
	engine *engine.Engine
	cb     interfaces.DecisionHandler
	allCb  interfaces.ProcessedHandler
	logger interfaces.Logger

	thresholds           engine.Thresholds
	maxMessageSize       int
	maxTriggerWordLength int
	maxTriggerWords      int
	cacheTTL             time.Duration
	sweepInterval        time.Duration
	cache                *preferenceCache

	eventsMu sync.RWMutex
	events   map[EventName][]EventHandler

	processed [4]atomic.Int64
}

// New creates filter instance. Configuration errors are returned on Run/Process methods.
func New(opt Options) *Core {
	c := &Core{
		cb:                   noopCallbacks{},
		engine:               opt.Engine,
		events:               make(map[EventName][]EventHandler, 3),
		thresholds:           engine.DefaultThresholds(),
		maxMessageSize:       defaultMaxMessageSize,
		maxTriggerWordLength: defaultMaxTriggerWordLength,
		maxTriggerWords:      defaultMaxTriggerWords,
		cacheTTL:             defaultCacheTTL,
		sweepInterval:        defaultSweepInterval,
	}

	if c.engine == nil {
		c.engine = engine.New()
	}
	if opt.TriggerThreshold > 0 {
		c.thresholds.Trigger = opt.TriggerThreshold
	}
	if opt.ProfanityThreshold > 0 {
		c.thresholds.Profanity = opt.ProfanityThreshold
	}
	if opt.MaxMessageSize > 0 {
		c.maxMessageSize = opt.MaxMessageSize
	}
	if opt.MaxTriggerWordLength > 0 {
		c.maxTriggerWordLength = opt.MaxTriggerWordLength
	}
	if opt.MaxTriggerWords > 0 {
		c.maxTriggerWords = opt.MaxTriggerWords
	}
	if opt.CacheTTL > 0 {
		c.cacheTTL = opt.CacheTTL
	}
	if opt.SweepInterval > 0 {
		c.sweepInterval = opt.SweepInterval
	}
	cacheMaxBytes := defaultCacheMaxBytes
	if opt.CacheMaxBytes > 0 {
		cacheMaxBytes = opt.CacheMaxBytes
	}
	if opt.Logger != nil {
		c.logger = opt.Logger
	}
	if opt.DecisionHandler != nil {
		c.cb = opt.DecisionHandler
	}
	if opt.Processed != nil {
		c.allCb = opt.Processed
	}

	c.store = opt.Store
	if !opt.DisableCache {
		c.cache = newPreferenceCache(int64(cacheMaxBytes))
	}

	return c
}

// On registers event handlers.
func (c *Core) On(event EventName, handler EventHandler) error {
	if handler == nil {
		return errors.New("core: handler is nil")
	}
	c.eventsMu.Lock()
	c.events[event] = append(c.events[event], handler)
	c.eventsMu.Unlock()
	return nil
}

// OnShow registers handler for content shown as-is.
func (c *Core) OnShow(handler EventHandler) error {
	return c.On(EventShow, handler)
}

// OnCensor registers handler for content with censored profanity.
func (c *Core) OnCensor(handler EventHandler) error {
	return c.On(EventCensor, handler)
}

// OnBlock registers handler for content matching a viewer's trigger words.
func (c *Core) OnBlock(handler EventHandler) error {
	return c.On(EventBlock, handler)
}

// Run sweeps expired cached preferences until context cancellation.
func (c *Core) Run(ctx context.Context) error {
	if err := c.validate(); err != nil {
		return err
	}

	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.sweep(time.Now())
		}
	}
}

func (c *Core) sweep(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			c.logWarn("preference cache sweep panic", map[string]any{"panic": fmt.Sprint(r)})
		}
	}()
	c.cache.RemoveExpired(now)
}

// Filter applies caller-supplied prefs to content with the configured
// thresholds and input limits. It does no I/O. Preferences are normalized;
// too many or too long trigger words yield ErrInvalidInput.
func (c *Core) Filter(content string, prefs models.Preferences) (models.Verdict, error) {
	prefs = prefs.Normalize()
	if err := c.validateTriggerWords(prefs.TriggerWords); err != nil {
		return models.Verdict{}, err
	}
	msg, truncated := c.prepare(models.Message{Content: content})
	d := c.engine.FilterContentWith(msg.Content, prefs, c.thresholds)
	return models.Verdict{
		Message:   msg,
		Decision:  d,
		Action:    d.Action(),
		Truncated: truncated,
	}, nil
}

// ProcessMessage filters one message for one viewer.
func (c *Core) ProcessMessage(ctx context.Context, viewerID string, message models.Message) (models.Verdict, error) {
	res, err := c.ProcessBatch(ctx, viewerID, []models.Message{message})
	if err != nil {
		return models.Verdict{}, err
	}
	if len(res) == 0 {
		return models.Verdict{}, errors.New("core: empty result")
	}
	return res[0], nil
}

// ProcessBatch filters messages for one viewer, keeping input order.
// Preferences are loaded once per batch. A store failure falls back to
// default preferences and is reported on each verdict, never as an error.
func (c *Core) ProcessBatch(ctx context.Context, viewerID string, messages []models.Message) ([]models.Verdict, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, nil
	}

	prefs, fallback := c.viewerPreferences(ctx, viewerID)

	out := make([]models.Verdict, len(messages))
	for i, msg := range messages {
		prepared, truncated := c.prepare(msg)
		d := c.engine.FilterContentWith(prepared.Content, prefs, c.thresholds)
		v := models.Verdict{
			Message:             prepared,
			ViewerID:            viewerID,
			Decision:            d,
			Action:              d.Action(),
			Truncated:           truncated,
			PreferencesFallback: fallback,
		}
		c.record(ctx, v)
		out[i] = v
	}
	return out, nil
}

func (c *Core) prepare(msg models.Message) (models.Message, bool) {
	if len(msg.Content) <= c.maxMessageSize {
		return msg, false
	}
	cut := c.maxMessageSize
	for cut > 0 && !utf8.RuneStart(msg.Content[cut]) {
		cut--
	}
	msg.Content = msg.Content[:cut]
	return msg, true
}

func (c *Core) viewerPreferences(ctx context.Context, viewerID string) (models.Preferences, bool) {
	if viewerID == "" {
		return models.DefaultPreferences(), false
	}
	prefs, err := c.lookup(ctx, viewerID)
	if err != nil {
		c.logWarn("preferences unavailable, using defaults", map[string]any{
			"error":  err.Error(),
			"viewer": viewerID,
		})
		return models.DefaultPreferences(), true
	}
	return prefs, false
}

func (c *Core) lookup(ctx context.Context, viewerID string) (models.Preferences, error) {
	if cached, ok := c.cache.Get(viewerID, time.Now()); ok {
		return cached, nil
	}
	gen := c.cache.BeginLoad(viewerID)
	prefs, err := c.store.GetPreferences(ctx, viewerID)
	if errors.Is(err, models.ErrNotFound) {
		prefs, err = models.DefaultPreferences(), nil
	}
	if err != nil {
		c.cache.AbortLoad(viewerID, gen)
		return models.Preferences{}, err
	}
	prefs = prefs.Normalize()
	c.cache.FinishLoad(viewerID, gen, prefs, c.cacheTTL, time.Now())
	return prefs, nil
}

// Preferences returns the viewer's preferences, or defaults for unknown viewers.
func (c *Core) Preferences(ctx context.Context, viewerID string) (models.Preferences, error) {
	if err := c.validateViewer(viewerID); err != nil {
		return models.Preferences{}, err
	}
	return c.lookup(ctx, viewerID)
}

// UpdatePreferences normalizes and stores the viewer's preferences.
func (c *Core) UpdatePreferences(ctx context.Context, viewerID string, prefs models.Preferences) error {
	if err := c.validateViewer(viewerID); err != nil {
		return err
	}
	prefs = prefs.Normalize()
	if err := c.validateTriggerWords(prefs.TriggerWords); err != nil {
		return err
	}
	defer c.InvalidatePreferences(viewerID)
	return c.store.SetPreferences(ctx, viewerID, prefs)
}

// AddTriggerWord adds one trigger word to the viewer's preferences.
func (c *Core) AddTriggerWord(ctx context.Context, viewerID, word string) error {
	if err := c.validateViewer(viewerID); err != nil {
		return err
	}
	word = strings.TrimSpace(word)
	if err := c.validateTriggerWord(word); err != nil {
		return err
	}
	current, err := c.lookup(ctx, viewerID)
	if err != nil {
		return err
	}
	if !current.HasTriggerWord(word) && len(current.TriggerWords) >= c.maxTriggerWords {
		return fmt.Errorf("%w: at most %d trigger words", ErrInvalidInput, c.maxTriggerWords)
	}
	defer c.InvalidatePreferences(viewerID)
	return c.store.AddTriggerWord(ctx, viewerID, word)
}

// RemoveTriggerWord removes one trigger word from the viewer's preferences.
func (c *Core) RemoveTriggerWord(ctx context.Context, viewerID, word string) error {
	if err := c.validateViewer(viewerID); err != nil {
		return err
	}
	word = strings.TrimSpace(word)
	if word == "" {
		return fmt.Errorf("%w: trigger word is empty", ErrInvalidInput)
	}
	defer c.InvalidatePreferences(viewerID)
	return c.store.RemoveTriggerWord(ctx, viewerID, word)
}

// InvalidatePreferences drops the viewer's cached preferences.
func (c *Core) InvalidatePreferences(viewerID string) {
	c.cache.Delete(viewerID)
}

// Metrics returns count of processed messages by action.
func (c *Core) Metrics() map[models.Action]int64 {
	out := make(map[models.Action]int64, 3)
	for a := models.ActionShow; a <= models.ActionBlock; a++ {
		out[a] = c.processed[a].Load()
	}
	return out
}

func (c *Core) record(ctx context.Context, v models.Verdict) {
	action := v.Action
	if !action.Valid() {
		action = models.ActionShow
	}
	c.processed[action].Add(1)
	e := DecisionEvent{
		MessageID:      v.Message.ID,
		AuthorID:       v.Message.AuthorID,
		ViewerID:       v.ViewerID,
		Action:         action,
		Reasons:        v.Decision.Reasons,
		TriggerMatches: v.Decision.TriggerMatches,
		Confidence:     v.Decision.Confidence,
	}
	c.dispatchByAction(ctx, action, v)
	c.dispatchEvent(ctx, e)
}

func (c *Core) dispatchByAction(ctx context.Context, action models.Action, v models.Verdict) {
	var err error
	switch action {
	case models.ActionShow:
		err = c.cb.OnShow(ctx, v)
	case models.ActionCensor:
		err = c.cb.OnCensor(ctx, v)
	case models.ActionBlock:
		err = c.cb.OnBlock(ctx, v)
	}
	if err != nil {
		c.logWarn("callback failed", map[string]any{"error": err.Error(), "action": action.String()})
	}
	if c.allCb != nil {
		if err := c.allCb.OnProcessed(ctx, v); err != nil {
			c.logWarn("processed callback failed", map[string]any{"error": err.Error()})
		}
	}
}

func (c *Core) dispatchEvent(ctx context.Context, e DecisionEvent) {
	event := eventNameFromAction(e.Action)
	c.eventsMu.RLock()
	handlers := append([]EventHandler(nil), c.events[event]...)
	c.eventsMu.RUnlock()
	for _, h := range handlers {
		if err := h(ctx, e); err != nil {
			c.logWarn("event handler failed", map[string]any{"error": err.Error(), "event": event})
		}
	}
}

func eventNameFromAction(action models.Action) EventName {
	switch action {
	case models.ActionCensor:
		return EventCensor
	case models.ActionBlock:
		return EventBlock
	default:
		return EventShow
	}
}

func (c *Core) validate() error {
	if c.store == nil {
		return errors.New("core: preference store is nil")
	}
	if c.maxMessageSize <= 0 {
		return fmt.Errorf("core: invalid max message size: %d", c.maxMessageSize)
	}
	return nil
}

func (c *Core) validateViewer(viewerID string) error {
	if err := c.validate(); err != nil {
		return err
	}
	if strings.TrimSpace(viewerID) == "" {
		return fmt.Errorf("%w: viewer id is required", ErrInvalidInput)
	}
	return nil
}

func (c *Core) validateTriggerWords(words []string) error {
	if len(words) > c.maxTriggerWords {
		return fmt.Errorf("%w: at most %d trigger words", ErrInvalidInput, c.maxTriggerWords)
	}
	for _, w := range words {
		if err := c.validateTriggerWord(w); err != nil {
			return err
		}
	}
	return nil
}

func (c *Core) validateTriggerWord(word string) error {
	if word == "" {
		return fmt.Errorf("%w: trigger word is empty", ErrInvalidInput)
	}
	if len(word) > c.maxTriggerWordLength {
		return fmt.Errorf("%w: trigger word exceeds %d bytes", ErrInvalidInput, c.maxTriggerWordLength)
	}
	return nil
}

func (c *Core) logWarn(msg string, fields map[string]any) {
	if c.logger != nil {
		c.logger.Warn(msg, fields)
	}
}

type noopCallbacks struct{}

func (noopCallbacks) OnShow(context.Context, models.Verdict) error   { return nil }
func (noopCallbacks) OnCensor(context.Context, models.Verdict) error { return nil }
func (noopCallbacks) OnBlock(context.Context, models.Verdict) error  { return nil }
