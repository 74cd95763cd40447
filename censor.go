package censor

import (
	"github.com/whisperwalls/censor/core"
	"github.com/whisperwalls/censor/engine"
)

// Re-export core API at module root for convenient imports.
type (
	Core          = core.Core
	Options       = core.Options
	EventName     = core.EventName
	DecisionEvent = core.DecisionEvent
	EventHandler  = core.EventHandler
	Engine        = engine.Engine
	Thresholds    = engine.Thresholds
)

const (
	EventShow   = core.EventShow
	EventCensor = core.EventCensor
	EventBlock  = core.EventBlock

	DefaultThreshold = engine.DefaultThreshold
)

// New creates a new per-viewer content filter.
func New(opt Options) *Core {
	return core.New(opt)
}

// NewEngine returns an engine with the built-in profanity lexicon.
func NewEngine() *Engine {
	return engine.New()
}
