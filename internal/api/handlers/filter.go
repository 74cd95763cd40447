package handlers

import (
	"fmt"
	"net/http"

	"github.com/whisperwalls/censor/core"
	"github.com/whisperwalls/censor/internal/auth"
	"github.com/whisperwalls/censor/models"
)

type FilterHandler struct {
	core     *core.Core
	maxBatch int
}

func NewFilterHandler(c *core.Core, maxBatch int) *FilterHandler {
	if maxBatch <= 0 {
		maxBatch = 200
	}
	return &FilterHandler{core: c, maxBatch: maxBatch}
}

// FilterRequest is the stateless filter body. Missing preferences mean defaults.
type FilterRequest struct {
	Content     string              `json:"content"`
	Preferences *models.Preferences `json:"preferences,omitempty"`
}

// BatchRequest holds messages to filter for the authenticated viewer.
type BatchRequest struct {
	Messages []models.Message `json:"messages"`
}

// FilterResponse is the decision plus whether the content was cut to the size limit.
type FilterResponse struct {
	models.Decision
	Truncated bool `json:"truncated,omitempty"`
}

// Filter applies the supplied preferences to one text without touching the store.
func (h *FilterHandler) Filter(w http.ResponseWriter, r *http.Request) {
	var req FilterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	prefs := models.DefaultPreferences()
	if req.Preferences != nil {
		prefs = *req.Preferences
	}
	v, err := h.core.Filter(req.Content, prefs)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FilterResponse{Decision: v.Decision, Truncated: v.Truncated})
}

// FilterMine filters messages with the caller's stored preferences.
func (h *FilterHandler) FilterMine(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages required")
		return
	}
	if len(req.Messages) > h.maxBatch {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("at most %d messages per request", h.maxBatch))
		return
	}

	verdicts, err := h.core.ProcessBatch(r.Context(), auth.ViewerIDFromContext(r.Context()), req.Messages)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verdicts)
}
