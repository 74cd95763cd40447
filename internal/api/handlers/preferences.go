package handlers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/whisperwalls/censor/core"
	"github.com/whisperwalls/censor/internal/auth"
	"github.com/whisperwalls/censor/models"
)

type PreferencesHandler struct {
	core *core.Core
}

func NewPreferencesHandler(c *core.Core) *PreferencesHandler {
	return &PreferencesHandler{core: c}
}

type triggerWordRequest struct {
	Word string `json:"word"`
}

func (h *PreferencesHandler) Get(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.core.Preferences(r.Context(), auth.ViewerIDFromContext(r.Context()))
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (h *PreferencesHandler) Put(w http.ResponseWriter, r *http.Request) {
	var prefs models.Preferences
	if err := decodeJSON(r, &prefs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.update(w, r, func(viewerID string) error {
		return h.core.UpdatePreferences(r.Context(), viewerID, prefs)
	}, http.StatusOK)
}

func (h *PreferencesHandler) AddTriggerWord(w http.ResponseWriter, r *http.Request) {
	var req triggerWordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.update(w, r, func(viewerID string) error {
		return h.core.AddTriggerWord(r.Context(), viewerID, req.Word)
	}, http.StatusCreated)
}

func (h *PreferencesHandler) RemoveTriggerWord(w http.ResponseWriter, r *http.Request) {
	// chi matches on RawPath when the request carries one, leaving params escaped.
	word := chi.URLParam(r, "word")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(word)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid trigger word")
			return
		}
		word = unescaped
	}
	h.update(w, r, func(viewerID string) error {
		return h.core.RemoveTriggerWord(r.Context(), viewerID, word)
	}, http.StatusOK)
}

// update runs edit and responds with the viewer's preferences as stored afterwards.
func (h *PreferencesHandler) update(w http.ResponseWriter, r *http.Request, edit func(viewerID string) error, status int) {
	viewerID := auth.ViewerIDFromContext(r.Context())
	if err := edit(viewerID); err != nil {
		writeCoreError(w, err)
		return
	}
	prefs, err := h.core.Preferences(r.Context(), viewerID)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, status, prefs)
}
