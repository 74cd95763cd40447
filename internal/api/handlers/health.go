package handlers

import (
	"net/http"

	"github.com/whisperwalls/censor/interfaces"
)

type HealthHandler struct {
	name  string
	store interfaces.Pinger
}

// NewHealthHandler checks store readiness when it implements interfaces.Pinger.
func NewHealthHandler(name string, store interfaces.PreferenceStore) *HealthHandler {
	h := &HealthHandler{name: name}
	if p, ok := store.(interfaces.Pinger); ok {
		h.store = p
	}
	return h
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}

	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			checks[h.name] = "unhealthy: " + err.Error()
		} else {
			checks[h.name] = "ok"
		}
	}

	status := http.StatusOK
	for _, v := range checks {
		if v != "ok" {
			status = http.StatusServiceUnavailable
			break
		}
	}

	writeJSON(w, status, map[string]interface{}{"status": statusStr(status), "checks": checks})
}

func statusStr(code int) string {
	if code == http.StatusOK {
		return "ok"
	}
	return "unhealthy"
}
