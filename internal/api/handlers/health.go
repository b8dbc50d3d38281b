package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/ragserver/internal/cache"
	"github.com/nikhilbhutani/ragserver/internal/vectorstore"
)

type HealthHandler struct {
	index vectorstore.Index
	cache *cache.Cache
}

func NewHealthHandler(index vectorstore.Index, c *cache.Cache) *HealthHandler {
	return &HealthHandler{index: index, cache: c}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}

	if h.index != nil {
		if err := h.index.Ping(r.Context()); err != nil {
			checks["vectorstore"] = "unhealthy: " + err.Error()
		} else {
			checks["vectorstore"] = "ok"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			checks["redis"] = "unhealthy: " + err.Error()
		} else {
			checks["redis"] = "ok"
		}
	}

	status := http.StatusOK
	for _, v := range checks {
		if v != "ok" {
			status = http.StatusServiceUnavailable
			break
		}
	}

	writeJSON(w, status, map[string]any{"status": statusStr(status), "checks": checks})
}

func statusStr(code int) string {
	if code == http.StatusOK {
		return "ok"
	}
	return "unhealthy"
}
