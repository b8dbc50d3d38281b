package handlers

import (
	"net/http"

	"github.com/nikhilbhutani/ragserver/internal/rag"
)

type StatusHandler struct {
	pipeline *rag.Pipeline
}

func NewStatusHandler(pipeline *rag.Pipeline) *StatusHandler {
	return &StatusHandler{pipeline: pipeline}
}

func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"status":  h.pipeline.Status(r.Context()),
	})
}
