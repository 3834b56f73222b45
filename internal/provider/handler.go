package provider

import (
	"encoding/json"
	"net/http"

	"github.com/sgannotator/sg-annotator/internal/bus"
	"github.com/sgannotator/sg-annotator/internal/pkg/logger"
)

// Handler exposes batch scene-graph generation over HTTP.
type Handler struct {
	runner   *Runner
	eventBus bus.Bus
	log      *logger.Logger
}

// NewHandler creates a generation handler. The event bus is optional.
func NewHandler(runner *Runner, eventBus bus.Bus, log *logger.Logger) *Handler {
	return &Handler{runner: runner, eventBus: eventBus, log: log}
}

// RegisterRoutes registers generation routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /generate", h.handleGenerate)
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Texts []string `json:"texts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Texts) == 0 {
		writeGenError(w, http.StatusBadRequest, "texts array required")
		return
	}

	results := h.runner.GenerateBatch(r.Context(), req.Texts)

	succeeded := 0
	for _, res := range results {
		if res.Success() {
			succeeded++
		}
	}

	if h.eventBus != nil {
		event := bus.NewEvent(bus.TopicGenerationCompleted, "provider", map[string]any{
			"total":     len(results),
			"succeeded": succeeded,
		})
		if err := h.eventBus.Publish(r.Context(), bus.TopicGenerationCompleted, event); err != nil {
			h.log.WithError(err).Warn("failed to publish generation event")
		}
	}

	writeGenJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"total":     len(results),
		"succeeded": succeeded,
		"results":   results,
	})
}

func writeGenJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		_ = err // response already started
	}
}

func writeGenError(w http.ResponseWriter, status int, message string) {
	writeGenJSON(w, status, map[string]string{"error": message})
}
