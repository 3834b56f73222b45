package dataset

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	apperrors "github.com/sgannotator/sg-annotator/internal/pkg/errors"
)

// Handler handles annotation dataset HTTP requests.
type Handler struct {
	svc *Service
}

// NewHandler creates a new dataset handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers dataset routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("POST /open", h.handleOpen)
	mux.HandleFunc("GET /row", h.handleGetRow)
	mux.HandleFunc("GET /row/{id}", h.handleGetRowByID)
	mux.HandleFunc("PUT /row/{id}", h.handleUpdateRow)
	mux.HandleFunc("GET /rows", h.handleRows)
	mux.HandleFunc("GET /progress", h.handleProgress)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Scene Graph Annotator API is running",
	})
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeError(w, http.StatusBadRequest, "missing file path parameter")
		return
	}

	count, err := h.svc.Open(r.Context(), req.Path)
	if err != nil {
		writeError(w, apperrors.StatusOf(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"total_rows":    count,
		"headers_valid": true,
		"message":       fmt.Sprintf("loaded %d rows", count),
	})
}

func (h *Handler) handleGetRow(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if rawIndex := query.Get("index"); rawIndex != "" {
		index, err := strconv.Atoi(rawIndex)
		if err != nil {
			writeError(w, http.StatusBadRequest, "index must be an integer")
			return
		}
		row, ok := h.svc.RowByIndex(index)
		if !ok {
			writeError(w, http.StatusNotFound, "row not found")
			return
		}
		writeJSON(w, http.StatusOK, row)
		return
	}

	if id := query.Get("id"); id != "" {
		row, ok := h.svc.RowByID(id)
		if !ok {
			writeError(w, http.StatusNotFound, "row not found")
			return
		}
		writeJSON(w, http.StatusOK, row)
		return
	}

	writeError(w, http.StatusBadRequest, "index or id parameter is required")
}

func (h *Handler) handleGetRowByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	row, ok := h.svc.RowByID(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("row %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (h *Handler) handleUpdateRow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var update RowUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid update payload")
		return
	}

	if err := h.svc.UpdateRow(r.Context(), id, update); err != nil {
		writeError(w, apperrors.StatusOf(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "update successful"})
}

func (h *Handler) handleRows(w http.ResponseWriter, r *http.Request) {
	summaries := h.svc.Summaries()
	if summaries == nil {
		summaries = []RowSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Progress())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		_ = err // response already started
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
