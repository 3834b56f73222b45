package evaluation

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sgannotator/sg-annotator/internal/bus"
	"github.com/sgannotator/sg-annotator/internal/dataset"
	"github.com/sgannotator/sg-annotator/internal/history"
	apperrors "github.com/sgannotator/sg-annotator/internal/pkg/errors"
	"github.com/sgannotator/sg-annotator/internal/pkg/logger"
)

// RowSource supplies the currently loaded annotation rows.
type RowSource interface {
	Rows() []dataset.Row
}

// Handler provides HTTP handlers for evaluation.
type Handler struct {
	evaluator *Evaluator
	rows      RowSource
	history   history.Store
	eventBus  bus.Bus
	log       *logger.Logger
}

// NewHandler creates a new evaluation handler. The history store and
// event bus are optional.
func NewHandler(e *Evaluator, rows RowSource, hist history.Store, eventBus bus.Bus, log *logger.Logger) *Handler {
	return &Handler{
		evaluator: e,
		rows:      rows,
		history:   hist,
		eventBus:  eventBus,
		log:       log,
	}
}

// RegisterRoutes registers evaluation routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /evaluate", h.handleEvaluate)
	mux.HandleFunc("GET /evaluate/history", h.handleHistory)
}

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEvalError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.run(req)
	if err != nil {
		h.log.WithError(err).Warn("evaluation failed", "type", req.Type)
		writeEvalError(w, apperrors.StatusOf(err), err.Error())
		return
	}

	ks := h.evaluator.ResolveKValues(req.KValues)

	h.record(r, req.Type, ks, result)

	writeEvalJSON(w, http.StatusOK, Response{
		Success:        true,
		Results:        result,
		EvaluationType: req.Type,
		KValues:        ks,
	})
}

// run dispatches a request to the matching evaluation source mode.
func (h *Handler) run(req Request) (*Result, error) {
	opts := Options{
		KValues:        req.KValues,
		SeenPredicates: req.SeenPredicates,
		AlignBy:        AlignBy(req.AlignBy),
		AlignMode:      AlignMode(req.AlignMode),
	}

	switch req.Type {
	case TypeCurrent:
		if h.rows == nil {
			return nil, apperrors.ValidationError("no data to evaluate")
		}
		return h.evaluator.EvaluateCurrent(h.rows.Rows(), opts)

	case TypeFile:
		if req.PredFile == "" || req.GTFile == "" {
			return nil, apperrors.ValidationError("pred_file and gt_file are required")
		}
		return h.evaluator.EvaluateFiles(req.PredFile, req.GTFile, opts)

	case TypeCompare:
		if req.PredCSV == "" || req.GTCSV == "" {
			return nil, apperrors.ValidationError("pred_csv and gt_csv are required")
		}
		predRows, err := dataset.LoadCSV(req.PredCSV)
		if err != nil {
			return nil, err
		}
		gtRows, err := dataset.LoadCSV(req.GTCSV)
		if err != nil {
			return nil, err
		}
		return h.evaluator.EvaluateRows(predRows, gtRows, opts)

	case "":
		return nil, apperrors.ValidationError("missing required parameter: type")

	default:
		return nil, apperrors.ValidationError("unknown evaluation type: " + req.Type)
	}
}

// record persists the run and announces it, best effort.
func (h *Handler) record(r *http.Request, evalType string, ks []int, result *Result) {
	ctx := r.Context()

	run, err := history.NewRun(evalType, ks, result)
	if err != nil {
		h.log.WithError(err).Warn("failed to serialize run for history")
		return
	}

	if h.history != nil {
		if err := h.history.Save(ctx, run); err != nil {
			h.log.WithError(err).Warn("failed to save run history")
		}
	}

	if h.eventBus != nil {
		event := bus.NewEvent(bus.TopicEvaluationCompleted, "evaluation", map[string]any{
			"run_id":          run.ID,
			"evaluation_type": evalType,
			"total_items":     result.Statistics.TotalItems,
		})
		if err := h.eventBus.Publish(ctx, bus.TopicEvaluationCompleted, event); err != nil {
			h.log.WithError(err).Warn("failed to publish evaluation event")
		}
	}
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeEvalJSON(w, http.StatusOK, map[string]any{"runs": []history.Run{}})
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeEvalError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	runs, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		writeEvalError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}

	writeEvalJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// ResolveKValues returns the deduplicated ascending K list an evaluation
// with the given request values will use.
func (e *Evaluator) ResolveKValues(ks []int) []int {
	if len(ks) == 0 {
		ks = e.defaults.KValues
	}
	return dedupSorted(ks)
}

func writeEvalJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		_ = err // response already started
	}
}

func writeEvalError(w http.ResponseWriter, status int, message string) {
	writeEvalJSON(w, status, map[string]string{"error": message})
}
