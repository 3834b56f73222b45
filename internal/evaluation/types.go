// Package evaluation computes retrieval-style metrics over relation
// triples extracted from temporal scene graphs.
package evaluation

import "encoding/json"

// Evaluation types accepted by the orchestrator.
const (
	TypeCurrent = "current" // in-memory annotation rows, self-comparison
	TypeFile    = "file"    // two JSON documents
	TypeCompare = "compare" // two CSV row files
)

// DefaultKValues are the cutoffs used when a request supplies none.
var DefaultKValues = []int{1, 5, 10, 20, 50, 100}

// Statistics summarizes an evaluation run. Triple totals count raw
// extracted triples (list lengths), not unique-set cardinalities.
type Statistics struct {
	TotalItems            int     `json:"total_items"`
	TotalPredTriples      int     `json:"total_pred_triples"`
	TotalGTTriples        int     `json:"total_gt_triples"`
	AvgPredTriplesPerItem float64 `json:"avg_pred_triples_per_item"`
	AvgGTTriplesPerItem   float64 `json:"avg_gt_triples_per_item"`

	// Observability counters for permissive-skip conditions.
	SkippedPredRows int `json:"skipped_pred_rows,omitempty"`
	SkippedGTRows   int `json:"skipped_gt_rows,omitempty"`
	MissingPredIDs  int `json:"missing_pred_ids,omitempty"`
}

// Result is the outcome of one evaluation run: a flat metric map (keys
// like "recall@5", "precision", "f1", values in [0,1]) plus statistics.
// It is constructed once per run and never mutated afterwards.
type Result struct {
	Metrics    map[string]float64
	Statistics Statistics
}

// MarshalJSON renders the result as the flat map the API exposes, with
// statistics nested under "statistics".
func (r *Result) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Metrics)+1)
	for k, v := range r.Metrics {
		out[k] = v
	}
	out["statistics"] = r.Statistics
	return json.Marshal(out)
}

// UnmarshalJSON restores a result from its API form.
func (r *Result) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Metrics = make(map[string]float64, len(raw))
	for k, v := range raw {
		if k == "statistics" {
			if err := json.Unmarshal(v, &r.Statistics); err != nil {
				return err
			}
			continue
		}
		var f float64
		if err := json.Unmarshal(v, &f); err != nil {
			return err
		}
		r.Metrics[k] = f
	}
	return nil
}

// Request is the evaluation request consumed by the HTTP handler and CLI.
type Request struct {
	Type           string   `json:"type"`
	KValues        []int    `json:"k_values,omitempty"`
	SeenPredicates []string `json:"seen_predicates,omitempty"`

	// Type == "file"
	PredFile  string `json:"pred_file,omitempty"`
	GTFile    string `json:"gt_file,omitempty"`
	AlignBy   string `json:"align_by,omitempty"`
	AlignMode string `json:"align_mode,omitempty"`

	// Type == "compare"
	PredCSV string `json:"pred_csv,omitempty"`
	GTCSV   string `json:"gt_csv,omitempty"`
}

// Response wraps a successful evaluation.
type Response struct {
	Success        bool    `json:"success"`
	Results        *Result `json:"results"`
	EvaluationType string  `json:"evaluation_type"`
	KValues        []int   `json:"k_values"`
}

// Options configures one evaluation run.
type Options struct {
	KValues        []int
	SeenPredicates []string
	AlignBy        AlignBy
	AlignMode      AlignMode
}
