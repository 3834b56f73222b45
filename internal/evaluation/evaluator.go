package evaluation

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/sgannotator/sg-annotator/internal/config"
	"github.com/sgannotator/sg-annotator/internal/dataset"
	apperrors "github.com/sgannotator/sg-annotator/internal/pkg/errors"
	"github.com/sgannotator/sg-annotator/internal/pkg/logger"
	"github.com/sgannotator/sg-annotator/internal/scenegraph"
)

// Evaluator runs the normalize → extract → align → metrics pipeline.
// It holds only immutable defaults, so a single instance is safe for
// concurrent use.
type Evaluator struct {
	defaults Options
	log      *logger.Logger
}

// NewEvaluator creates an evaluator with defaults from configuration.
func NewEvaluator(cfg config.EvalConfig, log *logger.Logger) *Evaluator {
	defaults := Options{
		KValues:   cfg.KValues,
		AlignBy:   AlignBy(cfg.AlignBy),
		AlignMode: AlignMode(cfg.AlignMode),
	}
	if len(defaults.KValues) == 0 {
		defaults.KValues = DefaultKValues
	}
	if defaults.AlignBy == "" {
		defaults.AlignBy = AlignByIndex
	}
	if defaults.AlignMode == "" {
		defaults.AlignMode = AlignModeError
	}
	return &Evaluator{defaults: defaults, log: log}
}

// Evaluate runs the full pipeline over two decoded JSON documents.
func (e *Evaluator) Evaluate(predData, gtData any, opts Options) (*Result, error) {
	opts = e.withDefaults(opts)

	predIDs, predFrames, err := scenegraph.NormalizeItems(predData)
	if err != nil {
		return nil, err
	}
	gtIDs, gtFrames, err := scenegraph.NormalizeItems(gtData)
	if err != nil {
		return nil, err
	}

	predTriples := scenegraph.ExtractAll(predFrames)
	gtTriples := scenegraph.ExtractAll(gtFrames)

	aligned, err := Align(predIDs, predTriples, gtIDs, gtTriples, opts.AlignBy, opts.AlignMode)
	if err != nil {
		return nil, err
	}
	if len(aligned.Missing) > 0 {
		e.log.Warn("ground-truth ids missing from predictions", "count", len(aligned.Missing))
	}

	return e.compute(aligned, opts), nil
}

// EvaluateFiles runs the pipeline over two JSON files.
func (e *Evaluator) EvaluateFiles(predPath, gtPath string, opts Options) (*Result, error) {
	predData, err := loadJSON(predPath)
	if err != nil {
		return nil, err
	}
	gtData, err := loadJSON(gtPath)
	if err != nil {
		return nil, err
	}
	return e.Evaluate(predData, gtData, opts)
}

// EvaluateRows runs the pipeline over annotation rows, pairing items by
// id with min-length truncation. Rows whose scenegraph field fails to
// parse are dropped from their side and counted, not failed.
func (e *Evaluator) EvaluateRows(predRows, gtRows []dataset.Row, opts Options) (*Result, error) {
	opts = e.withDefaults(opts)
	opts.AlignBy = AlignByID
	opts.AlignMode = AlignModeMin

	predData, skippedPred := rowsToItems(predRows)
	gtData, skippedGT := rowsToItems(gtRows)

	if skippedPred > 0 || skippedGT > 0 {
		e.log.Warn("rows skipped during conversion",
			"pred", skippedPred, "gt", skippedGT)
	}

	result, err := e.Evaluate(predData, gtData, opts)
	if err != nil {
		return nil, err
	}
	result.Statistics.SkippedPredRows = skippedPred
	result.Statistics.SkippedGTRows = skippedGT
	return result, nil
}

// EvaluateCurrent evaluates the loaded dataset against itself:
// predictions are the rows marked both annotated and reasonable, ground
// truth is every row. Used for statistical sanity-checking.
func (e *Evaluator) EvaluateCurrent(rows []dataset.Row, opts Options) (*Result, error) {
	var predRows []dataset.Row
	for _, row := range rows {
		if row.IsAnnotated && row.IsReasonable {
			predRows = append(predRows, row)
		}
	}
	if len(predRows) == 0 {
		return nil, apperrors.ValidationError("no data to evaluate")
	}

	return e.EvaluateRows(predRows, rows, opts)
}

// compute runs the metric suite over an aligned run.
func (e *Evaluator) compute(aligned Alignment, opts Options) *Result {
	metrics := make(map[string]float64)

	seen := make(map[string]struct{}, len(opts.SeenPredicates))
	for _, p := range opts.SeenPredicates {
		seen[p] = struct{}{}
	}

	for _, k := range dedupSorted(opts.KValues) {
		metrics[fmt.Sprintf("recall@%d", k)] = RecallAtK(aligned.Pred, aligned.GT, k)
		metrics[fmt.Sprintf("mean_recall@%d", k)] = MeanRecallAtK(aligned.Pred, aligned.GT, k)
		if len(seen) > 0 {
			metrics[fmt.Sprintf("zero_shot_recall@%d", k)] =
				ZeroShotRecallAtK(aligned.Pred, aligned.GT, seen, k)
		}
	}

	precision, recall, f1 := MicroF1(aligned.Pred, aligned.GT)
	metrics["precision"] = precision
	metrics["recall"] = recall
	metrics["f1"] = f1

	n := len(aligned.Pred)
	stats := Statistics{
		TotalItems:     n,
		MissingPredIDs: len(aligned.Missing),
	}
	for i := range aligned.Pred {
		stats.TotalPredTriples += len(aligned.Pred[i])
		stats.TotalGTTriples += len(aligned.GT[i])
	}
	if n > 0 {
		stats.AvgPredTriplesPerItem = float64(stats.TotalPredTriples) / float64(n)
		stats.AvgGTTriplesPerItem = float64(stats.TotalGTTriples) / float64(n)
	}

	return &Result{Metrics: metrics, Statistics: stats}
}

func (e *Evaluator) withDefaults(opts Options) Options {
	if len(opts.KValues) == 0 {
		opts.KValues = e.defaults.KValues
	}
	if opts.AlignBy == "" {
		opts.AlignBy = e.defaults.AlignBy
	}
	if opts.AlignMode == "" {
		opts.AlignMode = e.defaults.AlignMode
	}
	return opts
}

// rowsToItems converts annotation rows to the {id, scenegraph} item
// shape, parsing the scenegraph field as JSON. Unparseable rows are
// dropped and counted.
func rowsToItems(rows []dataset.Row) (items []any, skipped int) {
	for _, row := range rows {
		var sg any
		if err := json.Unmarshal([]byte(row.Scenegraph), &sg); err != nil {
			skipped++
			continue
		}
		items = append(items, map[string]any{
			"id":         row.ID,
			"scenegraph": sg,
		})
	}
	return items, skipped
}

func loadJSON(path string) (any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NotFoundError(fmt.Sprintf("file %s", path))
		}
		return nil, apperrors.Wrap(apperrors.CodeStorageError, "reading JSON file", err)
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeFormat,
			fmt.Sprintf("parsing %s", path), err)
	}
	return data, nil
}

func dedupSorted(ks []int) []int {
	set := make(map[int]struct{}, len(ks))
	for _, k := range ks {
		set[k] = struct{}{}
	}
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
