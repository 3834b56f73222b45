package evaluation

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ExportJSON renders a result as pretty-printed JSON.
func ExportJSON(res *Result) ([]byte, error) {
	return json.MarshalIndent(res, "", "  ")
}

// ExportCSV renders a result as metric,value rows. Nested statistics are
// flattened with a stats_ prefix.
func ExportCSV(res *Result) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"metric", "value"}); err != nil {
		return nil, err
	}

	for _, name := range sortedMetricNames(res.Metrics) {
		record := []string{name, strconv.FormatFloat(res.Metrics[name], 'f', -1, 64)}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	for _, row := range statRows(res.Statistics) {
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportText renders a human-readable report.
func ExportText(res *Result) string {
	var b strings.Builder

	b.WriteString("Evaluation Report\n")
	b.WriteString("=================\n\n")

	b.WriteString("Metrics:\n")
	for _, name := range sortedMetricNames(res.Metrics) {
		fmt.Fprintf(&b, "  %-22s %.4f\n", name, res.Metrics[name])
	}

	b.WriteString("\nStatistics:\n")
	for _, row := range statRows(res.Statistics) {
		fmt.Fprintf(&b, "  %-28s %s\n", strings.TrimPrefix(row[0], "stats_"), row[1])
	}

	return b.String()
}

func statRows(s Statistics) [][]string {
	rows := [][]string{
		{"stats_total_items", strconv.Itoa(s.TotalItems)},
		{"stats_total_pred_triples", strconv.Itoa(s.TotalPredTriples)},
		{"stats_total_gt_triples", strconv.Itoa(s.TotalGTTriples)},
		{"stats_avg_pred_triples_per_item", strconv.FormatFloat(s.AvgPredTriplesPerItem, 'f', -1, 64)},
		{"stats_avg_gt_triples_per_item", strconv.FormatFloat(s.AvgGTTriplesPerItem, 'f', -1, 64)},
	}
	if s.SkippedPredRows > 0 {
		rows = append(rows, []string{"stats_skipped_pred_rows", strconv.Itoa(s.SkippedPredRows)})
	}
	if s.SkippedGTRows > 0 {
		rows = append(rows, []string{"stats_skipped_gt_rows", strconv.Itoa(s.SkippedGTRows)})
	}
	if s.MissingPredIDs > 0 {
		rows = append(rows, []string{"stats_missing_pred_ids", strconv.Itoa(s.MissingPredIDs)})
	}
	return rows
}

// sortedMetricNames orders metric keys by family name, then numerically
// by K, so recall@2 sorts before recall@10.
func sortedMetricNames(metrics map[string]float64) []string {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}

	sort.Slice(names, func(i, j int) bool {
		fi, ki := splitMetricName(names[i])
		fj, kj := splitMetricName(names[j])
		if fi != fj {
			return fi < fj
		}
		return ki < kj
	})
	return names
}

func splitMetricName(name string) (family string, k int) {
	at := strings.LastIndex(name, "@")
	if at < 0 {
		return name, 0
	}
	k, err := strconv.Atoi(name[at+1:])
	if err != nil {
		return name, 0
	}
	return name[:at], k
}
