package evaluation

import (
	"math"
	"testing"

	"github.com/sgannotator/sg-annotator/internal/scenegraph"
)

func tr(s, p, o string) scenegraph.Triple {
	return scenegraph.Triple{Subject: s, Predicate: p, Object: o}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRecallAtK_PartialHit(t *testing.T) {
	// One pair: the single prediction matches one of two GT triples.
	pred := [][]scenegraph.Triple{{tr("boy", "in", "park")}}
	gt := [][]scenegraph.Triple{{tr("boy", "in", "park"), tr("dog", "in", "park")}}

	if got := RecallAtK(pred, gt, 1); !almostEqual(got, 0.5) {
		t.Errorf("RecallAtK(1) = %v, want 0.5", got)
	}
}

func TestRecallAtK_CutoffApplies(t *testing.T) {
	// The matching triple sits at rank 2, so recall@1 misses it.
	pred := [][]scenegraph.Triple{{
		tr("x", "near", "y"),
		tr("boy", "in", "park"),
	}}
	gt := [][]scenegraph.Triple{{tr("boy", "in", "park")}}

	if got := RecallAtK(pred, gt, 1); !almostEqual(got, 0.0) {
		t.Errorf("RecallAtK(1) = %v, want 0", got)
	}
	if got := RecallAtK(pred, gt, 2); !almostEqual(got, 1.0) {
		t.Errorf("RecallAtK(2) = %v, want 1", got)
	}
}

func TestRecallAtK_MonotonicInK(t *testing.T) {
	pred := [][]scenegraph.Triple{{
		tr("a", "p1", "b"), tr("c", "p2", "d"), tr("e", "p3", "f"), tr("g", "p4", "h"),
	}}
	gt := [][]scenegraph.Triple{{
		tr("c", "p2", "d"), tr("g", "p4", "h"), tr("z", "p9", "w"),
	}}

	prev := 0.0
	for k := 1; k <= 10; k++ {
		got := RecallAtK(pred, gt, k)
		if got < prev {
			t.Fatalf("RecallAtK(%d) = %v < RecallAtK(%d) = %v", k, got, k-1, prev)
		}
		prev = got
	}
}

func TestRecallAtK_EmptyGTPairsExcluded(t *testing.T) {
	// The empty-GT pair carries many wrong predictions but must not
	// affect the denominator.
	pred := [][]scenegraph.Triple{
		{tr("boy", "in", "park")},
		{tr("w1", "x", "w2"), tr("w3", "x", "w4")},
	}
	gt := [][]scenegraph.Triple{
		{tr("boy", "in", "park")},
		{},
	}

	if got := RecallAtK(pred, gt, 10); !almostEqual(got, 1.0) {
		t.Errorf("RecallAtK(10) = %v, want 1", got)
	}
}

func TestRecallAtK_ZeroDenominator(t *testing.T) {
	pred := [][]scenegraph.Triple{{tr("a", "b", "c")}}
	gt := [][]scenegraph.Triple{{}}

	if got := RecallAtK(pred, gt, 5); got != 0.0 {
		t.Errorf("RecallAtK() = %v, want 0 on empty ground truth", got)
	}
	if got := RecallAtK(nil, nil, 5); got != 0.0 {
		t.Errorf("RecallAtK() = %v, want 0 on no pairs", got)
	}
}

func TestRecallAtK_NonPositiveK(t *testing.T) {
	pred := [][]scenegraph.Triple{{tr("a", "b", "c")}}
	gt := [][]scenegraph.Triple{{tr("a", "b", "c")}}

	if got := RecallAtK(pred, gt, 0); got != 0.0 {
		t.Errorf("RecallAtK(0) = %v, want 0", got)
	}
	if got := RecallAtK(pred, gt, -3); got != 0.0 {
		t.Errorf("RecallAtK(-3) = %v, want 0", got)
	}
}

func TestMeanRecallAtK_MacroOverPredicates(t *testing.T) {
	// Predicate "common" appears 3 times (all hit), predicate "rare"
	// once (missed). Micro recall would be 3/4; macro is (1 + 0)/2.
	pred := [][]scenegraph.Triple{{
		tr("a", "common", "b"), tr("c", "common", "d"), tr("e", "common", "f"),
	}}
	gt := [][]scenegraph.Triple{{
		tr("a", "common", "b"), tr("c", "common", "d"), tr("e", "common", "f"),
		tr("g", "rare", "h"),
	}}

	if got := RecallAtK(pred, gt, 10); !almostEqual(got, 0.75) {
		t.Errorf("RecallAtK() = %v, want 0.75", got)
	}
	if got := MeanRecallAtK(pred, gt, 10); !almostEqual(got, 0.5) {
		t.Errorf("MeanRecallAtK() = %v, want 0.5", got)
	}
}

func TestMeanRecallAtK_NoGT(t *testing.T) {
	pred := [][]scenegraph.Triple{{tr("a", "b", "c")}}
	gt := [][]scenegraph.Triple{{}}

	if got := MeanRecallAtK(pred, gt, 5); got != 0.0 {
		t.Errorf("MeanRecallAtK() = %v, want 0", got)
	}
}

func TestZeroShotRecallAtK(t *testing.T) {
	seen := map[string]struct{}{"in": {}}

	pred := [][]scenegraph.Triple{{
		tr("boy", "in", "park"),
		tr("boy", "waves_at", "dog"),
	}}
	gt := [][]scenegraph.Triple{{
		tr("boy", "in", "park"),
		tr("boy", "waves_at", "dog"),
		tr("dog", "runs_toward", "boy"),
	}}

	// Unseen GT set is {waves_at, runs_toward}; one of the two is hit.
	if got := ZeroShotRecallAtK(pred, gt, seen, 10); !almostEqual(got, 0.5) {
		t.Errorf("ZeroShotRecallAtK() = %v, want 0.5", got)
	}
}

func TestZeroShotRecallAtK_AllSeenSkipped(t *testing.T) {
	seen := map[string]struct{}{"in": {}}

	pred := [][]scenegraph.Triple{{tr("boy", "in", "park")}}
	gt := [][]scenegraph.Triple{{tr("boy", "in", "park")}}

	if got := ZeroShotRecallAtK(pred, gt, seen, 10); got != 0.0 {
		t.Errorf("ZeroShotRecallAtK() = %v, want 0 when all predicates are seen", got)
	}
}

func TestMicroF1(t *testing.T) {
	// tp=1, fp=0, fn=1: precision 1, recall 0.5, f1 = 2/3.
	pred := [][]scenegraph.Triple{{tr("boy", "in", "park")}}
	gt := [][]scenegraph.Triple{{tr("boy", "in", "park"), tr("dog", "in", "park")}}

	precision, recall, f1 := MicroF1(pred, gt)
	if !almostEqual(precision, 1.0) {
		t.Errorf("precision = %v, want 1", precision)
	}
	if !almostEqual(recall, 0.5) {
		t.Errorf("recall = %v, want 0.5", recall)
	}
	if !almostEqual(f1, 2.0/3.0) {
		t.Errorf("f1 = %v, want 0.666...", f1)
	}
}

func TestMicroF1_IgnoresRank(t *testing.T) {
	// Unlike recall@K, the pooled metrics use the full prediction set.
	pred := [][]scenegraph.Triple{{
		tr("w", "x", "y"), tr("w2", "x", "y2"), tr("boy", "in", "park"),
	}}
	gt := [][]scenegraph.Triple{{tr("boy", "in", "park")}}

	precision, recall, _ := MicroF1(pred, gt)
	if !almostEqual(precision, 1.0/3.0) {
		t.Errorf("precision = %v, want 0.333...", precision)
	}
	if !almostEqual(recall, 1.0) {
		t.Errorf("recall = %v, want 1", recall)
	}
}

func TestMicroF1_NoOverlap(t *testing.T) {
	pred := [][]scenegraph.Triple{{tr("a", "b", "c")}}
	gt := [][]scenegraph.Triple{{tr("x", "y", "z")}}

	precision, recall, f1 := MicroF1(pred, gt)
	if precision != 0 || recall != 0 || f1 != 0 {
		t.Errorf("MicroF1() = %v, %v, %v, want all 0", precision, recall, f1)
	}
}

func TestMicroF1_EmptyInput(t *testing.T) {
	precision, recall, f1 := MicroF1(nil, nil)
	if precision != 0 || recall != 0 || f1 != 0 {
		t.Errorf("MicroF1() = %v, %v, %v, want all 0", precision, recall, f1)
	}
}

func TestMetricsBounded(t *testing.T) {
	pred := [][]scenegraph.Triple{
		{tr("a", "p", "b"), tr("c", "q", "d")},
		{tr("e", "r", "f")},
	}
	gt := [][]scenegraph.Triple{
		{tr("a", "p", "b")},
		{tr("e", "r", "f"), tr("g", "s", "h")},
	}

	for k := 1; k <= 5; k++ {
		for name, v := range map[string]float64{
			"recall":      RecallAtK(pred, gt, k),
			"mean_recall": MeanRecallAtK(pred, gt, k),
		} {
			if v < 0 || v > 1 {
				t.Errorf("%s@%d = %v out of [0,1]", name, k, v)
			}
		}
	}

	precision, recall, f1 := MicroF1(pred, gt)
	for name, v := range map[string]float64{"precision": precision, "recall": recall, "f1": f1} {
		if v < 0 || v > 1 {
			t.Errorf("%s = %v out of [0,1]", name, v)
		}
	}
}
