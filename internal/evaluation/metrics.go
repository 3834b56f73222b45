package evaluation

import (
	"github.com/sgannotator/sg-annotator/internal/scenegraph"
)

// kSlice returns the first k predicted triples as a set. k <= 0 yields an
// empty set.
func kSlice(preds []scenegraph.Triple, k int) map[scenegraph.Triple]struct{} {
	if k <= 0 {
		return map[scenegraph.Triple]struct{}{}
	}
	if k > len(preds) {
		k = len(preds)
	}
	return scenegraph.SetOf(preds[:k])
}

// RecallAtK computes micro-averaged Recall@K over aligned item pairs.
// Pairs with an empty ground-truth set contribute to neither numerator nor
// denominator.
func RecallAtK(pred, gt [][]scenegraph.Triple, k int) float64 {
	tpSum := 0
	gtSum := 0

	for i := range pred {
		gtSet := scenegraph.SetOf(gt[i])
		if len(gtSet) == 0 {
			continue
		}

		predK := kSlice(pred[i], k)
		for t := range predK {
			if _, hit := gtSet[t]; hit {
				tpSum++
			}
		}
		gtSum += len(gtSet)
	}

	if gtSum == 0 {
		return 0.0
	}
	return float64(tpSum) / float64(gtSum)
}

// MeanRecallAtK computes Recall@K macro-averaged over predicate types,
// correcting for predicate frequency imbalance. Each predicate observed in
// ground truth contributes one unweighted recall to the mean.
func MeanRecallAtK(pred, gt [][]scenegraph.Triple, k int) float64 {
	perPredTP := make(map[string]int)
	perPredGT := make(map[string]int)

	for i := range pred {
		predK := kSlice(pred[i], k)
		gtSet := scenegraph.SetOf(gt[i])

		for t := range gtSet {
			perPredGT[t.Predicate]++
		}
		for t := range predK {
			if _, hit := gtSet[t]; hit {
				perPredTP[t.Predicate]++
			}
		}
	}

	if len(perPredGT) == 0 {
		return 0.0
	}

	sum := 0.0
	for p, gtCount := range perPredGT {
		if gtCount > 0 {
			sum += float64(perPredTP[p]) / float64(gtCount)
		}
	}
	return sum / float64(len(perPredGT))
}

// ZeroShotRecallAtK computes Recall@K restricted to ground-truth triples
// whose predicate is not in the seen set. Pairs whose filtered set is
// empty are skipped.
func ZeroShotRecallAtK(pred, gt [][]scenegraph.Triple, seen map[string]struct{}, k int) float64 {
	tpSum := 0
	zsGTSum := 0

	for i := range pred {
		predK := kSlice(pred[i], k)
		gtSet := scenegraph.SetOf(gt[i])

		zsGT := make(map[scenegraph.Triple]struct{})
		for t := range gtSet {
			if _, wasSeen := seen[t.Predicate]; !wasSeen {
				zsGT[t] = struct{}{}
			}
		}
		if len(zsGT) == 0 {
			continue
		}

		for t := range predK {
			if _, hit := zsGT[t]; hit {
				tpSum++
			}
		}
		zsGTSum += len(zsGT)
	}

	if zsGTSum == 0 {
		return 0.0
	}
	return float64(tpSum) / float64(zsGTSum)
}

// MicroF1 computes pooled precision, recall, and F1 over all pairs using
// the full (unsliced) prediction sets. It is independent of K.
func MicroF1(pred, gt [][]scenegraph.Triple) (precision, recall, f1 float64) {
	tp, fp, fn := 0, 0, 0

	for i := range pred {
		pSet := scenegraph.SetOf(pred[i])
		gSet := scenegraph.SetOf(gt[i])

		for t := range pSet {
			if _, hit := gSet[t]; hit {
				tp++
			} else {
				fp++
			}
		}
		for t := range gSet {
			if _, hit := pSet[t]; !hit {
				fn++
			}
		}
	}

	if tp+fp > 0 {
		precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		recall = float64(tp) / float64(tp+fn)
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return precision, recall, f1
}
