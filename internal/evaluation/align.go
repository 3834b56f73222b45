package evaluation

import (
	"fmt"

	apperrors "github.com/sgannotator/sg-annotator/internal/pkg/errors"
	"github.com/sgannotator/sg-annotator/internal/scenegraph"
)

// AlignBy selects how prediction and ground-truth items are paired.
type AlignBy string

// AlignMode selects the policy applied when item counts differ.
type AlignMode string

const (
	AlignByIndex AlignBy = "index"
	AlignByID    AlignBy = "id"

	AlignModeError AlignMode = "error"
	AlignModeMin   AlignMode = "min"
	AlignModeGT    AlignMode = "gt"
	AlignModePred  AlignMode = "pred"
)

// Alignment holds equal-length prediction and ground-truth triple
// sequences plus the ground-truth ids dropped during id matching.
type Alignment struct {
	Pred    [][]scenegraph.Triple
	GT      [][]scenegraph.Triple
	Missing []string
}

// Align reconciles the two collections into positionally corresponding
// sequences. Under id alignment, ground-truth order is preserved and items
// whose id has no prediction are dropped (reported in Missing, not fatal).
// The resolver never reorders; it only truncates or drops on lookup miss.
func Align(predIDs []scenegraph.ID, pred [][]scenegraph.Triple,
	gtIDs []scenegraph.ID, gt [][]scenegraph.Triple,
	by AlignBy, mode AlignMode) (Alignment, error) {

	var aligned Alignment

	switch by {
	case AlignByID:
		if anyMissing(predIDs) || anyMissing(gtIDs) {
			return Alignment{}, apperrors.AlignmentError("id alignment requires all ids present")
		}

		// Last write wins on duplicate prediction ids.
		predMap := make(map[string][]scenegraph.Triple, len(predIDs))
		for i, id := range predIDs {
			predMap[id.Value] = pred[i]
		}

		for i, id := range gtIDs {
			matched, ok := predMap[id.Value]
			if !ok {
				aligned.Missing = append(aligned.Missing, id.Value)
				continue
			}
			aligned.Pred = append(aligned.Pred, matched)
			aligned.GT = append(aligned.GT, gt[i])
		}

	case AlignByIndex:
		aligned.Pred = pred
		aligned.GT = gt

	default:
		return Alignment{}, apperrors.AlignmentError(fmt.Sprintf("unknown align_by %q", by))
	}

	if len(aligned.Pred) == len(aligned.GT) {
		return aligned, nil
	}

	lp, lg := len(aligned.Pred), len(aligned.GT)
	switch mode {
	case AlignModeError:
		return Alignment{}, apperrors.AlignmentError(
			fmt.Sprintf("counts differ: pred=%d gt=%d", lp, lg))
	case AlignModeMin, AlignModeGT, AlignModePred:
		// "gt" and "pred" anchor one side, but the aligned run must be
		// equal-length either way, so an over-length anchor clamps to the
		// shorter side instead of indexing past it.
		n := min(lp, lg)
		aligned.Pred = aligned.Pred[:n]
		aligned.GT = aligned.GT[:n]
	default:
		return Alignment{}, apperrors.AlignmentError(fmt.Sprintf("unknown align_mode %q", mode))
	}

	return aligned, nil
}

func anyMissing(ids []scenegraph.ID) bool {
	for _, id := range ids {
		if !id.Valid {
			return true
		}
	}
	return false
}
