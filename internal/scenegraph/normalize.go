package scenegraph

import (
	"encoding/json"
	"fmt"

	apperrors "github.com/sgannotator/sg-annotator/internal/pkg/errors"
)

// NormalizeItems converts a decoded JSON document into parallel slices of
// optional ids and per-item frame sequences.
//
// Two input shapes are accepted:
//
//	[ [ {time, nodes, edges}, ... ], ... ]
//	[ { "id": ..., "scenegraph": [ {time, nodes, edges}, ... ] }, ... ]
//
// Items carrying a "scenegraph" key contribute their stringified id (a
// JSON null yields an absent id); any other element is treated as a bare
// frame sequence with no id.
func NormalizeItems(data any) ([]ID, [][]any, error) {
	items, ok := data.([]any)
	if !ok {
		return nil, nil, apperrors.FormatError("top-level value must be a list")
	}

	ids := make([]ID, 0, len(items))
	frames := make([][]any, 0, len(items))

	for idx, item := range items {
		var rawID any
		var rawFrames any

		if obj, isObj := item.(map[string]any); isObj {
			if sg, hasSG := obj["scenegraph"]; hasSG {
				rawID = obj["id"]
				rawFrames = sg
			} else {
				rawFrames = item
			}
		} else {
			rawFrames = item
		}

		frameList, isList := rawFrames.([]any)
		if !isList {
			return nil, nil, apperrors.FormatError(
				fmt.Sprintf("item %d scenegraph must be a list", idx))
		}

		if rawID == nil {
			ids = append(ids, NoID)
		} else {
			ids = append(ids, SomeID(Stringify(rawID)))
		}
		frames = append(frames, frameList)
	}

	return ids, frames, nil
}

// NormalizeDocument decodes raw JSON bytes and normalizes the result.
func NormalizeDocument(raw []byte) ([]ID, [][]any, error) {
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, nil, apperrors.Wrap(apperrors.CodeFormat, "invalid JSON document", err)
	}
	return NormalizeItems(data)
}
