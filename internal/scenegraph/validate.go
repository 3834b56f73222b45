package scenegraph

import (
	"encoding/json"
	"fmt"

	apperrors "github.com/sgannotator/sg-annotator/internal/pkg/errors"
)

// ValidateFrames checks the structural invariants of an annotated frame
// sequence: every frame is an object with a time label, a node list with
// unique ids and list-valued attributes, and an edge list whose entries
// are 3-element lists referencing declared node ids.
//
// This is the annotation-side contract. The extractor stays lenient and
// never calls it.
func ValidateFrames(data any) error {
	frames, ok := data.([]any)
	if !ok {
		return apperrors.ValidationError("scenegraph must be a list")
	}

	for i, rawFrame := range frames {
		frame, ok := rawFrame.(map[string]any)
		if !ok {
			return apperrors.ValidationError(fmt.Sprintf("frame %d must be an object", i))
		}

		if _, hasTime := frame["time"]; !hasTime {
			return apperrors.ValidationError(fmt.Sprintf("frame %d missing time field", i))
		}

		nodes, ok := frame["nodes"].([]any)
		if !ok {
			return apperrors.ValidationError(fmt.Sprintf("frame %d nodes must be a list", i))
		}

		edges, ok := frame["edges"].([]any)
		if !ok {
			return apperrors.ValidationError(fmt.Sprintf("frame %d edges must be a list", i))
		}

		nodeIDs := make(map[string]struct{}, len(nodes))
		for j, rawNode := range nodes {
			node, ok := rawNode.(map[string]any)
			if !ok {
				return apperrors.ValidationError(fmt.Sprintf("frame %d node %d must be an object", i, j))
			}

			rawNodeID, hasID := node["id"]
			if !hasID {
				return apperrors.ValidationError(fmt.Sprintf("frame %d node %d missing id field", i, j))
			}

			nodeID := Stringify(rawNodeID)
			if _, dup := nodeIDs[nodeID]; dup {
				return apperrors.ValidationError(fmt.Sprintf("frame %d duplicate node id %q", i, nodeID))
			}
			nodeIDs[nodeID] = struct{}{}

			if attrs, hasAttrs := node["attributes"]; hasAttrs {
				if _, isList := attrs.([]any); !isList {
					return apperrors.ValidationError(
						fmt.Sprintf("frame %d node %d attributes must be a list", i, j))
				}
			}
		}

		for j, rawEdge := range edges {
			edge, ok := rawEdge.([]any)
			if !ok || len(edge) != 3 {
				return apperrors.ValidationError(
					fmt.Sprintf("frame %d edge %d must be a 3-element list", i, j))
			}

			src := Stringify(edge[0])
			dst := Stringify(edge[2])
			if _, declared := nodeIDs[src]; !declared {
				return apperrors.ValidationError(
					fmt.Sprintf("frame %d edge %d source node %q not declared", i, j, src))
			}
			if _, declared := nodeIDs[dst]; !declared {
				return apperrors.ValidationError(
					fmt.Sprintf("frame %d edge %d target node %q not declared", i, j, dst))
			}
		}
	}

	return nil
}

// ValidateDocument decodes raw JSON and validates the frame sequence.
func ValidateDocument(raw []byte) error {
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return apperrors.Wrap(apperrors.CodeValidation, "scenegraph is not valid JSON", err)
	}
	return ValidateFrames(data)
}
