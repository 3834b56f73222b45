package provider

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/sgannotator/sg-annotator/internal/scenegraph"
)

// promptTemplate instructs the model to emit a JSON array of time-phased
// scene graphs. %s is replaced with the input text.
const promptTemplate = `Generate Scene Graph JSON for multiple time phases. Analyze the input text, identify the distinct time phases, and output a JSON array with one scene graph per phase.

Example for a single time phase:
Input: "A young boy in a red shirt waves at a brown dog in a sunny park."
Output:
[
  {
    "time": "T1",
    "nodes": [
      {"id": "boy", "attributes": ["young", "red_shirt", "standing"]},
      {"id": "dog", "attributes": ["brown", "standing"]},
      {"id": "park", "attributes": ["sunny", "green_grass"]}
    ],
    "edges": [
      ["boy", "in", "park"],
      ["dog", "in", "park"],
      ["boy", "waves_at", "dog"]
    ]
  }
]

Example for multiple time phases:
Input: "A cat sits on a windowsill. Then it jumps down. Finally it walks to a milk bowl."
Output:
[
  {
    "time": "T1",
    "nodes": [
      {"id": "cat", "attributes": ["sitting"]},
      {"id": "windowsill", "attributes": []}
    ],
    "edges": [
      ["cat", "sits_on", "windowsill"]
    ]
  },
  {
    "time": "T2",
    "nodes": [
      {"id": "cat", "attributes": ["jumping"]},
      {"id": "windowsill", "attributes": []}
    ],
    "edges": [
      ["cat", "jumps_from", "windowsill"]
    ]
  },
  {
    "time": "T3",
    "nodes": [
      {"id": "cat", "attributes": ["walking"]},
      {"id": "milk_bowl", "attributes": ["milk"]}
    ],
    "edges": [
      ["cat", "walks_to", "milk_bowl"]
    ]
  }
]

Respond with the JSON array only, no explanations.

Input: "%s"
Output:
`

var jsonBlockPatterns = []*regexp.Regexp{
	regexp.MustCompile("(?s)```json\\s*(\\[.*?\\])\\s*```"),
	regexp.MustCompile("(?s)```\\s*(\\[.*?\\])\\s*```"),
	regexp.MustCompile(`(?s)(\[.*\])`),
}

// parseFrames extracts the frame array from a model response. The
// response is tried verbatim first, then as a fenced or embedded JSON
// block.
func parseFrames(response string) ([]scenegraph.Frame, bool) {
	candidates := []string{strings.TrimSpace(response)}
	for _, pattern := range jsonBlockPatterns {
		if match := pattern.FindStringSubmatch(response); match != nil {
			candidates = append(candidates, strings.TrimSpace(match[1]))
		}
	}

	for _, candidate := range candidates {
		var frames []scenegraph.Frame
		if err := json.Unmarshal([]byte(candidate), &frames); err == nil {
			return frames, true
		}
	}
	return nil, false
}
