// Package scenegraph defines temporal scene-graph types and the
// normalization and triple-extraction steps used by evaluation.
package scenegraph

import (
	"fmt"
	"strconv"
	"strings"
)

// Triple is a (subject, predicate, object) relation extracted from one
// graph edge. Fields are trimmed and compared by value.
type Triple struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

// NewTriple builds a Triple from raw edge elements, stringifying and
// trimming each field.
func NewTriple(subject, predicate, object any) Triple {
	return Triple{
		Subject:   strings.TrimSpace(Stringify(subject)),
		Predicate: strings.TrimSpace(Stringify(predicate)),
		Object:    strings.TrimSpace(Stringify(object)),
	}
}

// String returns the triple in (subject, predicate, object) form.
func (t Triple) String() string {
	return fmt.Sprintf("(%s, %s, %s)", t.Subject, t.Predicate, t.Object)
}

// Node is a scene-graph entity with descriptive attributes.
type Node struct {
	ID         string   `json:"id"`
	Attributes []string `json:"attributes"`
}

// Frame is one temporal snapshot of a scene graph.
type Frame struct {
	Time  string     `json:"time"`
	Nodes []Node     `json:"nodes"`
	Edges [][]string `json:"edges"`
}

// ID is an optional item identifier.
type ID struct {
	Value string
	Valid bool
}

// SomeID returns a present identifier.
func SomeID(value string) ID {
	return ID{Value: value, Valid: true}
}

// NoID is the absent identifier.
var NoID = ID{}

// Stringify converts a decoded JSON value to its string form. Numbers
// render without a trailing ".0" so ids like 1 and "1" compare equal.
func Stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", val)
	}
}
