// Package dataset manages annotation rows stored as CSV files.
package dataset

// Headers is the exact CSV header required of an annotation file.
var Headers = []string{"id", "input", "scenegraph", "is_reasonable", "is_annotated"}

// Row is one annotated text with its temporal scene graph. Scenegraph
// holds the raw JSON-array string as stored in the CSV.
type Row struct {
	ID           string `json:"id"`
	Input        string `json:"input"`
	Scenegraph   string `json:"scenegraph"`
	IsReasonable bool   `json:"is_reasonable"`
	IsAnnotated  bool   `json:"is_annotated"`
}

// RowUpdate carries the mutable fields of a row. Nil fields are left
// unchanged.
type RowUpdate struct {
	Input        *string `json:"input,omitempty"`
	Scenegraph   *string `json:"scenegraph,omitempty"`
	IsReasonable *bool   `json:"is_reasonable,omitempty"`
	IsAnnotated  *bool   `json:"is_annotated,omitempty"`
}

// Empty reports whether the update carries no fields.
func (u RowUpdate) Empty() bool {
	return u.Input == nil && u.Scenegraph == nil && u.IsReasonable == nil && u.IsAnnotated == nil
}

// RowSummary is the navigation view of a row.
type RowSummary struct {
	Index        int    `json:"index"`
	ID           string `json:"id"`
	IsAnnotated  bool   `json:"is_annotated"`
	IsReasonable bool   `json:"is_reasonable"`
}

// Progress reports annotation completeness over the loaded dataset.
type Progress struct {
	Total      int `json:"total"`
	Annotated  int `json:"annotated"`
	Reasonable int `json:"reasonable"`
}
