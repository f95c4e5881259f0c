// Package datamap converts hierarchical sensor maps between the tree that is
// edited in memory and the flat, topic-keyed form that is stored and
// validated.
package datamap

import "sensormap/core-go/internal/tagging"

// Separator joins name segments into a topic.
const Separator = "/"

const (
	MissingFileName   = "MISSING FILE"
	MissingColumnName = "MISSING COLUMN"
)

// Tree is the editable form of a data map.
type Tree struct {
	ProjectID string  `json:"project_id,omitempty"`
	Name      string  `json:"name,omitempty"`
	Version   int     `json:"version"`
	Children  []*Node `json:"children"`
}

// Node is a container level such as a building, floor or piece of equipment.
type Node struct {
	Level      string         `json:"level"`
	Name       string         `json:"name"`
	Children   []*Node        `json:"children"`
	Sensors    []*Sensor      `json:"sensors"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Deleted    bool           `json:"deleted,omitempty"`
}

// Sensor binds a sensor type to a column of a data file.
type Sensor struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	File    *FileRef `json:"file,omitempty"`
	Column  *Column  `json:"column,omitempty"`
	Unit    string   `json:"unit,omitempty"`
	Deleted bool     `json:"deleted,omitempty"`
}

// FileRef describes an uploaded data file. Signature, HasHeader and Columns
// are derived from a preview of the file's first rows.
type FileRef struct {
	ID        string     `json:"id,omitempty"`
	Name      string     `json:"name"`
	Signature *Signature `json:"signature,omitempty"`
	Timestamp *Timestamp `json:"timestamp,omitempty"`
	HasHeader bool       `json:"has_header"`
	Columns   Columns    `json:"columns"`
	Missing   bool       `json:"missing,omitempty"`
}

// HasMetadata reports whether the preview-derived fields are already set.
func (f *FileRef) HasMetadata() bool {
	return f != nil && f.Signature != nil && f.Columns.Len() > 0
}

// MissingFile builds the placeholder used when a stored file reference
// cannot be matched to any known file. The stored signature is kept so the
// placeholder flattens back to an entry that can still be matched later.
func MissingFile(column *Column, sig *Signature, ts *Timestamp) *FileRef {
	cols := Columns{keyed: map[string]string{}}
	if column != nil {
		cols = PlaceholderColumns(*column, MissingColumnName)
	}
	return &FileRef{
		Name:      MissingFileName,
		Signature: sig.clone(),
		Timestamp: ts.clone(),
		Columns:   cols,
		Missing:   true,
	}
}

// Signature fingerprints a file by its header layout: one entry per column,
// holding the header label or nil when the file has no header.
type Signature struct {
	Headers []*string `json:"headers"`
}

func (s *Signature) Equal(other *Signature) bool {
	if s == nil || other == nil {
		return s == nil && other == nil
	}
	if len(s.Headers) != len(other.Headers) {
		return false
	}
	for i, h := range s.Headers {
		o := other.Headers[i]
		if h == nil || o == nil {
			if h != o {
				return false
			}
			continue
		}
		if *h != *o {
			return false
		}
	}
	return true
}

func (s *Signature) clone() *Signature {
	if s == nil {
		return nil
	}
	out := &Signature{Headers: make([]*string, len(s.Headers))}
	for i, h := range s.Headers {
		if h != nil {
			v := *h
			out.Headers[i] = &v
		}
	}
	return out
}

// Timestamp records which columns of a file encode time.
type Timestamp struct {
	Columns []int  `json:"columns"`
	Format  string `json:"format,omitempty"`
}

func (t *Timestamp) Equal(other *Timestamp) bool {
	if t == nil || other == nil {
		return t == nil && other == nil
	}
	if t.Format != other.Format || len(t.Columns) != len(other.Columns) {
		return false
	}
	for i := range t.Columns {
		if t.Columns[i] != other.Columns[i] {
			return false
		}
	}
	return true
}

func (t *Timestamp) clone() *Timestamp {
	if t == nil {
		return nil
	}
	return &Timestamp{Columns: append([]int(nil), t.Columns...), Format: t.Format}
}

// DefaultMap returns the seed tree for a new map: one empty building.
func DefaultMap(projectID string) *Tree {
	return &Tree{
		ProjectID: projectID,
		Version:   1,
		Children: []*Node{
			{Level: tagging.LevelBuilding, Name: "New building", Children: []*Node{}, Sensors: []*Sensor{}},
		},
	}
}

func cloneAttributes(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneAttributes(x)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
