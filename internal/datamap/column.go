package datamap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Column refers to a column of a data file, either by zero-based index or,
// for files with a header row, by header label.
type Column struct {
	index int
	label string
	named bool
}

func ColumnIndex(i int) Column { return Column{index: i} }

func ColumnLabel(label string) Column { return Column{label: label, named: true} }

// Index returns the column index; ok is false for label references.
func (c Column) Index() (int, bool) { return c.index, !c.named }

// Label returns the header label; ok is false for index references.
func (c Column) Label() (string, bool) { return c.label, c.named }

func (c Column) String() string {
	if c.named {
		return c.label
	}
	return strconv.Itoa(c.index)
}

func (c Column) MarshalJSON() ([]byte, error) {
	if c.named {
		return json.Marshal(c.label)
	}
	return []byte(strconv.Itoa(c.index)), nil
}

func (c *Column) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var label string
		if err := json.Unmarshal(data, &label); err != nil {
			return err
		}
		*c = ColumnLabel(label)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("column must be an index or a label: %w", err)
	}
	i, err := strconv.Atoi(n.String())
	if err != nil {
		return fmt.Errorf("column index %s is not an integer", n)
	}
	*c = ColumnIndex(i)
	return nil
}

func columnPtr(c *Column) *Column {
	if c == nil {
		return nil
	}
	out := *c
	return &out
}

// Columns holds the labels of a file's columns in order. Placeholder files
// carry a keyed form instead, mapping a stored column reference to a
// stand-in label; it encodes as a JSON object rather than an array.
type Columns struct {
	labels []string
	keyed  map[string]string
}

func ColumnList(labels ...string) Columns {
	return Columns{labels: append([]string(nil), labels...)}
}

func PlaceholderColumns(col Column, label string) Columns {
	return Columns{keyed: map[string]string{col.String(): label}}
}

func (c Columns) Len() int {
	if c.keyed != nil {
		return len(c.keyed)
	}
	return len(c.labels)
}

func (c Columns) IsKeyed() bool { return c.keyed != nil }

func (c Columns) Labels() []string {
	return append([]string(nil), c.labels...)
}

func (c Columns) Keyed() map[string]string {
	if c.keyed == nil {
		return nil
	}
	out := make(map[string]string, len(c.keyed))
	for k, v := range c.keyed {
		out[k] = v
	}
	return out
}

// Lookup returns the label for col.
func (c Columns) Lookup(col Column) (string, bool) {
	if c.keyed != nil {
		v, ok := c.keyed[col.String()]
		return v, ok
	}
	if label, named := col.Label(); named {
		_, ok := c.IndexOf(label)
		return label, ok
	}
	i, _ := col.Index()
	if i < 0 || i >= len(c.labels) {
		return "", false
	}
	return c.labels[i], true
}

// IndexOf returns the index of the first column with the given label.
func (c Columns) IndexOf(label string) (int, bool) {
	for i, l := range c.labels {
		if l == label {
			return i, true
		}
	}
	return 0, false
}

func (c Columns) MarshalJSON() ([]byte, error) {
	if c.keyed != nil {
		return json.Marshal(c.keyed)
	}
	if c.labels == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.labels)
}

func (c *Columns) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*c = Columns{}
		return nil
	case len(data) > 0 && data[0] == '{':
		var keyed map[string]string
		if err := json.Unmarshal(data, &keyed); err != nil {
			return err
		}
		*c = Columns{keyed: keyed}
		return nil
	default:
		var labels []string
		if err := json.Unmarshal(data, &labels); err != nil {
			return err
		}
		*c = Columns{labels: labels}
		return nil
	}
}
