package datamap

import (
	"encoding/json"
	"errors"
	"strconv"

	"sensormap/core-go/internal/naming"
)

// Flatten converts a tree into its flat form. The traversal is pre-order in
// original index order: a node's own record, then its sensors, then its
// children. Deleted nodes and sensors are dropped together with everything
// below them. The input tree is not modified.
func Flatten(t *Tree) (FlatMap, error) {
	if t == nil {
		return FlatMap{}, errors.New("flatten: nil tree")
	}

	f := &flattener{
		files:   newFileTable(),
		records: make(Records),
	}
	for _, n := range t.Children {
		if err := f.node("", n); err != nil {
			return FlatMap{}, err
		}
	}

	return FlatMap{
		ProjectID: t.ProjectID,
		Name:      t.Name,
		Version:   t.Version,
		Files:     f.files.entries,
		Sensors:   f.records,
	}, nil
}

type flattener struct {
	files   *fileTable
	records Records
}

func (f *flattener) node(base string, n *Node) error {
	if n == nil || n.Deleted {
		return nil
	}
	topic, err := f.topic(base, n.Name)
	if err != nil {
		return err
	}
	if err := f.emit(topic, ContainerRecord{
		Level:      n.Level,
		Attributes: cloneAttributes(n.Attributes),
	}); err != nil {
		return err
	}

	base = topic + Separator
	for _, s := range n.Sensors {
		if err := f.sensor(base, s); err != nil {
			return err
		}
	}
	for _, c := range n.Children {
		if err := f.node(base, c); err != nil {
			return err
		}
	}
	return nil
}

func (f *flattener) sensor(base string, s *Sensor) error {
	if s == nil || s.Deleted {
		return nil
	}
	topic, err := f.topic(base, s.Name)
	if err != nil {
		return err
	}

	rec := SensorRecord{Type: s.Type, Unit: s.Unit, Column: columnPtr(s.Column)}
	if s.File != nil {
		col, err := flatColumn(s.File, s.Column)
		if err != nil {
			return topicErr(topic, err, "file "+strconv.Quote(s.File.Name))
		}
		rec.File = f.files.keyFor(s.File)
		rec.Column = col
	}
	return f.emit(topic, rec)
}

func (f *flattener) topic(base, name string) (string, error) {
	seg := naming.Sanitize(name)
	if seg == "" {
		return "", topicErr(base, ErrMalformedTopicPath, "empty name")
	}
	return base + seg, nil
}

func (f *flattener) emit(topic string, rec Record) error {
	if _, exists := f.records[topic]; exists {
		return topicErr(topic, ErrTopicCollision, "")
	}
	f.records[topic] = rec
	return nil
}

// flatColumn stores header-file columns by label so the reference survives
// column reordering in a re-uploaded file.
func flatColumn(file *FileRef, col *Column) (*Column, error) {
	if col == nil || !file.HasHeader || file.Columns.IsKeyed() {
		return columnPtr(col), nil
	}
	label, ok := file.Columns.Lookup(*col)
	if !ok {
		return nil, ErrColumnOutOfRange
	}
	seen := 0
	for _, l := range file.Columns.Labels() {
		if l == label {
			seen++
		}
	}
	if seen > 1 {
		return nil, ErrAmbiguousColumn
	}
	out := ColumnLabel(label)
	return &out, nil
}

// fileTable allocates file keys in first-seen order. Live files are
// deduplicated by name. Placeholders all share one name, so they are keyed
// by the signature they stand in for instead.
type fileTable struct {
	keys    map[string]string
	entries map[string]FlatFile
}

func newFileTable() *fileTable {
	return &fileTable{
		keys:    make(map[string]string),
		entries: make(map[string]FlatFile),
	}
}

func (ft *fileTable) keyFor(file *FileRef) string {
	id := "name:" + file.Name
	if file.Missing {
		b, _ := json.Marshal(FlatFile{Signature: file.Signature, Timestamp: file.Timestamp})
		id = "missing:" + string(b)
	}
	if key, ok := ft.keys[id]; ok {
		return key
	}

	key := strconv.Itoa(len(ft.keys))
	ft.keys[id] = key
	ft.entries[key] = FlatFile{
		Name:      file.Name,
		Signature: file.Signature.clone(),
		Timestamp: file.Timestamp.clone(),
	}
	return key
}
