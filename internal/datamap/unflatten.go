package datamap

import (
	"sort"
	"strings"

	"sensormap/core-go/internal/naming"
)

// Unflatten rebuilds an editable tree from its flat form. The file table is
// first reconciled against known: an entry whose signature and timestamp
// match a known file resolves to that file. Sensors whose file cannot be
// resolved get a MissingFile placeholder. The result is named as a copy of
// the stored map.
//
// Topics are placed shallowest first, so a node's parent always exists
// before the node is attached; no ordering of the flat records is assumed.
// A topic whose parent is absent aborts the whole call with
// ErrMalformedTopicPath.
func Unflatten(flat FlatMap, known []*FileRef) (*Tree, error) {
	files := reconcileFiles(flat.Files, known)

	tree := &Tree{
		ProjectID: flat.ProjectID,
		Name:      naming.CloneName(flat.Name),
		Version:   flat.Version,
		Children:  []*Node{},
	}

	containers := make(map[string]*Node, len(flat.Sensors))
	for _, topic := range orderedTopics(flat.Sensors) {
		segments := strings.Split(topic, Separator)
		for _, seg := range segments {
			if seg == "" {
				return nil, topicErr(topic, ErrMalformedTopicPath, "empty segment")
			}
		}
		name := segments[len(segments)-1]

		var parent *Node
		if len(segments) > 1 {
			parentTopic := strings.Join(segments[:len(segments)-1], Separator)
			p, ok := containers[parentTopic]
			if !ok {
				if _, isSensor := flat.Sensors[parentTopic].(SensorRecord); isSensor {
					return nil, topicErr(topic, ErrMalformedTopicPath, "parent is a sensor")
				}
				return nil, topicErr(topic, ErrMalformedTopicPath, "ancestor "+parentTopic+" not found")
			}
			parent = p
		}

		switch rec := flat.Sensors[topic].(type) {
		case ContainerRecord:
			n := newContainer(name, rec)
			if parent == nil {
				tree.Children = append(tree.Children, n)
			} else {
				parent.Children = append(parent.Children, n)
			}
			containers[topic] = n
		case SensorRecord:
			if parent == nil {
				return nil, topicErr(topic, ErrMalformedTopicPath, "sensor without a container")
			}
			parent.Sensors = append(parent.Sensors, resolveSensor(name, rec, files))
		default:
			return nil, topicErr(topic, ErrUnknownRecord, "")
		}
	}

	return tree, nil
}

// orderedTopics sorts by depth, then lexicographically for a stable sibling
// order.
func orderedTopics(records Records) []string {
	topics := make([]string, 0, len(records))
	for t := range records {
		topics = append(topics, t)
	}
	sort.Slice(topics, func(i, j int) bool {
		di := strings.Count(topics[i], Separator)
		dj := strings.Count(topics[j], Separator)
		if di != dj {
			return di < dj
		}
		return topics[i] < topics[j]
	})
	return topics
}

func newContainer(name string, rec ContainerRecord) *Node {
	return &Node{
		Level:      rec.Level,
		Name:       name,
		Children:   []*Node{},
		Sensors:    []*Sensor{},
		Attributes: cloneAttributes(rec.Attributes),
	}
}

type tableEntry struct {
	stored FlatFile
	live   *FileRef
}

func reconcileFiles(table map[string]FlatFile, known []*FileRef) map[string]tableEntry {
	out := make(map[string]tableEntry, len(table))
	for key, stored := range table {
		entry := tableEntry{stored: stored}
		for _, k := range known {
			if k == nil || k.Missing {
				continue
			}
			if stored.Signature.Equal(k.Signature) && stored.Timestamp.Equal(k.Timestamp) {
				entry.live = k
				break
			}
		}
		out[key] = entry
	}
	return out
}

func resolveSensor(name string, rec SensorRecord, files map[string]tableEntry) *Sensor {
	s := &Sensor{
		Name:   name,
		Type:   rec.Type,
		Unit:   rec.Unit,
		Column: columnPtr(rec.Column),
	}
	if rec.File == "" {
		return s
	}

	entry, ok := files[rec.File]
	if ok && entry.live != nil {
		if col, ok := treeColumn(entry.live, rec.Column); ok {
			s.File = entry.live
			s.Column = col
			return s
		}
	}

	s.File = MissingFile(rec.Column, entry.stored.Signature, entry.stored.Timestamp)
	return s
}

// treeColumn maps a stored label back to its index in a header file. A
// label the live file no longer has cannot be resolved.
func treeColumn(file *FileRef, col *Column) (*Column, bool) {
	if col == nil || !file.HasHeader {
		return columnPtr(col), true
	}
	label, named := col.Label()
	if !named {
		return columnPtr(col), true
	}
	i, ok := file.Columns.IndexOf(label)
	if !ok {
		return nil, false
	}
	out := ColumnIndex(i)
	return &out, true
}

// MissingFiles counts sensors bound to a placeholder file.
func (t *Tree) MissingFiles() int {
	n := 0
	t.visit(func(_ string, _, _ *Node, s *Sensor) bool {
		if s != nil && s.File != nil && s.File.Missing {
			n++
		}
		return true
	})
	return n
}
