package datamap

import (
	"errors"
	"fmt"
	"strings"

	"sensormap/core-go/internal/naming"
	"sensormap/core-go/internal/tagging"
)

// Walk visits every non-deleted node and sensor in flatten order. Exactly
// one of node and sensor is non-nil per call. A non-nil error from fn stops
// the walk and is returned.
func (t *Tree) Walk(fn func(topic string, node *Node, sensor *Sensor) error) error {
	var err error
	t.visit(func(topic string, _ *Node, node *Node, sensor *Sensor) bool {
		err = fn(topic, node, sensor)
		return err == nil
	})
	return err
}

// visit calls fn for every non-deleted entry in flatten order until fn
// returns false.
func (t *Tree) visit(fn func(topic string, parent, node *Node, sensor *Sensor) bool) {
	if t == nil {
		return
	}
	var rec func(base string, parent, n *Node) bool
	rec = func(base string, parent, n *Node) bool {
		if n == nil || n.Deleted {
			return true
		}
		topic := base + naming.Sanitize(n.Name)
		if !fn(topic, parent, n, nil) {
			return false
		}
		for _, s := range n.Sensors {
			if s == nil || s.Deleted {
				continue
			}
			if !fn(topic+Separator+naming.Sanitize(s.Name), n, nil, s) {
				return false
			}
		}
		for _, c := range n.Children {
			if !rec(topic+Separator, n, c) {
				return false
			}
		}
		return true
	}

	for _, n := range t.Children {
		if !rec("", nil, n) {
			return
		}
	}
}

type location struct {
	parent *Node
	node   *Node
	sensor *Sensor
}

func (t *Tree) locate(topic string) (location, error) {
	var (
		loc   location
		found bool
	)
	t.visit(func(tp string, parent, node *Node, sensor *Sensor) bool {
		if tp != topic {
			return true
		}
		loc = location{parent: parent, node: node, sensor: sensor}
		found = true
		return false
	})
	if !found {
		return location{}, topicErr(topic, ErrNotFound, "")
	}
	return loc, nil
}

// Find returns the node or sensor at topic.
func (t *Tree) Find(topic string) (*Node, *Sensor, error) {
	loc, err := t.locate(topic)
	if err != nil {
		return nil, nil, err
	}
	return loc.node, loc.sensor, nil
}

// AddChild appends a top-level container.
func (t *Tree) AddChild(level, name string) (*Node, error) {
	return addChild(&t.Children, nil, level, name)
}

// AddChild appends a container below n. The name is made unique among n's
// children and sensors; an empty name defaults to "New <level>".
func (n *Node) AddChild(level, name string) (*Node, error) {
	return addChild(&n.Children, n.Sensors, level, name)
}

func addChild(children *[]*Node, sensors []*Sensor, level, name string) (*Node, error) {
	level = tagging.Normalize(level)
	if !tagging.IsValidLevel(level) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLevel, level)
	}
	if strings.TrimSpace(name) == "" {
		name = "New " + level
	}
	child := &Node{
		Level:    level,
		Name:     naming.Unique(siblingNames(*children, sensors, nil), name),
		Children: []*Node{},
		Sensors:  []*Sensor{},
	}
	*children = append(*children, child)
	return child, nil
}

// AddSensor appends a sensor below n. An empty name defaults to the type.
func (n *Node) AddSensor(sensorType, name string) (*Sensor, error) {
	sensorType = tagging.Normalize(sensorType)
	if sensorType == "" {
		return nil, errors.New("sensor type is required")
	}
	if strings.TrimSpace(name) == "" {
		name = sensorType
	}
	s := &Sensor{
		Type: sensorType,
		Name: naming.Unique(siblingNames(n.Children, n.Sensors, nil), name),
	}
	n.Sensors = append(n.Sensors, s)
	return s, nil
}

// Rename changes the name of the node or sensor at topic.
func (t *Tree) Rename(topic, name string) error {
	if naming.Sanitize(name) == "" {
		return topicErr(topic, ErrMalformedTopicPath, "empty name")
	}
	loc, err := t.locate(topic)
	if err != nil {
		return err
	}

	var self any = loc.node
	if loc.sensor != nil {
		self = loc.sensor
	}
	var taken []string
	if loc.parent == nil {
		taken = siblingNames(t.Children, nil, self)
	} else {
		taken = siblingNames(loc.parent.Children, loc.parent.Sensors, self)
	}
	if naming.Collides(taken, name) {
		return topicErr(topic, ErrDuplicateName, name)
	}

	if loc.sensor != nil {
		loc.sensor.Name = name
	} else {
		loc.node.Name = name
	}
	return nil
}

// Delete marks the node or sensor at topic as deleted. It and everything
// below it are left out of the flat form.
func (t *Tree) Delete(topic string) error {
	loc, err := t.locate(topic)
	if err != nil {
		return err
	}
	if loc.sensor != nil {
		loc.sensor.Deleted = true
	} else {
		loc.node.Deleted = true
	}
	return nil
}

// Attach binds the sensor to a column of file. A nil file detaches it.
func (s *Sensor) Attach(file *FileRef, column int) error {
	if file == nil {
		s.File = nil
		s.Column = nil
		return nil
	}
	if file.Columns.Len() > 0 && !file.Columns.IsKeyed() {
		if column < 0 || column >= file.Columns.Len() {
			return fmt.Errorf("%w: %d of %d in %q", ErrColumnOutOfRange, column, file.Columns.Len(), file.Name)
		}
	}
	col := ColumnIndex(column)
	s.File = file
	s.Column = &col
	return nil
}

// siblingNames lists the names sharing a topic namespace, skipping deleted
// entries and skip itself.
func siblingNames(children []*Node, sensors []*Sensor, skip any) []string {
	out := make([]string, 0, len(children)+len(sensors))
	for _, c := range children {
		if c == nil || c.Deleted || any(c) == skip {
			continue
		}
		out = append(out, c.Name)
	}
	for _, s := range sensors {
		if s == nil || s.Deleted || any(s) == skip {
			continue
		}
		out = append(out, s.Name)
	}
	return out
}
