package datamap

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedTopicPath means a topic cannot be placed in a tree: an
	// ancestor is missing, a segment is empty, or the parent is a sensor.
	// Stored data in this state is corrupt; it is never repaired silently.
	ErrMalformedTopicPath = errors.New("malformed topic path")
	ErrTopicCollision     = errors.New("topic collision")
	ErrColumnOutOfRange   = errors.New("column out of range")
	ErrUnknownRecord      = errors.New("record is neither a container nor a sensor")
	ErrDuplicateName      = errors.New("name already used by a sibling")
	ErrUnknownLevel       = errors.New("unknown level")
	ErrNotFound           = errors.New("topic not found")

	// ErrAmbiguousColumn means a header label names more than one column,
	// so a label reference could not be resolved back to the same column.
	ErrAmbiguousColumn = errors.New("column label is not unique")
)

// TopicError ties one of the sentinel errors above to the topic it occurred
// at.
type TopicError struct {
	Topic  string
	Reason string
	Err    error
}

func (e *TopicError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %q", e.Err, e.Topic)
	}
	return fmt.Sprintf("%s: %q: %s", e.Err, e.Topic, e.Reason)
}

func (e *TopicError) Unwrap() error { return e.Err }

func topicErr(topic string, err error, reason string) error {
	return &TopicError{Topic: topic, Reason: reason, Err: err}
}
