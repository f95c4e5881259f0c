package datamap

import (
	"encoding/json"
	"fmt"
)

// FlatMap is the stored and wire form of a data map.
type FlatMap struct {
	ID        string              `json:"id,omitempty"`
	ProjectID string              `json:"project_id,omitempty"`
	Name      string              `json:"name,omitempty"`
	Version   int                 `json:"version"`
	Files     map[string]FlatFile `json:"files"`
	Sensors   Records             `json:"sensors"`
}

// FlatFile is a file table entry. Only the fields needed to match the file
// against re-uploads are kept.
type FlatFile struct {
	Name      string     `json:"name"`
	Signature *Signature `json:"signature,omitempty"`
	Timestamp *Timestamp `json:"timestamp,omitempty"`
}

// Record is either a ContainerRecord or a SensorRecord.
type Record interface {
	isRecord()
}

type ContainerRecord struct {
	Level      string         `json:"level"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

type SensorRecord struct {
	Type   string  `json:"type"`
	File   string  `json:"file,omitempty"`
	Column *Column `json:"column,omitempty"`
	Unit   string  `json:"unit,omitempty"`
}

func (ContainerRecord) isRecord() {}
func (SensorRecord) isRecord()    {}

// Records maps topics to records. Records are stored by value.
type Records map[string]Record

// UnmarshalJSON classifies each record by which tag it carries: "level"
// for containers, "type" for sensors. Carrying both or neither is an error.
func (r *Records) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*r = nil
		return nil
	}

	out := make(Records, len(raw))
	for topic, msg := range raw {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(msg, &probe); err != nil {
			return fmt.Errorf("record %q: %w", topic, err)
		}
		_, hasLevel := probe["level"]
		_, hasType := probe["type"]

		switch {
		case hasLevel && !hasType:
			var rec ContainerRecord
			if err := json.Unmarshal(msg, &rec); err != nil {
				return fmt.Errorf("container %q: %w", topic, err)
			}
			out[topic] = rec
		case hasType && !hasLevel:
			var rec SensorRecord
			if err := json.Unmarshal(msg, &rec); err != nil {
				return fmt.Errorf("sensor %q: %w", topic, err)
			}
			out[topic] = rec
		default:
			return topicErr(topic, ErrUnknownRecord, "")
		}
	}
	*r = out
	return nil
}
