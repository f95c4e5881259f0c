package sqlcgen

import "time"

// DataMap is a stored flat map. Files and Sensors hold the raw jsonb of the
// flat form's file table and topic records.
type DataMap struct {
	ID        string
	ProjectID string
	Name      string
	Version   int32
	Files     []byte
	Sensors   []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}
