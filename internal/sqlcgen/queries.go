package sqlcgen

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX matches the minimal interface needed from pgxpool.Pool or pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgx.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const createDataMap = `-- name: CreateDataMap :one
INSERT INTO data_maps (project_id, name, version, files, sensors)
VALUES ($1, $2, $3, $4::jsonb, $5::jsonb)
RETURNING id, project_id, name, version, files, sensors, created_at, updated_at
`

type CreateDataMapParams struct {
	ProjectID string
	Name      string
	Version   int32
	Files     []byte
	Sensors   []byte
}

func (q *Queries) CreateDataMap(ctx context.Context, arg CreateDataMapParams) (DataMap, error) {
	row := q.db.QueryRow(ctx, createDataMap, arg.ProjectID, arg.Name, arg.Version, arg.Files, arg.Sensors)
	var i DataMap
	err := row.Scan(&i.ID, &i.ProjectID, &i.Name, &i.Version, &i.Files, &i.Sensors, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const getDataMap = `-- name: GetDataMap :one
SELECT id, project_id, name, version, files, sensors, created_at, updated_at
FROM data_maps
WHERE project_id = $1 AND id = $2
`

type GetDataMapParams struct {
	ProjectID string
	ID        string
}

func (q *Queries) GetDataMap(ctx context.Context, arg GetDataMapParams) (DataMap, error) {
	row := q.db.QueryRow(ctx, getDataMap, arg.ProjectID, arg.ID)
	var i DataMap
	err := row.Scan(&i.ID, &i.ProjectID, &i.Name, &i.Version, &i.Files, &i.Sensors, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const listDataMaps = `-- name: ListDataMaps :many
SELECT id, project_id, name, version, files, sensors, created_at, updated_at
FROM data_maps
WHERE project_id = $1
ORDER BY created_at DESC
`

func (q *Queries) ListDataMaps(ctx context.Context, projectID string) ([]DataMap, error) {
	rows, err := q.db.Query(ctx, listDataMaps, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DataMap
	for rows.Next() {
		var i DataMap
		if err := rows.Scan(&i.ID, &i.ProjectID, &i.Name, &i.Version, &i.Files, &i.Sensors, &i.CreatedAt, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateDataMap = `-- name: UpdateDataMap :one
UPDATE data_maps
SET name = $3,
    version = $4,
    files = $5::jsonb,
    sensors = $6::jsonb,
    updated_at = now()
WHERE project_id = $1 AND id = $2
RETURNING id, project_id, name, version, files, sensors, created_at, updated_at
`

type UpdateDataMapParams struct {
	ProjectID string
	ID        string
	Name      string
	Version   int32
	Files     []byte
	Sensors   []byte
}

func (q *Queries) UpdateDataMap(ctx context.Context, arg UpdateDataMapParams) (DataMap, error) {
	row := q.db.QueryRow(ctx, updateDataMap, arg.ProjectID, arg.ID, arg.Name, arg.Version, arg.Files, arg.Sensors)
	var i DataMap
	err := row.Scan(&i.ID, &i.ProjectID, &i.Name, &i.Version, &i.Files, &i.Sensors, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}
