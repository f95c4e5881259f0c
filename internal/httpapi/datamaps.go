package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"sensormap/core-go/internal/datamap"
	"sensormap/core-go/internal/sqlcgen"
)

type unflattenRequest struct {
	Map        datamap.FlatMap    `json:"map"`
	KnownFiles []*datamap.FileRef `json:"known_files"`
}

type cloneRequest struct {
	KnownFiles []*datamap.FileRef `json:"known_files"`
}

// dataMap is a stored flat map as returned by the persistence routes.
type dataMap struct {
	datamap.FlatMap
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var mapErrors = []error{
	datamap.ErrMalformedTopicPath,
	datamap.ErrTopicCollision,
	datamap.ErrColumnOutOfRange,
	datamap.ErrAmbiguousColumn,
	datamap.ErrUnknownRecord,
}

func isMapError(err error) bool {
	for _, target := range mapErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// writeMapError answers a structural map error with 422 and reports whether
// err was one.
func (h *Handler) writeMapError(w http.ResponseWriter, err error) bool {
	if !isMapError(err) {
		return false
	}
	details := map[string]any{"error": err.Error()}
	var te *datamap.TopicError
	if errors.As(err, &te) {
		details["topic"] = te.Topic
	}
	h.writeError(w, http.StatusUnprocessableEntity, "malformed_map", "data map is malformed", details)
	return true
}

func (h *Handler) handleFlatten(w http.ResponseWriter, r *http.Request) {
	var tree datamap.Tree
	if err := decodeJSONStrict(r, &tree); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}

	flat, err := datamap.Flatten(&tree)
	h.metrics.ObserveFlatten(err)
	if err != nil {
		if !h.writeMapError(w, err) {
			h.log.Error().Err(err).Msg("flatten failed")
			h.writeError(w, http.StatusInternalServerError, "internal_error", "failed to flatten data map", nil)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, flat)
}

func (h *Handler) handleUnflatten(w http.ResponseWriter, r *http.Request) {
	var req unflattenRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}

	tree, ok := h.unflatten(w, req.Map, req.KnownFiles)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, tree)
}

func (h *Handler) unflatten(w http.ResponseWriter, flat datamap.FlatMap, known []*datamap.FileRef) (*datamap.Tree, bool) {
	tree, err := datamap.Unflatten(flat, known)
	missing := 0
	if err == nil {
		missing = tree.MissingFiles()
	}
	h.metrics.ObserveUnflatten(err, missing)
	if err != nil {
		if !h.writeMapError(w, err) {
			h.log.Error().Err(err).Msg("unflatten failed")
			h.writeError(w, http.StatusInternalServerError, "internal_error", "failed to unflatten data map", nil)
		}
		return nil, false
	}
	if missing > 0 {
		h.log.Debug().Str("map_id", flat.ID).Int("missing_files", missing).Msg("unflatten substituted missing files")
	}
	return tree, true
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	var tree datamap.Tree
	if err := decodeJSONStrict(r, &tree); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}

	res, err := h.validator.Validate(r.Context(), &tree)
	if err != nil {
		if !h.writeMapError(w, err) {
			h.writeUpstreamError(w, "schema unavailable", err)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) writeUpstreamError(w http.ResponseWriter, msg string, err error) {
	h.log.Warn().Err(err).Msg(msg)
	h.writeError(w, http.StatusBadGateway, "upstream_error", msg, map[string]any{"error": err.Error()})
}

func (h *Handler) ensureQueries(w http.ResponseWriter) bool {
	if h.maps == nil {
		h.writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not configured", nil)
		return false
	}
	return true
}

// mapID reads and normalizes the {id} URL parameter. It writes a 400 and
// returns false when the id is not a uuid.
func (h *Handler) mapID(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_id", "data map id is not a valid uuid", map[string]any{"id": raw})
		return "", false
	}
	return id.String(), true
}

func toDataMap(row sqlcgen.DataMap) (dataMap, error) {
	flat := datamap.FlatMap{
		ID:        row.ID,
		ProjectID: row.ProjectID,
		Name:      row.Name,
		Version:   int(row.Version),
	}
	if err := json.Unmarshal(row.Files, &flat.Files); err != nil {
		return dataMap{}, fmt.Errorf("decode files of map %s: %w", row.ID, err)
	}
	if err := json.Unmarshal(row.Sensors, &flat.Sensors); err != nil {
		return dataMap{}, fmt.Errorf("decode sensors of map %s: %w", row.ID, err)
	}
	if flat.Files == nil {
		flat.Files = map[string]datamap.FlatFile{}
	}
	if flat.Sensors == nil {
		flat.Sensors = datamap.Records{}
	}
	return dataMap{FlatMap: flat, CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt}, nil
}

// decodeStoredMap reads a flat map body and validates it against the schema.
// On failure the response has been written.
func (h *Handler) decodeStoredMap(w http.ResponseWriter, r *http.Request) (datamap.FlatMap, []byte, []byte, bool) {
	var flat datamap.FlatMap
	if err := decodeJSONStrict(r, &flat); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return flat, nil, nil, false
	}

	res, err := h.validator.ValidateFlat(r.Context(), flat)
	if err != nil {
		h.writeUpstreamError(w, "schema unavailable", err)
		return flat, nil, nil, false
	}
	if !res.Valid {
		h.writeError(w, http.StatusUnprocessableEntity, "validation_failed", "data map does not match the schema", map[string]any{"errors": res.Errors})
		return flat, nil, nil, false
	}

	files, err := json.Marshal(flat.Files)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid files table", map[string]any{"error": err.Error()})
		return flat, nil, nil, false
	}
	sensors, err := json.Marshal(flat.Sensors)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid sensors", map[string]any{"error": err.Error()})
		return flat, nil, nil, false
	}
	return flat, files, sensors, true
}

func (h *Handler) writeStoredMap(w http.ResponseWriter, status int, row sqlcgen.DataMap) {
	m, err := toDataMap(row)
	if err != nil {
		h.log.Error().Err(err).Str("id", row.ID).Msg("stored data map is unreadable")
		h.writeError(w, http.StatusInternalServerError, "db_error", "stored data map is unreadable", nil)
		return
	}
	h.writeJSON(w, status, m)
}

func (h *Handler) handleListDataMaps(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if !h.ensureQueries(w) {
		return
	}

	rows, err := h.maps.ListDataMaps(r.Context(), projectID)
	if err != nil {
		h.log.Error().Err(err).Str("project_id", projectID).Msg("list data maps failed")
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to list data maps", nil)
		return
	}

	resp := make([]dataMap, 0, len(rows))
	for _, row := range rows {
		m, err := toDataMap(row)
		if err != nil {
			h.log.Error().Err(err).Str("id", row.ID).Msg("stored data map is unreadable")
			h.writeError(w, http.StatusInternalServerError, "db_error", "stored data map is unreadable", map[string]any{"id": row.ID})
			return
		}
		resp = append(resp, m)
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCreateDataMap(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	flat, files, sensors, ok := h.decodeStoredMap(w, r)
	if !ok {
		return
	}

	if !h.ensureQueries(w) {
		return
	}

	row, err := h.maps.CreateDataMap(r.Context(), sqlcgen.CreateDataMapParams{
		ProjectID: projectID,
		Name:      flat.Name,
		Version:   int32(flat.Version),
		Files:     files,
		Sensors:   sensors,
	})
	if err != nil {
		h.log.Error().Err(err).Str("project_id", projectID).Msg("create data map failed")
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to create data map", nil)
		return
	}

	h.writeStoredMap(w, http.StatusCreated, row)
}

func (h *Handler) handleDefaultDataMap(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, datamap.DefaultMap(chi.URLParam(r, "projectID")))
}

func (h *Handler) handleGetDataMap(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	id, ok := h.mapID(w, r)
	if !ok {
		return
	}
	if !h.ensureQueries(w) {
		return
	}

	row, err := h.maps.GetDataMap(r.Context(), sqlcgen.GetDataMapParams{ProjectID: projectID, ID: id})
	if err != nil {
		h.writeLookupError(w, err, id, "fetch")
		return
	}

	h.writeStoredMap(w, http.StatusOK, row)
}

func (h *Handler) handleUpdateDataMap(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	id, ok := h.mapID(w, r)
	if !ok {
		return
	}
	flat, files, sensors, ok := h.decodeStoredMap(w, r)
	if !ok {
		return
	}
	if !h.ensureQueries(w) {
		return
	}

	row, err := h.maps.UpdateDataMap(r.Context(), sqlcgen.UpdateDataMapParams{
		ProjectID: projectID,
		ID:        id,
		Name:      flat.Name,
		Version:   int32(flat.Version),
		Files:     files,
		Sensors:   sensors,
	})
	if err != nil {
		h.writeLookupError(w, err, id, "update")
		return
	}

	h.writeStoredMap(w, http.StatusOK, row)
}

// handleCloneDataMap loads a stored map and rebuilds its tree against the
// caller's current files, under a " copy" name.
func (h *Handler) handleCloneDataMap(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	id, ok := h.mapID(w, r)
	if !ok {
		return
	}
	var req cloneRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	if !h.ensureQueries(w) {
		return
	}

	row, err := h.maps.GetDataMap(r.Context(), sqlcgen.GetDataMapParams{ProjectID: projectID, ID: id})
	if err != nil {
		h.writeLookupError(w, err, id, "fetch")
		return
	}
	m, err := toDataMap(row)
	if err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("stored data map is unreadable")
		h.writeError(w, http.StatusInternalServerError, "db_error", "stored data map is unreadable", nil)
		return
	}

	tree, ok := h.unflatten(w, m.FlatMap, req.KnownFiles)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, tree)
}

func (h *Handler) writeLookupError(w http.ResponseWriter, err error, id, op string) {
	if errors.Is(err, pgx.ErrNoRows) {
		h.writeError(w, http.StatusNotFound, "not_found", "data map not found", map[string]any{"id": id})
		return
	}
	h.log.Error().Err(err).Str("id", id).Msgf("%s data map failed", op)
	h.writeError(w, http.StatusInternalServerError, "db_error", "failed to "+op+" data map", nil)
}
