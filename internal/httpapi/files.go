package httpapi

import (
	"errors"
	"net/http"

	"sensormap/core-go/internal/datamap"
	"sensormap/core-go/internal/filemeta"
	"sensormap/core-go/internal/tagging"
)

type fileMetadataRequest struct {
	Files []*datamap.FileRef `json:"files"`
}

type fileSuggestions struct {
	File        string               `json:"file"`
	Suggestions []tagging.Suggestion `json:"suggestions"`
}

type fileMetadataResponse struct {
	Files       []*datamap.FileRef `json:"files"`
	Suggestions []fileSuggestions  `json:"suggestions"`
}

func (h *Handler) handleFileMetadata(w http.ResponseWriter, r *http.Request) {
	var req fileMetadataRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	for i, f := range req.Files {
		if f == nil || (f.ID == "" && f.Name == "") {
			h.writeError(w, http.StatusBadRequest, "validation_failed", "file needs an id or a name", map[string]any{"index": i})
			return
		}
	}

	if h.files == nil {
		h.writeError(w, http.StatusServiceUnavailable, "preview_unavailable", "file preview service not configured", nil)
		return
	}

	if err := h.files.Ensure(r.Context(), req.Files); err != nil {
		if errors.Is(err, filemeta.ErrEmptyPreview) {
			h.writeError(w, http.StatusUnprocessableEntity, "empty_preview", "file preview has no rows", map[string]any{"error": err.Error()})
			return
		}
		h.writeUpstreamError(w, "file preview failed", err)
		return
	}

	resp := fileMetadataResponse{
		Files:       req.Files,
		Suggestions: make([]fileSuggestions, 0, len(req.Files)),
	}
	if resp.Files == nil {
		resp.Files = []*datamap.FileRef{}
	}
	for _, f := range req.Files {
		s := tagging.SuggestSensorTypes(f.Columns.Labels())
		if len(s) == 0 {
			continue
		}
		resp.Suggestions = append(resp.Suggestions, fileSuggestions{File: f.Name, Suggestions: s})
	}

	h.writeJSON(w, http.StatusOK, resp)
}
