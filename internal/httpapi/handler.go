package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"sensormap/core-go/internal/db"
	"sensormap/core-go/internal/filemeta"
	"sensormap/core-go/internal/metrics"
	"sensormap/core-go/internal/sqlcgen"
	"sensormap/core-go/internal/validate"
)

type dataMapQueries interface {
	CreateDataMap(ctx context.Context, arg sqlcgen.CreateDataMapParams) (sqlcgen.DataMap, error)
	GetDataMap(ctx context.Context, arg sqlcgen.GetDataMapParams) (sqlcgen.DataMap, error)
	ListDataMaps(ctx context.Context, projectID string) ([]sqlcgen.DataMap, error)
	UpdateDataMap(ctx context.Context, arg sqlcgen.UpdateDataMapParams) (sqlcgen.DataMap, error)
}

// Deps are the optional collaborators of the HTTP surface. A nil Validator
// falls back to the bundled schema; a nil Files reconciler disables the
// metadata route.
type Deps struct {
	Metrics   *metrics.Metrics
	Validator *validate.Validator
	Files     *filemeta.Reconciler
}

type Handler struct {
	log       zerolog.Logger
	pool      *db.Pool
	maps      dataMapQueries
	validator *validate.Validator
	files     *filemeta.Reconciler
	metrics   *metrics.Metrics
}

func NewHandler(log zerolog.Logger, pool *db.Pool, deps Deps) *Handler {
	h := &Handler{
		log:       log,
		pool:      pool,
		validator: deps.Validator,
		files:     deps.Files,
		metrics:   deps.Metrics,
	}
	if pool != nil {
		h.maps = pool.Queries()
	}
	if h.validator == nil {
		h.validator = validate.New(log, nil, deps.Metrics)
	}
	return h
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(h.accessLog)

	// Health
	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyZ)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler())
	}

	// API
	r.Route("/api", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			r.Route("/datamaps", func(r chi.Router) {
				r.Post("/flatten", h.handleFlatten)
				r.Post("/unflatten", h.handleUnflatten)
				r.Post("/validate", h.handleValidate)
			})

			r.Post("/files/metadata", h.handleFileMetadata)

			r.Route("/projects/{projectID}/datamaps", func(r chi.Router) {
				r.Get("/", h.handleListDataMaps)
				r.Post("/", h.handleCreateDataMap)
				r.Get("/default", h.handleDefaultDataMap)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.handleGetDataMap)
					r.Put("/", h.handleUpdateDataMap)
					r.Post("/clone", h.handleCloneDataMap)
				})
			})
		})
	})

	return r
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		w.Header().Set(middleware.RequestIDHeader, middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		h.metrics.ObserveHTTPRequest(r.Method, route, ww.Status(), elapsed)

		h.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", elapsed.Milliseconds()).
			Msg("http_request")
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	resp := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	}
	if details != nil {
		resp["error"].(map[string]any)["details"] = details
	}
	h.writeJSON(w, status, resp)
}

func decodeJSONStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("unexpected extra data after JSON body")
		}
		return err
	}
	return nil
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleReadyZ(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.pool == nil {
		h.writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not configured", nil)
		return
	}

	if err := h.pool.Ping(ctx); err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not ready", map[string]any{"error": err.Error()})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}
