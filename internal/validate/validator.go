// Package validate checks flattened data maps against a JSON schema.
package validate

import (
	"context"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
	"lukechampine.com/blake3"

	"sensormap/core-go/internal/datamap"
	"sensormap/core-go/internal/metrics"
)

// Issue is one schema violation.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Result is the outcome of validating a map. An invalid map is a normal
// result, not an error.
type Result struct {
	Valid  bool    `json:"valid"`
	Errors []Issue `json:"errors"`
}

type Validator struct {
	log      zerolog.Logger
	provider SchemaProvider
	metrics  *metrics.Metrics

	mu    sync.Mutex
	cache map[string]*gojsonschema.Schema
}

func New(log zerolog.Logger, provider SchemaProvider, m *metrics.Metrics) *Validator {
	if provider == nil {
		provider = &StaticSchemaProvider{}
	}
	return &Validator{
		log:      log,
		provider: provider,
		metrics:  m,
		cache:    make(map[string]*gojsonschema.Schema),
	}
}

// Validate flattens tree and validates the result. The tree is only read.
func (v *Validator) Validate(ctx context.Context, tree *datamap.Tree) (Result, error) {
	flat, err := datamap.Flatten(tree)
	v.metrics.ObserveFlatten(err)
	if err != nil {
		v.metrics.ObserveValidation("error")
		return Result{}, fmt.Errorf("flatten: %w", err)
	}
	return v.ValidateFlat(ctx, flat)
}

func (v *Validator) ValidateFlat(ctx context.Context, flat datamap.FlatMap) (Result, error) {
	res, err := v.validateFlat(ctx, flat)
	switch {
	case err != nil:
		v.metrics.ObserveValidation("error")
	case res.Valid:
		v.metrics.ObserveValidation("valid")
	default:
		v.metrics.ObserveValidation("invalid")
	}
	return res, err
}

func (v *Validator) validateFlat(ctx context.Context, flat datamap.FlatMap) (Result, error) {
	schema, err := v.schema(ctx)
	if err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res, err := schema.Validate(gojsonschema.NewGoLoader(flat))
	if err != nil {
		return Result{}, fmt.Errorf("validate: %w", err)
	}

	out := Result{Valid: res.Valid(), Errors: []Issue{}}
	for _, e := range res.Errors() {
		out.Errors = append(out.Errors, Issue{Path: e.Field(), Message: e.Description()})
	}
	sort.SliceStable(out.Errors, func(i, j int) bool {
		if out.Errors[i].Path != out.Errors[j].Path {
			return out.Errors[i].Path < out.Errors[j].Path
		}
		return out.Errors[i].Message < out.Errors[j].Message
	})

	if !out.Valid {
		v.log.Debug().Int("issues", len(out.Errors)).Msg("data map failed schema validation")
	}
	return out, nil
}

// schema returns the compiled current schema. Compiled schemas are cached
// by a digest of the document, so a changed document is recompiled.
func (v *Validator) schema(ctx context.Context) (*gojsonschema.Schema, error) {
	doc, err := v.provider.Schema(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch schema: %w", err)
	}
	sum := blake3.Sum256(doc)
	key := hex.EncodeToString(sum[:])

	v.mu.Lock()
	defer v.mu.Unlock()

	if compiled, ok := v.cache[key]; ok {
		return compiled, nil
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	v.cache[key] = compiled
	v.log.Debug().Str("schema_digest", key[:12]).Msg("compiled data map schema")
	return compiled, nil
}
