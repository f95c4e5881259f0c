// Package filemeta fills in the preview-derived metadata of data files.
package filemeta

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"sensormap/core-go/internal/datamap"
	"sensormap/core-go/internal/metrics"
)

// ErrEmptyPreview is returned for a file whose preview has no rows.
var ErrEmptyPreview = errors.New("preview has no rows")

type Options struct {
	// Concurrency bounds the number of previews fetched at once.
	Concurrency int
}

type Reconciler struct {
	log         zerolog.Logger
	previewer   Previewer
	metrics     *metrics.Metrics
	concurrency int
}

func New(log zerolog.Logger, p Previewer, m *metrics.Metrics, opts Options) *Reconciler {
	c := opts.Concurrency
	if c <= 0 {
		c = 4
	}
	return &Reconciler{log: log, previewer: p, metrics: m, concurrency: c}
}

// Metadata is what a preview yields for one file.
type Metadata struct {
	HasHeader bool
	Columns   []string
	Signature *datamap.Signature
}

// Ensure fills HasHeader, Columns and Signature for every file that lacks
// them. Files that already have metadata are left alone. Previews are
// fetched concurrently; if any fetch fails, no file is modified and the
// first error is returned.
func (r *Reconciler) Ensure(ctx context.Context, files []*datamap.FileRef) error {
	var pending []*datamap.FileRef
	for _, f := range files {
		if f == nil || f.HasMetadata() {
			continue
		}
		pending = append(pending, f)
	}
	if len(pending) == 0 {
		return nil
	}

	results := make([]Metadata, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, f := range pending {
		g.Go(func() error {
			md, err := r.fetch(gctx, f)
			if err != nil {
				return fmt.Errorf("file %q: %w", fileLabel(f), err)
			}
			results[i] = md
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.log.Warn().Err(err).Int("files", len(pending)).Msg("file metadata reconciliation failed")
		return err
	}

	for i, f := range pending {
		f.HasHeader = results[i].HasHeader
		f.Columns = datamap.ColumnList(results[i].Columns...)
		f.Signature = results[i].Signature
	}
	r.log.Debug().Int("files", len(pending)).Msg("file metadata reconciled")
	return nil
}

func (r *Reconciler) fetch(ctx context.Context, f *datamap.FileRef) (Metadata, error) {
	id := f.ID
	if id == "" {
		id = f.Name
	}
	start := time.Now()
	p, err := r.previewer.Preview(ctx, id)
	r.metrics.ObservePreviewFetch(err, time.Since(start))
	if err != nil {
		return Metadata{}, err
	}
	return Derive(p)
}

// Derive computes file metadata from a preview. Header labels become the
// column labels and the signature; files without a header, and blank header
// cells, get "Column N" labels and a nil signature entry.
func Derive(p Preview) (Metadata, error) {
	if len(p.Rows) == 0 {
		return Metadata{}, ErrEmptyPreview
	}
	first := p.Rows[0]

	md := Metadata{
		HasHeader: p.HasHeader,
		Columns:   make([]string, len(first)),
		Signature: &datamap.Signature{Headers: make([]*string, len(first))},
	}
	for i, cell := range first {
		label := strings.TrimSpace(cell)
		if p.HasHeader && label != "" {
			md.Columns[i] = label
			md.Signature.Headers[i] = &label
			continue
		}
		md.Columns[i] = "Column " + strconv.Itoa(i+1)
	}
	return md, nil
}

func fileLabel(f *datamap.FileRef) string {
	if f.Name != "" {
		return f.Name
	}
	return f.ID
}

// Ensure runs Reconciler.Ensure with default options and no logging.
func Ensure(ctx context.Context, p Previewer, files []*datamap.FileRef) error {
	return New(zerolog.Nop(), p, nil, Options{}).Ensure(ctx, files)
}
