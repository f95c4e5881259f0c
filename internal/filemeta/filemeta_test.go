package filemeta

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sensormap/core-go/internal/datamap"
)

type fakePreviewer struct {
	mu       sync.Mutex
	calls    []string
	previews map[string]Preview
	errs     map[string]error
}

func (f *fakePreviewer) Preview(_ context.Context, id string) (Preview, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	f.mu.Unlock()
	if err, ok := f.errs[id]; ok {
		return Preview{}, err
	}
	return f.previews[id], nil
}

func TestDerive_HeaderRow(t *testing.T) {
	md, err := Derive(Preview{HasHeader: true, Rows: [][]string{{"Time", " Temp ", ""}, {"1", "2", "3"}}})
	require.NoError(t, err)
	assert.True(t, md.HasHeader)
	assert.Equal(t, []string{"Time", "Temp", "Column 3"}, md.Columns)
	require.Len(t, md.Signature.Headers, 3)
	assert.Equal(t, "Time", *md.Signature.Headers[0])
	assert.Equal(t, "Temp", *md.Signature.Headers[1])
	assert.Nil(t, md.Signature.Headers[2])
}

func TestDerive_NoHeader(t *testing.T) {
	md, err := Derive(Preview{Rows: [][]string{{"2024-01-01", "21.5"}}})
	require.NoError(t, err)
	assert.False(t, md.HasHeader)
	assert.Equal(t, []string{"Column 1", "Column 2"}, md.Columns)
	assert.Equal(t, []*string{nil, nil}, md.Signature.Headers)
}

func TestDerive_EmptyPreview(t *testing.T) {
	_, err := Derive(Preview{HasHeader: true})
	require.ErrorIs(t, err, ErrEmptyPreview)
}

func TestEnsure_FillsMissingAndSkipsComplete(t *testing.T) {
	p := &fakePreviewer{previews: map[string]Preview{
		"f-1":       {HasHeader: true, Rows: [][]string{{"A", "B"}}},
		"meter.csv": {Rows: [][]string{{"1", "2", "3"}}},
	}}
	complete := &datamap.FileRef{
		ID:        "f-0",
		Name:      "done.csv",
		Columns:   datamap.ColumnList("Column 1"),
		Signature: &datamap.Signature{Headers: []*string{nil}},
	}
	byID := &datamap.FileRef{ID: "f-1", Name: "ahu.csv"}
	byName := &datamap.FileRef{Name: "meter.csv"}

	r := New(zerolog.Nop(), p, nil, Options{Concurrency: 2})
	require.NoError(t, r.Ensure(context.Background(), []*datamap.FileRef{complete, byID, nil, byName}))

	assert.ElementsMatch(t, []string{"f-1", "meter.csv"}, p.calls)
	assert.True(t, byID.HasHeader)
	assert.Equal(t, []string{"A", "B"}, byID.Columns.Labels())
	assert.Equal(t, []string{"Column 1", "Column 2", "Column 3"}, byName.Columns.Labels())
	assert.True(t, byName.HasMetadata())

	// A second pass has nothing left to fetch.
	p.calls = nil
	require.NoError(t, Ensure(context.Background(), p, []*datamap.FileRef{complete, byID, byName}))
	assert.Empty(t, p.calls)
}

func TestEnsure_AnyFailureLeavesAllFilesUntouched(t *testing.T) {
	p := &fakePreviewer{
		previews: map[string]Preview{"ok": {HasHeader: true, Rows: [][]string{{"A"}}}},
		errs:     map[string]error{"bad": errors.New("upstream 502")},
	}
	good := &datamap.FileRef{ID: "ok", Name: "good.csv"}
	bad := &datamap.FileRef{ID: "bad", Name: "bad.csv"}

	err := Ensure(context.Background(), p, []*datamap.FileRef{good, bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.csv")
	assert.False(t, good.HasMetadata())
	assert.False(t, bad.HasMetadata())
}

func TestHTTPPreviewer(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.EscapedPath() != "/files/ahu%201.csv/preview" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"has_header": true, "rows": [["Time", "SAT"], ["0", "13.1"]]}`))
	}))
	defer srv.Close()

	p := NewHTTPPreviewer(srv.Client(), srv.URL+"/")
	got, err := p.Preview(context.Background(), "ahu 1.csv")
	require.NoError(t, err)
	assert.True(t, got.HasHeader)
	assert.Equal(t, [][]string{{"Time", "SAT"}, {"0", "13.1"}}, got.Rows)

	_, err = p.Preview(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status")
	assert.Equal(t, int32(2), hits.Load())
}
