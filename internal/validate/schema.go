package validate

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed schema/datamap.yaml
var schemaFS embed.FS

// SchemaProvider supplies the JSON schema flat maps are checked against.
type SchemaProvider interface {
	Schema(ctx context.Context) ([]byte, error)
}

// StaticSchemaProvider serves a fixed document. The zero value serves the
// bundled data map schema.
type StaticSchemaProvider struct {
	once sync.Once
	doc  []byte
	err  error
	raw  []byte
}

func NewStaticSchemaProvider(doc []byte) *StaticSchemaProvider {
	return &StaticSchemaProvider{raw: doc}
}

func (p *StaticSchemaProvider) Schema(context.Context) ([]byte, error) {
	p.once.Do(func() {
		raw := p.raw
		if raw == nil {
			raw, p.err = schemaFS.ReadFile("schema/datamap.yaml")
			if p.err != nil {
				return
			}
		}
		p.doc, p.err = toJSON(raw)
	})
	return p.doc, p.err
}

// FileSchemaProvider reads a JSON or YAML schema from disk on every call so
// edits to the file take effect without a restart.
type FileSchemaProvider struct {
	Path string
}

func (p FileSchemaProvider) Schema(context.Context) ([]byte, error) {
	raw, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("read schema %q: %w", p.Path, err)
	}
	doc, err := toJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("parse schema %q: %w", p.Path, err)
	}
	return doc, nil
}

// HTTPSchemaProvider fetches the schema from a URL and keeps it for TTL.
type HTTPSchemaProvider struct {
	client *http.Client
	url    string
	ttl    time.Duration

	mu        sync.Mutex
	doc       []byte
	fetchedAt time.Time
}

func NewHTTPSchemaProvider(client *http.Client, url string, ttl time.Duration) *HTTPSchemaProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSchemaProvider{client: client, url: url, ttl: ttl}
}

func (p *HTTPSchemaProvider) Schema(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.doc != nil && p.ttl > 0 && time.Since(p.fetchedAt) < p.ttl {
		return p.doc, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request schema: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("request schema: unexpected status %s", resp.Status)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	doc, err := toJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}

	p.doc = doc
	p.fetchedAt = time.Now()
	return doc, nil
}

// toJSON normalizes a YAML or JSON document to JSON. JSON input is valid
// YAML, so both go through the YAML decoder.
func toJSON(raw []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("empty schema document")
	}
	return json.Marshal(doc)
}
