package filemeta

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Preview is the first rows of a data file as reported by the preview
// service. When HasHeader is set the first row holds header labels.
type Preview struct {
	HasHeader bool       `json:"has_header"`
	Rows      [][]string `json:"rows"`
}

// Previewer fetches a preview for a file identifier.
type Previewer interface {
	Preview(ctx context.Context, fileID string) (Preview, error)
}

// HTTPPreviewer calls GET {baseURL}/files/{id}/preview.
type HTTPPreviewer struct {
	client  *http.Client
	baseURL string
}

func NewHTTPPreviewer(client *http.Client, baseURL string) *HTTPPreviewer {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPPreviewer{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (p *HTTPPreviewer) Preview(ctx context.Context, fileID string) (Preview, error) {
	endpoint := p.baseURL + "/files/" + url.PathEscape(fileID) + "/preview"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Preview{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Preview{}, fmt.Errorf("request preview: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Preview{}, fmt.Errorf("request preview: unexpected status %s", resp.Status)
	}

	var payload Preview
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Preview{}, fmt.Errorf("decode preview: %w", err)
	}
	return payload, nil
}
