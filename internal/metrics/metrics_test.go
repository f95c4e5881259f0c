package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandler_nilMetrics(t *testing.T) {
	var m *Metrics
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	m.ObserveFlatten(nil)
	m.ObserveUnflatten(nil, 3)
	m.ObserveValidation("valid")
	m.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if got := rr.Body.String(); !strings.Contains(got, "metrics unavailable") {
		t.Fatalf("expected body to mention metrics unavailable, got %q", got)
	}
}

func TestHandler_exposesRegisteredMetrics(t *testing.T) {
	m := New()
	m.ObserveHTTPRequest(http.MethodGet, "/readyz", http.StatusOK, 12*time.Millisecond)
	m.ObserveFlatten(nil)
	m.ObserveFlatten(errors.New("boom"))
	m.ObserveUnflatten(nil, 2)
	m.ObserveValidation("stale")
	m.ObservePreviewFetch(nil, 40*time.Millisecond)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	m.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	body := rr.Body.String()
	for _, want := range []string{
		"sensormap_http_requests_total{method=\"GET\",path=\"/readyz\",status=\"200\"} 1",
		"sensormap_flatten_total{result=\"ok\"} 1",
		"sensormap_flatten_total{result=\"error\"} 1",
		"sensormap_unflatten_total{result=\"ok\"} 1",
		"sensormap_missing_files_total 2",
		"sensormap_validations_total{outcome=\"stale\"} 1",
		"sensormap_preview_fetch_duration_seconds_count{result=\"ok\"} 1",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics output; body=%s", want, body)
		}
	}
}
