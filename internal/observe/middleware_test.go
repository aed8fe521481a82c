package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// testSetup creates metrics and tracing infrastructure for middleware tests.
func testSetup(t *testing.T) (*Metrics, *sdkmetric.ManualReader, *tracetest.InMemoryExporter) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })

	return m, reader, exp
}

func serveThrough(t *testing.T, m *Metrics, method, target string, status int) (*httptest.ResponseRecorder, string) {
	t.Helper()
	var cid string
	handler := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cid = CorrelationID(r.Context())
		w.WriteHeader(status)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec, cid
}

func TestRoutePattern(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/webhook/c42", "/webhook/:call_id"},
		{"/webhook/c42/turn", "/webhook/:call_id/turn"},
		{"/webhook/c42/status", "/webhook/:call_id/status"},
		{"/calls/c42/transcript", "/calls/:call_id/transcript"},
		{"/calls/c42/tts/tts_ab12.mp3", "/calls/:call_id/tts/:filename"},
		{"/metrics", "/metrics"},
		{"/readyz", "/readyz"},
		{"/ws", "/ws"},
	}
	for _, tc := range tests {
		if got := RoutePattern(tc.path); got != tc.want {
			t.Errorf("RoutePattern(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestMiddlewareSetsCorrelationID(t *testing.T) {
	m, _, _ := testSetup(t)

	rec, cid := serveThrough(t, m, http.MethodGet, "/readyz", http.StatusOK)
	if len(cid) != 32 {
		t.Errorf("correlation ID length = %d, want 32", len(cid))
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != cid {
		t.Errorf("response X-Correlation-ID = %q, want %q", got, cid)
	}
}

func TestMiddlewareSpanUsesRoutePattern(t *testing.T) {
	m, _, exp := testSetup(t)

	serveThrough(t, m, http.MethodPost, "/webhook/c42/turn", http.StatusOK)

	spans := exp.GetSpans()
	if len(spans) == 0 {
		t.Fatal("middleware did not create a span")
	}
	if spans[0].Name != "HTTP POST /webhook/:call_id/turn" {
		t.Errorf("span name = %q, want the collapsed route", spans[0].Name)
	}
}

func TestMiddlewareRecordsDurationByRoute(t *testing.T) {
	m, reader, _ := testSetup(t)

	// Two calls on different call ids must land on one metric series.
	serveThrough(t, m, http.MethodPost, "/webhook/c1/turn", http.StatusOK)
	serveThrough(t, m, http.MethodPost, "/webhook/c2/turn", http.StatusOK)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	met := findMetric(rm, "aados.http.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if len(hist.DataPoints) != 1 {
		t.Fatalf("series count = %d, want 1 for two call ids on one route", len(hist.DataPoints))
	}

	dp := hist.DataPoints[0]
	if dp.Count != 2 {
		t.Errorf("sample count = %d, want 2", dp.Count)
	}
	foundMethod, foundRoute := false, false
	for _, kv := range dp.Attributes.ToSlice() {
		if string(kv.Key) == "method" && kv.Value.AsString() == "POST" {
			foundMethod = true
		}
		if string(kv.Key) == "route" && kv.Value.AsString() == "/webhook/:call_id/turn" {
			foundRoute = true
		}
	}
	if !foundMethod {
		t.Error("missing method attribute")
	}
	if !foundRoute {
		t.Error("missing route attribute")
	}
}

func TestMiddlewareCapturesStatusCode(t *testing.T) {
	m, _, exp := testSetup(t)

	rec, _ := serveThrough(t, m, http.MethodGet, "/calls/nope/transcript", http.StatusNotFound)
	if rec.Code != http.StatusNotFound {
		t.Errorf("response status = %d, want 404", rec.Code)
	}

	spans := exp.GetSpans()
	if len(spans) == 0 {
		t.Fatal("no spans recorded")
	}
	found := false
	for _, a := range spans[0].Attributes {
		if string(a.Key) == "http.response.status_code" && a.Value.AsInt64() == 404 {
			found = true
		}
	}
	if !found {
		t.Error("span missing http.response.status_code attribute")
	}
}

func TestMiddlewarePropagatesW3CTraceContext(t *testing.T) {
	m, _, _ := testSetup(t)

	const upstream = "4bf92f3577b34da6a3ce929d0e0e4736"

	var cid string
	handler := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cid = CorrelationID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("traceparent", "00-"+upstream+"-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if cid != upstream {
		t.Errorf("correlation ID = %q, want the upstream trace id", cid)
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != upstream {
		t.Errorf("response X-Correlation-ID = %q, want %q", got, upstream)
	}
}
