package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func Test_Metrics_EndpointReturns200(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", w.Code)
	}
	ct := w.Header().Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("want text/plain content-type, got %q", ct)
	}
}

func Test_Metrics_AskCounterIncremented(t *testing.T) {
	t.Parallel()
	s, fake := newTestServer(t)
	fake.ans.Grounded = true
	fake.ans.Text = "ok"

	postAsk(t, s, `{"question":"What is flu?"}`)

	got := testutil.ToFloat64(s.metrics.askRequestsTotal.WithLabelValues("ok"))
	if got != 1 {
		t.Errorf(`ask_requests_total{outcome="ok"} = %v, want 1`, got)
	}
}

func Test_Metrics_BadRequestOutcome(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t)

	postAsk(t, s, `{"question":""}`)

	got := testutil.ToFloat64(s.metrics.askRequestsTotal.WithLabelValues("bad_request"))
	if got != 1 {
		t.Errorf(`ask_requests_total{outcome="bad_request"} = %v, want 1`, got)
	}
}

func Test_Metrics_HTTPRequestsInstrumented(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	s.httpServer.Handler.ServeHTTP(httptest.NewRecorder(), req)

	got := testutil.ToFloat64(s.metrics.httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/health", "200"))
	if got != 1 {
		t.Errorf(`http_requests_total for /api/health = %v, want 1`, got)
	}
}
