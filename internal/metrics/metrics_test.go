package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestMiddleware_CountsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/v1/calendar/{date}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := counterValue(t, HTTPRequests.WithLabelValues("/v1/calendar/{date}", http.MethodGet, "418"))

	for _, day := range []string{"2026-01-01", "2026-01-02"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/calendar/"+day, nil))
		if rr.Code != http.StatusTeapot {
			t.Fatalf("expected 418, got %d", rr.Code)
		}
	}

	after := counterValue(t, HTTPRequests.WithLabelValues("/v1/calendar/{date}", http.MethodGet, "418"))
	if after-before != 2 {
		t.Fatalf("expected 2 requests counted under the route pattern, got %v", after-before)
	}
}

func TestInit_Idempotent(t *testing.T) {
	Init()
	Init()
}
