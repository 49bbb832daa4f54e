package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/luckyline/game-engine/internal/metrics"
)

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.Get("/api/v1/players/{playerID}/balance", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Requests for different players land on one label value.
	for _, player := range []string{"p1", "p2", "p3"} {
		req := httptest.NewRequest("GET", "/api/v1/players/"+player+"/balance", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	}

	pattern := "/api/v1/players/{playerID}/balance"
	got := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", pattern, "200"))
	if got != 3 {
		t.Errorf("pattern-labeled count = %v, want 3", got)
	}

	raw := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/players/p1/balance", "200"))
	if raw != 0 {
		t.Errorf("raw-path label should be unused, got %v", raw)
	}
}
