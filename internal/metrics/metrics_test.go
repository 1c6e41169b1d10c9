package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Delete("/delete/{name}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/ok", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	tests := []struct {
		method, target, pattern, status string
	}{
		{"DELETE", "/delete/a.txt", "/delete/{name}", "404"},
		{"DELETE", "/delete/b.txt", "/delete/{name}", "404"},
		{"GET", "/ok", "/ok", "200"},
	}
	for _, tc := range tests {
		req := httptest.NewRequest(tc.method, tc.target, http.NoBody)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("DELETE", "/delete/{name}", "404")); got < 2 {
		t.Errorf("expected 2 requests for route pattern, got %f", got)
	}
	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/ok", "200")); got < 1 {
		t.Errorf("expected implicit 200 to be recorded, got %f", got)
	}
}

func TestObserveCommit(t *testing.T) {
	before := testutil.ToFloat64(IndexCommitsTotal.WithLabelValues("delete", "error"))
	ObserveCommit("delete", time.Now(), errors.New("disk full"))
	after := testutil.ToFloat64(IndexCommitsTotal.WithLabelValues("delete", "error"))
	if after-before != 1 {
		t.Errorf("expected one error commit, got %f", after-before)
	}

	SetIndexSize(5, 2)
	if got := testutil.ToFloat64(IndexRecords); got != 5 {
		t.Errorf("expected 5 records, got %f", got)
	}
	if got := testutil.ToFloat64(IndexDocuments); got != 2 {
		t.Errorf("expected 2 documents, got %f", got)
	}
}

func TestRegister_Idempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}
}
