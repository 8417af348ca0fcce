package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func serveWithHeader(h http.Handler, path string, body io.Reader, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, body)
	if sig != "" {
		req.Header.Set("Stripe-Signature", sig)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func ok(context.Context) error { return nil }

func TestHealth(t *testing.T) {
	down := func(context.Context) error { return errors.New("dial tcp: refused") }
	slow := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	h := &HealthHandler{
		Checks:  []Check{{"database", ok}, {"redis", down}, {"kafka", slow}},
		Ready:   []Check{{"database", ok}},
		Timeout: 50 * time.Millisecond,
	}
	r := chi.NewRouter()
	h.Register(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("/health = %d", rec.Code)
	}
	var resp healthResp
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "unhealthy" || len(resp.Checks) != 3 {
		t.Fatalf("resp = %+v", resp)
	}
	want := []string{"healthy", "unhealthy", "unhealthy"}
	for i, c := range resp.Checks {
		if c.Status != want[i] {
			t.Errorf("%s = %s (%s)", c.Service, c.Status, c.Error)
		}
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/health/ready = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/health/live = %d", rec.Code)
	}
}

func TestNotReady(t *testing.T) {
	h := &HealthHandler{Ready: []Check{{"database", func(context.Context) error { return errors.New("no pool") }}}}
	r := chi.NewRouter()
	h.Register(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	var resp healthResp
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if rec.Code != http.StatusServiceUnavailable || resp.Status != "not ready" {
		t.Fatalf("code = %d resp = %+v", rec.Code, resp)
	}
}
