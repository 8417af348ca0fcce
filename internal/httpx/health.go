package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

// Check probes one dependency; a nil error means healthy.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

type HealthHandler struct {
	// Checks are reported by /health; Ready gates /health/ready.
	Checks  []Check
	Ready   []Check
	Timeout time.Duration
	Now     func() time.Time
}

type checkResult struct {
	Service string `json:"service"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

type healthResp struct {
	Status    string        `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Checks    []checkResult `json:"checks,omitempty"`
}

func (h *HealthHandler) Register(r chi.Router) {
	r.Get("/health", h.health)
	r.Get("/health/ready", h.ready)
	r.Get("/health/live", h.live)
}

func (h *HealthHandler) health(w http.ResponseWriter, r *http.Request) {
	results, ok := h.run(r.Context(), h.Checks)
	resp := healthResp{Status: "healthy", Timestamp: h.now(), Checks: results}
	code := http.StatusOK
	if !ok {
		resp.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (h *HealthHandler) ready(w http.ResponseWriter, r *http.Request) {
	results, ok := h.run(r.Context(), h.Ready)
	resp := healthResp{Status: "ready", Timestamp: h.now(), Checks: results}
	code := http.StatusOK
	if !ok {
		resp.Status = "not ready"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (h *HealthHandler) live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResp{Status: "alive", Timestamp: h.now()})
}

// run probes every check concurrently. A failing probe never cancels the
// others, each one gets the full timeout.
func (h *HealthHandler) run(ctx context.Context, checks []Check) ([]checkResult, bool) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results := make([]checkResult, len(checks))
	var g errgroup.Group
	for i, c := range checks {
		g.Go(func() error {
			results[i] = checkResult{Service: c.Name, Status: "healthy"}
			if err := c.Probe(ctx); err != nil {
				results[i] = checkResult{Service: c.Name, Status: "unhealthy", Error: err.Error()}
			}
			return nil
		})
	}
	_ = g.Wait()

	ok := true
	for _, res := range results {
		if res.Status != "healthy" {
			ok = false
		}
	}
	return results, ok
}

func (h *HealthHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}
