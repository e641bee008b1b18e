package httptransport

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"execledger/pkg/platform/httputil"
)

// HealthCheck reports whether one backend is usable.
type HealthCheck func(ctx context.Context) error

// HealthHandler runs the registered checks concurrently.
type HealthHandler struct {
	mu      sync.RWMutex
	checks  map[string]HealthCheck
	timeout time.Duration
}

// NewHealthHandler bounds every check by timeout; zero means two seconds.
func NewHealthHandler(timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthHandler{checks: make(map[string]HealthCheck), timeout: timeout}
}

// Add registers a named check, replacing any check with the same name.
func (h *HealthHandler) Add(name string, check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	h.mu.RLock()
	checks := make(map[string]HealthCheck, len(h.checks))
	names := make([]string, 0, len(h.checks))
	for name, check := range h.checks {
		checks[name] = check
		names = append(names, name)
	}
	h.mu.RUnlock()
	sort.Strings(names)

	results := make([]error, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, check HealthCheck) {
			defer wg.Done()
			results[i] = check(ctx)
		}(i, checks[name])
	}
	wg.Wait()

	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(names))}
	status := http.StatusOK
	for i, name := range names {
		if results[i] != nil {
			resp.Checks[name] = results[i].Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	httputil.WriteJSON(w, status, resp)
}
