package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"montage/internal/httpkit"
)

const healthCheckTimeout = 5 * time.Second

// Health reports liveness; ?deep=true also pings every dependency.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	health := map[string]any{
		"status":  "ok",
		"service": "montage-api",
	}
	if h.sp != nil {
		health["storage"] = h.sp.Provider()
	}

	if r.URL.Query().Get("deep") == "true" {
		checks := h.deepHealthCheck(ctx)
		health["checks"] = checks
		for name, c := range checks {
			if c.Status != "ok" {
				health["status"] = "degraded"
				h.log.FromContext(ctx).Warn("health check degraded", "check", name, "error", c.Error)
			}
		}
	}

	httpkit.WriteJSON(w, http.StatusOK, health)
	return nil
}

type checkResult struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

func (h *Handler) deepHealthCheck(ctx context.Context) map[string]checkResult {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string]checkResult, len(h.checks))
	)
	for name, p := range h.checks {
		wg.Add(1)
		go func(name string, p Pinger) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
			defer cancel()

			start := time.Now()
			res := checkResult{Status: "ok"}
			if err := p.Ping(checkCtx); err != nil {
				res.Status = "error"
				res.Error = err.Error()
			}
			res.LatencyMs = time.Since(start).Milliseconds()

			mu.Lock()
			out[name] = res
			mu.Unlock()
		}(name, p)
	}
	wg.Wait()
	return out
}
