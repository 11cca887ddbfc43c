package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
)

// Check is a named readiness probe.
type Check struct {
	Name string
	Fn   func(context.Context) error
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LivenessHandler always reports the process as alive.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, http.StatusOK, healthResponse{Status: "alive"})
	}
}

// ReadinessHandler runs every check with the request context and answers
// 200 when all pass, 503 otherwise.
func ReadinessHandler(log *slog.Logger, checks ...Check) http.HandlerFunc {
	sort.SliceStable(checks, func(i, j int) bool { return checks[i].Name < checks[j].Name })

	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ready", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK

		for _, c := range checks {
			if err := c.Fn(r.Context()); err != nil {
				log.WarnContext(r.Context(), "readiness check failed",
					slog.String("check", c.Name),
					slog.Any("error", err),
				)
				resp.Checks[c.Name] = "failing"
				resp.Status = "not_ready"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[c.Name] = "ok"
		}
		writeHealth(w, status, resp)
	}
}

func writeHealth(w http.ResponseWriter, status int, body healthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
