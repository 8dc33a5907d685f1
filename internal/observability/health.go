package observability

import (
	"context"
	"encoding/json"
	"net/http"
)

// ReadyCheck probes one subsystem a running process depends on, such as
// the report store. A nil return means ready.
type ReadyCheck func(ctx context.Context) error

// HealthHandler serves liveness probes. It answers 200 unconditionally;
// if the process can run this handler, it is alive.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respondHealth(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// ReadyHandler serves readiness probes by running every check in order.
// The first failure produces a 503 carrying the failing error; with no
// checks, or all passing, the answer is 200.
func ReadyHandler(checks ...ReadyCheck) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		for _, check := range checks {
			if err := check(req.Context()); err != nil {
				respondHealth(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unavailable",
					"reason": err.Error(),
				})

				return
			}
		}

		respondHealth(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

func respondHealth(w http.ResponseWriter, code int, payload map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	// Nothing useful to do about an encode failure on a probe response.
	_ = json.NewEncoder(w).Encode(payload)
}
