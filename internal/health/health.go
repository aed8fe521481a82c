// Package health serves the liveness and readiness probes for the agent.
//
//   - /healthz answers 200 whenever the process can serve HTTP.
//   - /readyz runs every registered [Checker] concurrently and answers 200
//     only when all of them pass. A voice agent that cannot reach its
//     database, its providers, or its audio cache must not receive calls.
//
// The readiness body reports each check with its outcome and latency so an
// operator can see which dependency is slow before it starts failing.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"sync"
	"time"
)

// checkTimeout bounds one readiness check. Load balancers poll readiness on
// short intervals; a hung dependency must not hang the probe.
const checkTimeout = 2 * time.Second

// Checker is a named readiness check. Check returns nil when the dependency
// can serve a call right now and must respect context cancellation.
type Checker struct {
	// Name keys the check in the JSON response ("database", "tts_cache").
	Name string

	Check func(ctx context.Context) error
}

// DirWritable returns a Checker that verifies dir accepts file writes. Used
// for the TTS audio cache directory: a full or read-only disk silently
// downgrades every call to carrier-native speech.
func DirWritable(name, dir string) Checker {
	return Checker{Name: name, Check: func(context.Context) error {
		f, err := os.CreateTemp(dir, ".readyz-*")
		if err != nil {
			return err
		}
		path := f.Name()
		if err := f.Close(); err != nil {
			return err
		}
		return os.Remove(path)
	}}
}

// CheckResult is one check's outcome in the readiness body.
type CheckResult struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// report is the JSON body for both probes.
type report struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// Handler serves the two probe endpoints. Safe for concurrent use; the
// checker list is fixed at construction.
type Handler struct {
	checkers []Checker
}

// New creates a Handler over the given checkers.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz always answers 200. A process serving HTTP is alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: "ok"})
}

// Readyz runs all checkers concurrently, each under its own checkTimeout,
// and answers 503 when any fails.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	results := make([]CheckResult, len(h.checkers))

	var wg sync.WaitGroup
	for i, c := range h.checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()

			start := time.Now()
			err := c.Check(ctx)
			res := CheckResult{Status: "ok", LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				res.Status = "fail"
				res.Error = err.Error()
			}
			results[i] = res
		}()
	}
	wg.Wait()

	out := report{Status: "ok", Checks: make(map[string]CheckResult, len(h.checkers))}
	status := http.StatusOK
	for i, c := range h.checkers {
		out.Checks[c.Name] = results[i]
		if results[i].Status != "ok" {
			out.Status = "fail"
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, out)
}

// writeJSON encodes v with the given status code, degrading to a plain 500
// body when encoding fails.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
