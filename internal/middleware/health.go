package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// HealthChecker probes one dependency of the scan server.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to HealthChecker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Check(ctx context.Context) error { return f(ctx) }

// DatabaseHealthChecker pings the scan database.
type DatabaseHealthChecker struct {
	DB *sql.DB
}

func (d *DatabaseHealthChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return d.DB.PingContext(ctx)
}

type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
	Failing   []string               `json:"failing,omitempty"`
}

type CheckStatus struct {
	Status  string        `json:"status"`
	Latency time.Duration `json:"latency_ns"`
	Message string        `json:"message,omitempty"`
}

// runChecks probes every checker concurrently; a slow storage endpoint
// must not hold up the database answer.
func runChecks(ctx context.Context, checkers map[string]HealthChecker) HealthStatus {
	st := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    make(map[string]CheckStatus, len(checkers)),
	}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, checker := range checkers {
		wg.Add(1)
		go func(name string, checker HealthChecker) {
			defer wg.Done()
			start := time.Now()
			err := checker.Check(ctx)
			cs := CheckStatus{Status: "healthy", Latency: time.Since(start)}
			if err != nil {
				cs.Status = "unhealthy"
				cs.Message = err.Error()
			}
			mu.Lock()
			st.Checks[name] = cs
			if err != nil {
				st.Failing = append(st.Failing, name)
			}
			mu.Unlock()
		}(name, checker)
	}
	wg.Wait()

	if len(st.Failing) > 0 {
		st.Status = "unhealthy"
		sort.Strings(st.Failing)
	}
	return st
}

func writeStatus(w http.ResponseWriter, healthy bool, body any) {
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

// HealthHandler reports every checker with its latency.
func HealthHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		st := runChecks(ctx, checkers)
		writeStatus(w, len(st.Failing) == 0, st)
	}
}

// ReadinessHandler only answers ready once the named checkers pass; the
// station should not submit scans while the database is down.
func ReadinessHandler(checkers map[string]HealthChecker, required ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		subset := make(map[string]HealthChecker, len(required))
		for _, name := range required {
			if c, ok := checkers[name]; ok {
				subset[name] = c
			}
		}
		st := runChecks(ctx, subset)
		ready := len(st.Failing) == 0
		status := "ready"
		if !ready {
			status = "not ready"
		}
		writeStatus(w, ready, map[string]any{
			"status":    status,
			"timestamp": st.Timestamp,
			"failing":   st.Failing,
		})
	}
}

func LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
