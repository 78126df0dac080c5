// Package health exposes a liveness endpoint for the agent daemon, the same
// shape cluster-bare-autoscaler wires into its main loop: a timeout on the
// last tick and a separate timeout on the last successful tick, either of
// which failing fails the health check.
package health

import (
	"net/http"
	"sync"
	"time"
)

// HealthCheck tracks the last time the control loop ticked and the last
// time it completed a tick without any error. ServeHTTP reports 200 while both
// are within their configured timeouts, 500 otherwise.
type HealthCheck struct {
	mu sync.Mutex

	activityTimeout time.Duration
	successTimeout  time.Duration
	monitoring      bool

	lastActivity      time.Time
	lastSuccessfulRun time.Time
}

// NewHealthCheck constructs a HealthCheck with monitoring off; StartMonitoring
// arms it once the agent has begun ticking.
func NewHealthCheck(activityTimeout, successTimeout time.Duration) *HealthCheck {
	now := time.Now()
	return &HealthCheck{
		activityTimeout:   activityTimeout,
		successTimeout:    successTimeout,
		lastActivity:      now,
		lastSuccessfulRun: now,
	}
}

// StartMonitoring arms the timeouts. Before this is called ServeHTTP always
// reports healthy, so a daemon can register its handler before its first
// tick without racing a readiness probe.
func (h *HealthCheck) StartMonitoring() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.monitoring = true
}

// UpdateLastActivity records that the control loop ticked at t.
func (h *HealthCheck) UpdateLastActivity(t time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t.After(h.lastActivity) {
		h.lastActivity = t
	}
}

// UpdateLastSuccessfulRun records that the control loop completed a tick
// without any error at t. It also counts as activity.
func (h *HealthCheck) UpdateLastSuccessfulRun(t time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t.After(h.lastSuccessfulRun) {
		h.lastSuccessfulRun = t
	}
	if t.After(h.lastActivity) {
		h.lastActivity = t
	}
}

func (h *HealthCheck) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	monitoring := h.monitoring
	sinceActivity := time.Since(h.lastActivity)
	sinceSuccess := time.Since(h.lastSuccessfulRun)
	h.mu.Unlock()

	if monitoring && (sinceActivity > h.activityTimeout || sinceSuccess > h.successTimeout) {
		http.Error(w, "unhealthy", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}
