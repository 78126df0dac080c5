package controller

import "github.com/jobpower/powerbalancer/pkg/health"

// Option configures a Controller at construction time, mirroring the
// teacher's ReconcilerOption functional-options pattern.
type Option func(c *Controller)

// WithCapInjector attaches a CapInjector a root Controller polls once per
// tick for a freshly-injected job-level power cap. No-op on a non-root
// Controller.
func WithCapInjector(inj *CapInjector) Option {
	return func(c *Controller) { c.capInjector = inj }
}

// WithHealthCheck wires a liveness surface the control loop updates on
// every tick and every successful tick.
func WithHealthCheck(h *health.HealthCheck) Option {
	return func(c *Controller) { c.health = h }
}
