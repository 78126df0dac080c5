package controller

import (
	"sync"
	"time"
)

// CapInjector lets an external caller (pkg/jobctl, over HTTP) hand the root
// a fresh job-level power cap between ticks. Controller.Run polls it once
// per tick before calling the root's Tick.
type CapInjector struct {
	mu      sync.Mutex
	pending *float64
}

// NewCapInjector constructs an empty injector, optionally pre-seeded with
// an initial job-level cap to apply on the very first tick.
func NewCapInjector(initial float64) *CapInjector {
	c := &CapInjector{}
	if initial > 0 {
		c.Inject(initial)
	}
	return c
}

// Inject stages a new job-level power cap (watts) to be applied on the
// next tick.
func (c *CapInjector) Inject(watts float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := watts
	c.pending = &v
}

// Take returns the staged cap, if any, and clears it.
func (c *CapInjector) Take() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return 0, false
	}
	v := *c.pending
	c.pending = nil
	return v, true
}

// tickState tracks the time of the most recent tick and the error (nil on
// success) that tick returned, reported through Controller.LastTick.
type tickState struct {
	mu        sync.Mutex
	lastTick  time.Time
	lastError error
}

func (s *tickState) recordTick(t time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTick = t
	s.lastError = err
}

func (s *tickState) snapshot() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTick, s.lastError
}
