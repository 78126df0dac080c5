package platform

import (
	"fmt"
	"time"
)

// Mode selects which Facade implementation a node agent constructs,
// mirroring the teacher's power.Factory switch-on-mode pattern.
type Mode string

const (
	ModeNoop Mode = "noop"
	ModeHTTP Mode = "http"
)

// FactoryConfig carries the platform-facade section of node agent config.
type FactoryConfig struct {
	Mode Mode

	// HTTP mode.
	BaseURL string
	Timeout time.Duration

	// Noop mode: fixed signal values keyed "NAME/DOMAIN/IDX".
	FixedSignals map[string]float64
}

// NewFacade builds the configured Facade implementation.
func NewFacade(cfg FactoryConfig) (Facade, error) {
	switch cfg.Mode {
	case ModeNoop, "":
		return NewNoopFacade(cfg.FixedSignals), nil
	case ModeHTTP:
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("platform: http mode requires a base URL")
		}
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		return NewHTTPFacade(cfg.BaseURL, timeout), nil
	default:
		return nil, fmt.Errorf("platform: unknown mode %q", cfg.Mode)
	}
}
