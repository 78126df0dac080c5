package platform

import (
	"context"
	"fmt"
	"log/slog"
)

// NoopFacade serves fixed, configured readings and accepts every control
// write without clipping. It is used for dry runs and tests, grounded on
// the teacher's NoopPowerController pattern.
type NoopFacade struct {
	Signals map[string]float64

	pushed map[Handle]string
	next   Handle
}

// NewNoopFacade constructs a NoopFacade seeded with fixed signal values,
// keyed "NAME/DOMAIN/IDX".
func NewNoopFacade(signals map[string]float64) *NoopFacade {
	if signals == nil {
		signals = map[string]float64{}
	}
	return &NoopFacade{Signals: signals, pushed: map[Handle]string{}}
}

func signalKey(name, domain string, idx int) string {
	return fmt.Sprintf("%s/%s/%d", name, domain, idx)
}

func (n *NoopFacade) PushSignal(_ context.Context, name, domain string, idx int) (Handle, error) {
	n.next++
	n.pushed[n.next] = signalKey(name, domain, idx)
	return n.next, nil
}

func (n *NoopFacade) Sample(h Handle) (float64, error) {
	key, ok := n.pushed[h]
	if !ok {
		return 0, fmt.Errorf("platform: unknown signal handle %d", h)
	}
	return n.Signals[key], nil
}

func (n *NoopFacade) ReadBatch(_ context.Context) error { return nil }

func (n *NoopFacade) PushControl(_ context.Context, name, domain string, idx int) (Handle, error) {
	n.next++
	n.pushed[n.next] = signalKey(name, domain, idx)
	return n.next, nil
}

func (n *NoopFacade) Adjust(h Handle, value float64) error {
	key, ok := n.pushed[h]
	if !ok {
		return fmt.Errorf("platform: unknown control handle %d", h)
	}
	n.Signals[key] = value
	return nil
}

func (n *NoopFacade) WriteBatch(_ context.Context) error { return nil }

func (n *NoopFacade) ReadSignal(_ context.Context, name, domain string, idx int) (float64, error) {
	return n.Signals[signalKey(name, domain, idx)], nil
}

func (n *NoopFacade) WriteControl(_ context.Context, name, domain string, idx int, value float64) (float64, error) {
	slog.Debug("noop platform: write control skipped", "name", name, "domain", domain, "idx", idx, "value", value)
	n.Signals[signalKey(name, domain, idx)] = value
	return value, nil
}
