// Package platform defines the signal/control facade spec.md §6 treats as
// an external collaborator: reading package energy/runtime signals and
// writing package power-limit controls. The balancing core only ever talks
// to the small Facade interface here; concrete implementations (Noop, HTTP)
// stand in for the real MSR/RAPL sysfs or vendor-SDK access the original
// system uses.
package platform

import (
	"context"
	"fmt"
)

// Signal names required by the balancing core (spec.md §6), read per
// package unless noted.
const (
	SignalEpochRuntime        = "EPOCH_RUNTIME"
	SignalEpochCount          = "EPOCH_COUNT"
	SignalEpochRuntimeNetwork = "EPOCH_RUNTIME_NETWORK"
	SignalEpochRuntimeIgnore  = "EPOCH_RUNTIME_IGNORE"

	// Per board/package, read once at init.
	SignalPowerPackageMin        = "POWER_PACKAGE_MIN"
	SignalPowerPackageMax        = "POWER_PACKAGE_MAX"
	SignalPowerPackageTDP        = "POWER_PACKAGE_TDP"
	SignalPowerPackageTimeWindow = "POWER_PACKAGE_TIME_WINDOW"
)

// ControlPowerPackageLimit is the one control the core writes.
const ControlPowerPackageLimit = "POWER_PACKAGE_LIMIT"

// Handle identifies a signal or control previously registered with
// PushSignal/PushControl, for use with the batched Sample/Adjust calls.
type Handle int

// Facade is the platform measurement/actuation contract. Domain is a board
// or package identifier (e.g. "package"), idx the package/NUMA index.
type Facade interface {
	// PushSignal registers a signal for repeated batched sampling and
	// returns a handle to it.
	PushSignal(ctx context.Context, name, domain string, idx int) (Handle, error)
	// Sample returns the most recently read value for a pushed signal.
	Sample(h Handle) (float64, error)
	// ReadBatch refreshes every pushed signal in one platform round-trip.
	ReadBatch(ctx context.Context) error

	// PushControl registers a control for repeated batched writes and
	// returns a handle to it.
	PushControl(ctx context.Context, name, domain string, idx int) (Handle, error)
	// Adjust stages a new value for a pushed control.
	Adjust(h Handle, value float64) error
	// WriteBatch flushes every staged control write in one round-trip.
	WriteBatch(ctx context.Context) error

	// ReadSignal performs a one-shot, unbatched signal read.
	ReadSignal(ctx context.Context, name, domain string, idx int) (float64, error)
	// WriteControl performs a one-shot, unbatched control write and
	// reports the value the platform actually applied (which may differ
	// from the requested value if the platform clips it).
	WriteControl(ctx context.Context, name, domain string, idx int, value float64) (actual float64, err error)
}

// PackageBounds are the four board/package-level signals spec.md §6
// requires to be read once at init: POWER_PACKAGE_MIN/MAX/TDP/TIME_WINDOW.
type PackageBounds struct {
	Min        float64
	Max        float64
	TDP        float64
	TimeWindow float64
}

// ReadPackageBounds reads the four init-time bound signals for package idx
// from f, one ReadSignal call each. Every node that needs them (a leaf
// seeding its balancers' floors, a root building ValidationBounds) reads
// them once at startup, never on the per-tick hot path.
func ReadPackageBounds(ctx context.Context, f Facade, idx int) (PackageBounds, error) {
	min, err := f.ReadSignal(ctx, SignalPowerPackageMin, "package", idx)
	if err != nil {
		return PackageBounds{}, fmt.Errorf("reading %s: %w", SignalPowerPackageMin, err)
	}
	max, err := f.ReadSignal(ctx, SignalPowerPackageMax, "package", idx)
	if err != nil {
		return PackageBounds{}, fmt.Errorf("reading %s: %w", SignalPowerPackageMax, err)
	}
	tdp, err := f.ReadSignal(ctx, SignalPowerPackageTDP, "package", idx)
	if err != nil {
		return PackageBounds{}, fmt.Errorf("reading %s: %w", SignalPowerPackageTDP, err)
	}
	timeWindow, err := f.ReadSignal(ctx, SignalPowerPackageTimeWindow, "package", idx)
	if err != nil {
		return PackageBounds{}, fmt.Errorf("reading %s: %w", SignalPowerPackageTimeWindow, err)
	}
	return PackageBounds{Min: min, Max: max, TDP: tdp, TimeWindow: timeWindow}, nil
}
