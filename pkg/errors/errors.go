// Package errors defines the error taxonomy used across the power-balancing
// agent: a small set of named kinds, each tagged as fatal or recoverable,
// so callers can decide whether to abort the control loop or absorb the
// failure and continue the current tick.
package errors

import "fmt"

// Kind names one of the failure modes the balancing core can produce.
type Kind string

const (
	// ProtocolDesync means step counters disagree across descend/ascend in a
	// way no valid transition explains. Fatal.
	ProtocolDesync Kind = "ProtocolDesync"
	// InvalidPolicy means a policy was outside platform bounds, or all-zero.
	// Fatal at the boundary (root).
	InvalidPolicy Kind = "InvalidPolicy"
	// WrongRole means a leaf-only (or non-leaf-only) method was called on
	// the wrong role. Programming bug; fatal.
	WrongRole Kind = "WrongRole"
	// TransientPlatform means a signal/control call failed once. Recovered
	// locally: the sample is dropped and the tick proceeds.
	TransientPlatform Kind = "TransientPlatform"
	// PlatformClipped means a requested power limit differed from what the
	// platform actually applied. Recovered locally: the package is marked
	// out-of-bounds so REDUCE treats it as target-met.
	PlatformClipped Kind = "PlatformClipped"
)

// fatalKinds are surfaced to the controller; everything else is absorbed.
var fatalKinds = map[Kind]bool{
	ProtocolDesync: true,
	InvalidPolicy:  true,
	WrongRole:      true,
}

// Error is a Kind-tagged error carrying enough context (role, step, the
// offending values) for the controller to emit a diagnostic.
type Error struct {
	Kind    Kind
	Role    string
	Step    string
	Message string
	Context map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Role == "" && e.Step == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s [role=%s step=%s]: %s", e.Kind, e.Role, e.Step, e.Message)
}

// Fatal reports whether this error must abort the control loop.
func (e *Error) Fatal() bool {
	return fatalKinds[e.Kind]
}

// New constructs an Error of the given kind.
func New(kind Kind, msg string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(msg, args...)}
}

// WithContext attaches role/step/free-form context to an Error, returning
// the same pointer for chaining at the call site.
func (e *Error) WithContext(role, step string, ctx map[string]any) *Error {
	e.Role = role
	e.Step = step
	e.Context = ctx
	return e
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	be, ok := err.(*Error)
	return ok && be.Kind == kind
}
