package errors_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	bperrors "github.com/jobpower/powerbalancer/pkg/errors"
)

func TestFatalClassification(t *testing.T) {
	tests := []struct {
		kind  bperrors.Kind
		fatal bool
	}{
		{bperrors.ProtocolDesync, true},
		{bperrors.InvalidPolicy, true},
		{bperrors.WrongRole, true},
		{bperrors.TransientPlatform, false},
		{bperrors.PlatformClipped, false},
	}

	for _, tt := range tests {
		err := bperrors.New(tt.kind, "boom")
		assert.Equal(t, tt.fatal, err.Fatal(), "kind=%s", tt.kind)
	}
}

func TestErrorMessageIncludesContext(t *testing.T) {
	err := bperrors.New(bperrors.ProtocolDesync, "step mismatch: want %d got %d", 1, 3).
		WithContext("root", "MEASURE_RUNTIME", map[string]any{"want": 1, "got": 3})

	assert.Contains(t, err.Error(), "ProtocolDesync")
	assert.Contains(t, err.Error(), "root")
	assert.Contains(t, err.Error(), "MEASURE_RUNTIME")
	assert.True(t, bperrors.IsKind(err, bperrors.ProtocolDesync))
	assert.False(t, bperrors.IsKind(err, bperrors.WrongRole))
}
