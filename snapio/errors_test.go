package snapio

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceErrorCode_String(t *testing.T) {
	tests := []struct {
		code  DeviceErrorCode
		want  string
		known bool
	}{
		{UndefinedCommand, "undefined command", true},
		{PUCExpected, "power-up clear expected", true},
		{Busy, "busy", true},
		{ImageLenMismatch, "image length mismatch", true},
		{0, "device error 0", false},
		{0xBEEF, "device error 48879", false},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.String())
			assert.Equal(t, tt.known, tt.code.IsKnown())
		})
	}
}

func TestDeviceError(t *testing.T) {
	err := fmt.Errorf("set point: %w", &DeviceError{Code: InvalidAddress, Addr: 0xF0B00080})

	require.ErrorIs(t, err, ErrDeviceNak)
	assert.NotErrorIs(t, err, ErrMalformedResponse)
	assert.Contains(t, err.Error(), "device error 57349 (invalid address) at 0xF0B00080")

	code, ok := IsDeviceError(err)
	assert.True(t, ok)
	assert.Equal(t, InvalidAddress, code)

	_, ok = IsDeviceError(ErrDeviceNak)
	assert.False(t, ok)
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, IsTimeout(fmt.Errorf("read: %w", ErrTimeout)))
	assert.True(t, IsTimeout(ErrOpenTimeout))
	assert.False(t, IsTimeout(ErrRecvFailed))

	assert.ErrorIs(t, ErrLabelMismatch, ErrMalformedResponse)
	assert.False(t, errors.Is(ErrMalformedResponse, ErrLabelMismatch))
}
