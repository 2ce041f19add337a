package transfer

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name      string
		err       error
		fatal     bool
		retryable bool
	}{
		{"nil", nil, false, false},
		{"unwrapped defaults to retryable", base, false, true},
		{"retryable", Retryable(base), false, true},
		{"fatal", Fatal(base), true, false},
		{"fatal survives wrapping", fmt.Errorf("copy %s: %w", "x", Fatal(base)), true, false},
		{"retryable survives wrapping", fmt.Errorf("copy %s: %w", "x", Retryable(base)), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fatal, IsFatal(tt.err))
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestClassifiedErrorUnwraps(t *testing.T) {
	base := errors.New("boom")
	assert.ErrorIs(t, Fatal(base), base)
	assert.ErrorIs(t, Retryable(base), base)
	assert.Nil(t, Fatal(nil))
	assert.Nil(t, Retryable(nil))
}
