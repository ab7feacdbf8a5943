package carrier

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode_IsValid(t *testing.T) {
	assert.True(t, CodeShiprocket.IsValid())
	assert.True(t, CodeDelhivery.IsValid())
	assert.False(t, Code("BLUEDART").IsValid())
	assert.False(t, Code("shiprocket").IsValid())
	assert.False(t, Code("").IsValid())
}

func TestError(t *testing.T) {
	t.Run("retryable kinds", func(t *testing.T) {
		tests := []struct {
			kind ErrorKind
			want bool
		}{
			{ErrorKindAuth, false},
			{ErrorKindValidation, false},
			{ErrorKindRateLimit, true},
			{ErrorKindUnavailable, true},
		}

		for _, tt := range tests {
			t.Run(string(tt.kind), func(t *testing.T) {
				err := NewError(CodeShiprocket, tt.kind, "call failed", nil)
				assert.Equal(t, tt.want, err.IsRetryable())
			})
		}
	})

	t.Run("wraps the cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := NewError(CodeDelhivery, ErrorKindUnavailable, "track request failed", cause)

		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "DELHIVERY")
		assert.Contains(t, err.Error(), "UNAVAILABLE")
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("message without cause", func(t *testing.T) {
		err := NewError(CodeShiprocket, ErrorKindAuth, "invalid token", nil)

		assert.Equal(t, "SHIPROCKET: invalid token (AUTH)", err.Error())
		assert.Nil(t, err.Unwrap())
	})
}
