package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	t.Run("wrapping nil returns nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "should vanish"))
	})

	t.Run("wrapped cause stays reachable via errors.Is", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Wrap(cause, CodeUnavailable, "scoring service unreachable")
		require.Error(t, err)
		assert.True(t, errors.Is(err, cause))
		assert.True(t, HasCode(err, CodeUnavailable))
	})

	t.Run("outermost code wins after rewrapping", func(t *testing.T) {
		inner := New(CodeTimeout, "deadline exceeded")
		outer := Wrap(inner, CodeUnavailable, "scoring call failed")
		assert.Equal(t, CodeUnavailable, CodeOf(outer))
	})
}

func TestHasCode(t *testing.T) {
	t.Run("plain errors have no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("plain"), CodeInternal))
	})

	t.Run("fmt-wrapped domain error keeps its code", func(t *testing.T) {
		err := fmt.Errorf("handler: %w", New(CodeQuotaExhausted, "daily quota reached"))
		assert.True(t, HasCode(err, CodeQuotaExhausted))
	})
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("untyped")))
	assert.Equal(t, CodeNotFound, CodeOf(New(CodeNotFound, "missing")))
}
