package supervisor

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := ErrDropped.WithMessage("redis dropped")
	assert.ErrorIs(t, err, ErrDropped)
	assert.NotErrorIs(t, err, ErrTimeout)

	wrapped := fmt.Errorf("start: %w", err)
	assert.ErrorIs(t, wrapped, ErrDropped)

	e, ok := GetError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "DROPPED", e.Code)

	_, ok = GetError(errors.New("plain"))
	assert.False(t, ok)
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "[TIMEOUT] action timed out", ErrTimeout.Error())
	assert.Equal(t, "[HANDLER_FAILURE] handler failed: connection refused",
		ErrHandlerFailure.WithCause(errRefused).Error())
}

func TestHandlerFailure(t *testing.T) {
	err := handlerFailure(ActionStartUp, errRefused)
	assert.ErrorIs(t, err, ErrHandlerFailure)
	assert.ErrorIs(t, err, errRefused)
	assert.Contains(t, err.Error(), "startUp handler failed")

	// Supervisor errors reported by handlers keep their kind.
	err = handlerFailure(ActionStartUp, ErrShuttingDown)
	assert.ErrorIs(t, err, ErrShuttingDown)
	assert.NotErrorIs(t, err, ErrHandlerFailure)
}

func TestTimeoutError(t *testing.T) {
	err := timeoutError(ActionRestart, 5*time.Second)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Contains(t, err.Error(), "restart timed out after 5s")
}

func TestWithCauseDoesNotMutateSentinel(t *testing.T) {
	_ = ErrTimeout.WithCause(errRefused)
	assert.Nil(t, ErrTimeout.Cause)
}
