package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fapdraft-backend/apperrors"
)

func fastConfig(attempts int) Config {
	return Config{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestDo(t *testing.T) {
	t.Run("should retry transient errors until success", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), fastConfig(3), func(context.Context) error {
			calls++
			if calls < 3 {
				return apperrors.Transient(errors.New("503"), "llm")
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("should stop immediately on a non transient error", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), fastConfig(5), func(context.Context) error {
			calls++
			return apperrors.Validation("bad input")
		})
		assert.ErrorIs(t, err, apperrors.ErrValidation)
		assert.Equal(t, 1, calls)
	})

	t.Run("should return the last error after exhausting attempts", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), fastConfig(2), func(context.Context) error {
			calls++
			return apperrors.Transient(errors.New("timeout"), "embedding")
		})
		assert.ErrorIs(t, err, apperrors.ErrTransient)
		assert.Equal(t, 2, calls)
	})

	t.Run("should honour custom retryable errors", func(t *testing.T) {
		sentinel := errors.New("busy")
		calls := 0
		_, err := DoWithResult(context.Background(), Config{MaxAttempts: 2, InitialDelay: time.Millisecond, Retryable: []error{sentinel}},
			func(context.Context) (int, error) {
				calls++
				return 0, sentinel
			})
		assert.ErrorIs(t, err, sentinel)
		assert.Equal(t, 2, calls)
	})
}
