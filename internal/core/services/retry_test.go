package services

import (
	"errors"
	"testing"
	"time"

	"estate-commission/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

var errLocked = errors.New("database is locked")

func fastRetrier(attempts uint) *retrier {
	r := newRetrier(attempts, discardLogger())
	r.initial = time.Millisecond
	return r
}

func TestRetrier_RecoversFromTransientErrors(t *testing.T) {
	calls := 0
	err := fastRetrier(3).do(bg, "write", func() error {
		calls++
		if calls < 3 {
			return errLocked
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetrier_GivesUpAfterAttempts(t *testing.T) {
	calls := 0
	err := fastRetrier(3).do(bg, "write", func() error {
		calls++
		return errLocked
	})

	assert.ErrorIs(t, err, domain.ErrTransientStorage)
	assert.Contains(t, err.Error(), "write")
	assert.Equal(t, 3, calls)
}

func TestRetrier_StopsOnPermanentError(t *testing.T) {
	calls := 0
	err := fastRetrier(3).do(bg, "write", func() error {
		calls++
		return domain.ErrInvalidState
	})

	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.NotErrorIs(t, err, domain.ErrTransientStorage)
	assert.Equal(t, 1, calls)
}

func TestRetrier_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	err := fastRetrier(0).do(bg, "write", func() error {
		calls++
		return errLocked
	})

	assert.ErrorIs(t, err, domain.ErrTransientStorage)
	assert.Equal(t, 1, calls)
}
