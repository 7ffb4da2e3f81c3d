package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetrier(maxRetries int) *Retrier {
	return NewRetrier(RetryConfig{
		MaxRetries:      maxRetries,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		MaxElapsedTime:  time.Second,
	}, nil)
}

func TestRetrierRetriesOnDeadlock(t *testing.T) {
	r := fastRetrier(2)

	attempts := 0
	err := r.Retry(context.Background(), func() error {
		attempts++
		if attempts < 2 {
			return fmt.Errorf("lock wallet: %w", &pgconn.PgError{Code: pgErrDeadlock})
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetrierGivesUpAfterMaxRetries(t *testing.T) {
	r := fastRetrier(2)

	attempts := 0
	err := r.Retry(context.Background(), func() error {
		attempts++
		return &pgconn.PgError{Code: pgErrSerializationFailure}
	})

	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, pgErrSerializationFailure, pgErr.Code)
	assert.Equal(t, 3, attempts)
}

func TestRetrierStopsOnPermanentError(t *testing.T) {
	r := NewRetrier(DefaultRetryConfig(), nil)
	attempts := 0
	permanentErr := errors.New("permanent")

	err := r.Retry(context.Background(), func() error {
		attempts++
		return permanentErr
	})

	assert.ErrorIs(t, err, permanentErr)
	assert.Equal(t, 1, attempts)
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, isRetryableError(&pgconn.PgError{Code: pgErrDeadlock}))
	assert.True(t, isRetryableError(&pgconn.PgError{Code: pgErrLockNotAvailable}))
	assert.False(t, isRetryableError(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isRetryableError(errors.New("other")))
}
