package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stemsi/tolcsim-backend/internal/repository"
)

// Domain errors. Handlers map each of these to one response code.
var (
	ErrSessionNotFound    = errors.New("exam session not found")
	ErrSectionNotFound    = errors.New("section not found in session")
	ErrInvalidState       = errors.New("transition not allowed in current state")
	ErrValidation         = errors.New("malformed submission")
	ErrNotCompleted       = errors.New("exam session is not completed yet")
	ErrForbidden          = errors.New("exam session belongs to another user")
	ErrUnknownExamType    = errors.New("unknown exam type")
	ErrStorage            = errors.New("storage backend error")
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
)

// storageError classifies an error coming out of a store call.
func storageError(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrVersionConflict):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled), ctx.Err() != nil:
		return fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
	default:
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
}

// isPermanent reports errors that a retry cannot fix.
func isPermanent(ctx context.Context, err error) bool {
	return errors.Is(err, repository.ErrNotFound) ||
		errors.Is(err, repository.ErrVersionConflict) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		ctx.Err() != nil
}

// retryStorage runs op with exponential backoff on transient errors. The
// request context bounds the total time spent.
func retryStorage(ctx context.Context, maxRetries int, op func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 50 * time.Millisecond
	eb.MaxInterval = 500 * time.Millisecond
	eb.MaxElapsedTime = 0

	var policy backoff.BackOff = eb
	if maxRetries >= 0 {
		policy = backoff.WithMaxRetries(eb, uint64(maxRetries))
	}

	err := backoff.Retry(func() error {
		err := op()
		if err != nil && isPermanent(ctx, err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(policy, ctx))

	return storageError(ctx, err)
}
