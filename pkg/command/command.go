package command

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

// Command is an outbound mutation with a stable idempotency key. The
// key stays the same across retries, so the backend can collapse
// duplicate deliveries of the same user action.
type Command struct {
	// Key is the idempotency key, generated once per user action.
	Key string
	// Retries is the number of re-attempts after the first failure.
	Retries uint64
	// Base is the initial backoff delay; doubles per attempt.
	Base time.Duration
	// Permanent reports errors that must not be retried (auth
	// failures, validation rejections).
	Permanent func(error) bool
}

// New returns a command with the default bounded-backoff policy.
func New() Command {
	return Command{
		Key:     uuid.NewString(),
		Retries: 3,
		Base:    500 * time.Millisecond,
	}
}

// Once returns a single-attempt command for fire-and-forget callers.
func Once() Command {
	return Command{Key: uuid.NewString()}
}

// Run executes fn under the command's retry policy.
func (c Command) Run(ctx context.Context, fn func(context.Context) error) error {
	if c.Retries == 0 {
		return fn(ctx)
	}

	base := c.Base
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	b := retry.WithMaxRetries(c.Retries, retry.NewExponential(base))

	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if c.Permanent != nil && c.Permanent(err) {
			return err
		}
		return retry.RetryableError(err)
	})
}
