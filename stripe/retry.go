package stripe

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.vocdoni.io/dvote/log"
)

// retry runs op until it succeeds, fails with a non temporary error or the
// retry budget is spent. stripe-go runs with its own retries disabled so
// this is the only retry layer.
func (c *Client) retry(ctx context.Context, operation string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.RetryInterval
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	attempt := 0
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !IsTemporaryError(err) {
			return backoff.Permanent(err)
		}
		attempt++
		if uint64(attempt) > c.config.MaxRetries {
			return backoff.Permanent(err)
		}
		c.metrics.ObserveRetry("stripe", operation)
		log.Warnw("temporary stripe error, retrying",
			"operation", operation,
			"attempt", attempt,
			"error", err.Error())
		return err
	}, backoff.WithContext(b, ctx))
}
