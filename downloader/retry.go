package downloader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// maxBackoff caps the delay between attempts.
const maxBackoff = 30 * time.Second

// permanent marks an error that retrying cannot fix.
type permanent struct {
	err error
}

func (p *permanent) Error() string { return p.err.Error() }
func (p *permanent) Unwrap() error { return p.err }

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanent{err: err}
}

func isPermanent(err error) bool {
	var p *permanent
	return errors.As(err, &p)
}

// retry calls f until it succeeds, fails permanently, or has been called retries+1 times, sleeping with exponential
// backoff in between. It returns the number of calls made. Every attempt's error is kept.
func retry(ctx context.Context, retries int, backoff time.Duration, f func(attempt int) error) (int, error) {
	var result error
	attempts := 0
	for attempt := 0; attempt <= retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempts, multierror.Append(result, err)
		}
		attempts++
		err := f(attempt)
		if err == nil {
			return attempts, nil
		}
		result = multierror.Append(result, fmt.Errorf("attempt %d: %w", attempts, err))
		if isPermanent(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return attempts, result
		}
		if attempt < retries {
			sleep(ctx, backoffDelay(backoff, attempt))
		}
	}
	return attempts, result
}

// backoffDelay doubles base for each attempt, capped at maxBackoff. A zero base disables waiting.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base << attempt
	if d < base || d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
