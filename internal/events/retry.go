package events

import (
	"context"
	"time"
)

// RetryPolicy bounds the retries of a failing sink write.
type RetryPolicy struct {
	// MaxRetries is the number of attempts after the first. Zero disables retries.
	MaxRetries int

	// BaseDelay is the wait before the first retry; it doubles each time.
	BaseDelay time.Duration

	// MaxDelay caps the wait between retries.
	MaxDelay time.Duration
}

// DefaultRetryPolicy retries twice, starting at 10ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, BaseDelay: 10 * time.Millisecond, MaxDelay: 200 * time.Millisecond}
}

type retrySink struct {
	next   Sink
	policy RetryPolicy
	sleep  func(ctx context.Context, d time.Duration) error
}

// WithRetry wraps next so that Write is retried with exponential backoff.
// Close is passed through without retries.
func WithRetry(next Sink, policy RetryPolicy) Sink {
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = time.Millisecond
	}
	if policy.MaxDelay < policy.BaseDelay {
		policy.MaxDelay = policy.BaseDelay
	}
	return &retrySink{next: next, policy: policy, sleep: sleepCtx}
}

func (s *retrySink) Name() string {
	return "retry(" + s.next.Name() + ")"
}

func (s *retrySink) Write(ctx context.Context, payload []byte) error {
	err := s.next.Write(ctx, payload)
	delay := s.policy.BaseDelay
	for attempt := 0; err != nil && attempt < s.policy.MaxRetries; attempt++ {
		if serr := s.sleep(ctx, delay); serr != nil {
			return serr
		}
		err = s.next.Write(ctx, payload)
		delay *= 2
		if delay > s.policy.MaxDelay {
			delay = s.policy.MaxDelay
		}
	}
	return err
}

func (s *retrySink) Close(ctx context.Context) error {
	return s.next.Close(ctx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
