package flow

import (
	"context"

	"github.com/kbukum/flowkit/resilience"
)

// WithSetupRetry retries stage's setup hook with exponential backoff.
// Processing is never retried.
func WithSetupRetry(stage Stage, cfg resilience.RetryConfig) Stage {
	return &retryStage{inner: stage, cfg: cfg}
}

type retryStage struct {
	inner Stage
	cfg   resilience.RetryConfig
}

func (s *retryStage) Setup(ctx context.Context) error {
	return resilience.RetryFunc(ctx, s.cfg, func() error {
		return forwardSetup(ctx, s.inner)
	})
}

func (s *retryStage) Teardown(ctx context.Context) error { return forwardTeardown(ctx, s.inner) }

func (s *retryStage) Process(ctx context.Context, in Input) (Sequence, error) {
	return s.inner.Process(ctx, in)
}

// WithRateLimit paces the stage's sequences: every pull waits for a token
// from limiter first. The limiter is shared by all invocations.
func WithRateLimit(stage Stage, limiter *resilience.RateLimiter) Stage {
	return &rateLimitedStage{inner: stage, limiter: limiter}
}

type rateLimitedStage struct {
	inner   Stage
	limiter *resilience.RateLimiter
}

func (s *rateLimitedStage) Setup(ctx context.Context) error { return forwardSetup(ctx, s.inner) }

func (s *rateLimitedStage) Teardown(ctx context.Context) error { return forwardTeardown(ctx, s.inner) }

func (s *rateLimitedStage) Process(ctx context.Context, in Input) (Sequence, error) {
	seq, err := s.inner.Process(ctx, in)
	if err != nil || seq == nil {
		return seq, err
	}
	return &pacedSeq{inner: seq, limiter: s.limiter}, nil
}

type pacedSeq struct {
	inner   Sequence
	limiter *resilience.RateLimiter
}

func (s *pacedSeq) Next(ctx context.Context) (Emission, bool, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return Emission{}, false, err
	}
	return s.inner.Next(ctx)
}

func (s *pacedSeq) Close() error { return s.inner.Close() }
