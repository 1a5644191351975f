package llm

import (
	"context"
	"errors"
	"net"
	"time"

	"grading-service/internal/models"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// RetryPolicy bounds a single logical model call
type RetryPolicy struct {
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// IsTransient reports whether err is a network failure, an attempt timeout or a 5xx answer
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *models.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// Call runs req against p. Every attempt gets its own deadline; only transient
// failures are retried, and never more than policy.MaxRetries times.
func Call(ctx context.Context, p Provider, req models.ChatRequest, policy RetryPolicy, logger *zap.Logger) (string, error) {
	var (
		out     string
		attempt int
	)

	op := func() error {
		attempt++

		actx := ctx
		if policy.Timeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, policy.Timeout)
			defer cancel()
		}

		res, err := p.Complete(actx, req)
		if err == nil {
			out = res
			return nil
		}

		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if !IsTransient(err) {
			return backoff.Permanent(err)
		}

		logger.Warn("Transient provider failure",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", policy.MaxRetries),
			zap.Error(err))
		return err
	}

	retries := policy.MaxRetries
	if retries < 0 {
		retries = 0
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(policy.RetryDelay), uint64(retries)),
		ctx,
	)

	if err := backoff.Retry(op, b); err != nil {
		return "", err
	}
	return out, nil
}
