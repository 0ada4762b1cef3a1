package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"exportready-backend/internal/shared/metrics"
)

// Analyzer sends a prompt to an advisory text model and returns its raw reply.
type Analyzer interface {
	Analyze(ctx context.Context, prompt, systemPrompt string) (string, error)
}

// Func adapts a plain function to Analyzer.
type Func func(ctx context.Context, prompt, systemPrompt string) (string, error)

// Analyze calls f.
func (f Func) Analyze(ctx context.Context, prompt, systemPrompt string) (string, error) {
	return f(ctx, prompt, systemPrompt)
}

var (
	// ErrTimeout is returned when the analyzer does not answer within its deadline.
	ErrTimeout = errors.New("advisory analyzer timeout")
	// ErrServiceError covers transport failures and non-success provider responses.
	ErrServiceError = errors.New("advisory analyzer service error")
	// ErrNotConfigured is returned by Unconfigured.
	ErrNotConfigured = errors.New("advisory analyzer not configured")
)

// Unconfigured always fails so callers take their deterministic fallbacks.
type Unconfigured struct{}

// Analyze returns ErrNotConfigured.
func (Unconfigured) Analyze(ctx context.Context, prompt, systemPrompt string) (string, error) {
	return "", ErrNotConfigured
}

// Classify maps an arbitrary failure onto ErrTimeout or ErrServiceError.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrServiceError), errors.Is(err, ErrNotConfigured):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %v", ErrServiceError, err)
	}
}

// WithTimeout bounds every call to base by d.
func WithTimeout(base Analyzer, d time.Duration) Analyzer {
	if d <= 0 {
		return base
	}
	return Func(func(ctx context.Context, prompt, systemPrompt string) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		out, err := base.Analyze(ctx, prompt, systemPrompt)
		if err != nil {
			return "", Classify(err)
		}
		return out, nil
	})
}

// RateLimited waits on limiter before each call.
func RateLimited(base Analyzer, limiter *rate.Limiter) Analyzer {
	if limiter == nil {
		return base
	}
	return Func(func(ctx context.Context, prompt, systemPrompt string) (string, error) {
		if err := limiter.Wait(ctx); err != nil {
			if _, ok := ctx.Deadline(); ok && ctx.Err() == nil {
				// Wait refuses up front when the next token lands past the deadline.
				return "", fmt.Errorf("%w: %v", ErrTimeout, err)
			}
			return "", Classify(err)
		}
		return base.Analyze(ctx, prompt, systemPrompt)
	})
}

// Instrumented records the duration of each call.
func Instrumented(base Analyzer) Analyzer {
	return Func(func(ctx context.Context, prompt, systemPrompt string) (string, error) {
		start := time.Now()
		out, err := base.Analyze(ctx, prompt, systemPrompt)
		metrics.ObserveAdvisoryDurationMs(float64(time.Since(start).Microseconds()) / 1000.0)
		return out, err
	})
}
