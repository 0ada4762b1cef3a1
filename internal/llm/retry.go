package llm

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"exportready-backend/internal/shared/telemetry"
)

const retryBaseDelay = 300 * time.Millisecond

// Retrying retries a failed call once when the failure looks transient.
func Retrying(base Analyzer) Analyzer {
	return retrying{base: base, delay: retryBaseDelay}
}

type retrying struct {
	base  Analyzer
	delay time.Duration
}

func (r retrying) Analyze(ctx context.Context, prompt, systemPrompt string) (string, error) {
	out, err := r.base.Analyze(ctx, prompt, systemPrompt)
	if err == nil || !shouldRetry(err) {
		return out, err
	}

	telemetry.Warn("advisory.retry", map[string]any{
		"attempt": 1,
		"error":   err,
	})
	select {
	case <-time.After(r.delay):
	case <-ctx.Done():
		return "", Classify(ctx.Err())
	}
	return r.base.Analyze(ctx, prompt, systemPrompt)
}

func shouldRetry(err error) bool {
	if err == nil || errors.Is(err, ErrNotConfigured) {
		return false
	}
	// The caller's deadline is already spent; a second attempt would fail the same way.
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "status code: 5") || strings.Contains(msg, "server_error") || strings.Contains(msg, "status code: 429") {
		return true
	}
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "tls handshake timeout") ||
		strings.Contains(msg, "unexpected eof")
}
