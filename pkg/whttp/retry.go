package whttp

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryPolicy is the retry behaviour shared by every outbound client:
// a bounded number of attempts with linear backoff.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration

	// RetryRateLimited treats 429 like any other retryable status. Services
	// whose callers surface rate limiting to the user leave it off.
	RetryRateLimited bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond}
}

// Delay is the pause before retry number attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.BaseDelay * time.Duration(attempt)
}

// Backoff satisfies retryablehttp.Backoff. retryablehttp counts attempts
// from zero, so the first retry waits one BaseDelay.
func (p RetryPolicy) Backoff(_, _ time.Duration, attemptNum int, _ *http.Response) time.Duration {
	return p.Delay(attemptNum + 1)
}

// CheckRetry satisfies retryablehttp.CheckRetry. Transport errors and
// unexpected statuses are retried; accepted statuses, and 429 unless
// RetryRateLimited is set, are returned to the caller as-is.
func (p RetryPolicy) CheckRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if p.RetryRateLimited && IsRateLimited(resp.StatusCode) {
		return true, nil
	}
	return IsRetryableStatus(resp.StatusCode), nil
}

// IsAccepted reports whether status counts as a successful response.
// Redirect statuses are accepted as they are.
func IsAccepted(status int) bool {
	return (status >= 200 && status < 300) || status == http.StatusMovedPermanently || status == http.StatusFound
}

func IsRateLimited(status int) bool {
	return status == http.StatusTooManyRequests
}

func IsRetryableStatus(status int) bool {
	return !IsAccepted(status) && !IsRateLimited(status)
}

// LeveledLogger mirrors retryablehttp.LeveledLogger.
type LeveledLogger interface {
	Error(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// logrusAdapter feeds retryablehttp's chatter into logrus. Everything is
// demoted to debug: a retry is routine, and the final failure is reported by
// the caller.
type logrusAdapter struct {
	log *logrus.Logger
}

func NewLogrusAdapter(log *logrus.Logger) LeveledLogger {
	return logrusAdapter{log: log}
}

func (l logrusAdapter) entry(keysAndValues []interface{}) *logrus.Entry {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if k, ok := keysAndValues[i].(string); ok {
			fields[k] = keysAndValues[i+1]
		}
	}
	return l.log.WithFields(fields)
}

func (l logrusAdapter) Error(msg string, kv ...interface{}) { l.entry(kv).Debug(msg) }
func (l logrusAdapter) Info(msg string, kv ...interface{})  { l.entry(kv).Debug(msg) }
func (l logrusAdapter) Debug(msg string, kv ...interface{}) { l.entry(kv).Debug(msg) }
func (l logrusAdapter) Warn(msg string, kv ...interface{})  { l.entry(kv).Debug(msg) }
