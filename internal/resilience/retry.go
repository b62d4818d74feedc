package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"promptrelay/internal/domain"
	"promptrelay/internal/telemetry"
	"promptrelay/internal/transport"
)

// RetryConfig bounds the delivery budget for a single request
type RetryConfig struct {
	MaxAttempts        int
	PerAttemptTimeout  time.Duration
	BackoffBase        time.Duration
	NetworkBackoffBase time.Duration
	JitterMax          time.Duration
}

// DefaultRetryConfig returns the standard delivery budget
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:        3,
		PerAttemptTimeout:  30 * time.Second,
		BackoffBase:        500 * time.Millisecond,
		NetworkBackoffBase: 1500 * time.Millisecond,
		JitterMax:          time.Second,
	}
}

// RunResult reports what a delivery run produced
type RunResult struct {
	Text     string
	Attempts int
}

// ExhaustedError means every attempt across every transport failed.
// It carries the classification of the last failure so callers can
// word their fallback.
type ExhaustedError struct {
	Attempts       int
	Classification domain.ErrorClassification
	Err            error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d attempts failed (%s): %v", e.Attempts, e.Classification.Kind, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Runner drives a request through the transports until one succeeds or
// the attempt budget is exhausted. Every transport is tried within each
// attempt, in order, under a shared per-attempt deadline.
type Runner struct {
	transports []transport.Executor
	cfg        RetryConfig
	metrics    *telemetry.Metrics

	// after is swapped out in tests to avoid real sleeps
	after func(time.Duration) <-chan time.Time
}

// NewRunner builds a Runner over the given transports. Order matters:
// earlier transports are preferred within each attempt.
func NewRunner(cfg RetryConfig, transports ...transport.Executor) *Runner {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Runner{
		transports: transports,
		cfg:        cfg,
		after:      time.After,
	}
}

// SetMetrics attaches per-transport attempt counters
func (r *Runner) SetMetrics(m *telemetry.Metrics) {
	r.metrics = m
}

// Run executes the request until a transport returns text or the budget
// runs out. Classification never shortens the budget: auth and quota
// failures burn attempts like any other.
func (r *Runner) Run(ctx context.Context, req domain.CompletionRequest, endpoint transport.Endpoint) (RunResult, error) {
	if len(r.transports) == 0 {
		return RunResult{}, fmt.Errorf("no transports configured")
	}

	var lastErr error
	var lastClass domain.ErrorClassification

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		text, err := r.runAttempt(ctx, req, endpoint)
		if err == nil {
			return RunResult{Text: text, Attempts: attempt}, nil
		}

		lastErr = err
		lastClass = Classify(err)
		slog.Warn("Delivery attempt failed",
			"attempt", attempt,
			"max_attempts", r.cfg.MaxAttempts,
			"classification", lastClass.Kind,
			"error", err)

		if ctx.Err() != nil {
			return RunResult{Attempts: attempt}, ctx.Err()
		}

		if attempt < r.cfg.MaxAttempts {
			select {
			case <-r.after(r.backoffFor(attempt, lastClass)):
			case <-ctx.Done():
				return RunResult{Attempts: attempt}, ctx.Err()
			}
		}
	}

	return RunResult{Attempts: r.cfg.MaxAttempts}, &ExhaustedError{
		Attempts:       r.cfg.MaxAttempts,
		Classification: lastClass,
		Err:            lastErr,
	}
}

// runAttempt tries every transport once under a shared deadline. The
// deadline is scoped here so each attempt starts with a fresh budget.
func (r *Runner) runAttempt(ctx context.Context, req domain.CompletionRequest, endpoint transport.Endpoint) (string, error) {
	attemptCtx := ctx
	cancel := context.CancelFunc(func() {})
	if r.cfg.PerAttemptTimeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, r.cfg.PerAttemptTimeout)
	}
	defer cancel()

	var lastErr error
	for _, t := range r.transports {
		text, err := t.Execute(attemptCtx, req, endpoint)
		if err == nil {
			r.recordAttempt(t.Name(), "success")
			return text, nil
		}

		lastErr = err
		r.recordAttempt(t.Name(), "failure")
		slog.Warn("Transport delivery failed", "transport", t.Name(), "error", err)

		if attemptCtx.Err() != nil {
			// The shared deadline is burned; the next transport
			// would fail instantly for the same reason.
			break
		}
	}

	if attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		// Rewrite rather than wrap: the transport's own text would
		// otherwise pull classification toward NETWORK.
		slog.Warn("Attempt deadline exceeded", "timeout", r.cfg.PerAttemptTimeout, "last_error", lastErr)
		return "", fmt.Errorf("request timeout after %s", r.cfg.PerAttemptTimeout)
	}

	return "", lastErr
}

// backoffFor computes the pause after a failed attempt: linear in the
// attempt number, with a larger base for network-class failures and up
// to JitterMax of random smear.
func (r *Runner) backoffFor(attempt int, class domain.ErrorClassification) time.Duration {
	base := r.cfg.BackoffBase
	if class.Kind == domain.FailureNetwork {
		base = r.cfg.NetworkBackoffBase
	}

	backoff := base * time.Duration(attempt)
	if r.cfg.JitterMax > 0 {
		backoff += time.Duration(rand.Int63n(int64(r.cfg.JitterMax)))
	}
	return backoff
}

func (r *Runner) recordAttempt(transportName, outcome string) {
	if r.metrics != nil {
		r.metrics.RecordTransportAttempt(transportName, outcome)
	}
}
