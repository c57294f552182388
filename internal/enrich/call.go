package enrich

import (
	"context"
	"time"

	"github.com/sells-group/lead-enrichment/internal/ratelimit"
	"github.com/sells-group/lead-enrichment/internal/resilience"
)

// call issues one quota-constrained request. Each attempt waits for the
// limiter, runs under its own timeout and the service's breaker. A throttled
// attempt is retried once after the limiter's backoff; a second throttle is
// returned to the caller.
func call[T any](ctx context.Context, o *Orchestrator, service, op string, lim *ratelimit.Limiter, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	logRetry := resilience.RetryLogger(service, op)
	cfg := resilience.ThrottleRetryConfig(func(int) time.Duration { return lim.ExtraDelay() })
	cfg.OnRetry = func(attempt int, err error) {
		lim.Increment429()
		logRetry(attempt, err)
	}

	val, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (T, error) {
		if err := lim.WaitIfNeeded(ctx); err != nil {
			var zero T
			return zero, err
		}
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return resilience.ExecuteVal(callCtx, o.deps.Breakers.Get(service), fn)
	})
	switch {
	case err == nil:
		lim.Reset429()
	case resilience.IsThrottled(err):
		lim.Increment429()
	}
	return val, err
}
