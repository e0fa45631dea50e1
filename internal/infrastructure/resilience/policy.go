package resilience

import "time"

// Config tunes the retry and circuit breaker behaviour shared by the
// clamd, NATS and classifier clients. Zero values fall back to
// DefaultConfig, so callers only set what they want to override.
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

// DefaultConfig is tuned for the pipeline's dependencies: scans and
// publishes are short calls, so backoffs stay under a second while the
// breaker needs a real failure streak before opening.
func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 200 * time.Millisecond,
		RetryMaxBackoff:     800 * time.Millisecond,
		RetryMultiplier:     2.0,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

func (c Config) normalize() Config {
	def := DefaultConfig()

	c.RetryMaxAttempts = defaultIfNonPositive(c.RetryMaxAttempts, def.RetryMaxAttempts)
	c.RetryInitialBackoff = defaultIfZeroDur(c.RetryInitialBackoff, def.RetryInitialBackoff)
	c.RetryMaxBackoff = defaultIfZeroDur(c.RetryMaxBackoff, def.RetryMaxBackoff)
	if c.RetryMaxBackoff < c.RetryInitialBackoff {
		c.RetryMaxBackoff = c.RetryInitialBackoff
	}
	if c.RetryMultiplier < 1.0 {
		c.RetryMultiplier = def.RetryMultiplier
	}

	if c.BreakerMinRequests == 0 {
		c.BreakerMinRequests = def.BreakerMinRequests
	}
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		c.BreakerFailureRatio = def.BreakerFailureRatio
	}
	c.BreakerOpenTimeout = defaultIfZeroDur(c.BreakerOpenTimeout, def.BreakerOpenTimeout)
	if c.BreakerHalfOpenMaxCalls == 0 {
		c.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}

	return c
}

func defaultIfNonPositive(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func defaultIfZeroDur(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
