package summarize

import (
	"time"

	"github.com/phrazzld/digest-api/internal/config"
)

// RetryPolicy bounds the calls made for one summarization.
type RetryPolicy struct {
	// MaxAttempts counts the first call.
	MaxAttempts int
	// BaseDelay is the wait before the first retry; each later retry waits
	// twice as long as the one before, up to MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// AttemptTimeout bounds each backend call.
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy is three attempts, waiting 4s then 8s, with a 30s
// timeout per call.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		BaseDelay:      4 * time.Second,
		MaxDelay:       10 * time.Second,
		AttemptTimeout: 30 * time.Second,
	}
}

// PolicyFromConfig builds a RetryPolicy from configuration.
func PolicyFromConfig(cfg config.RetryConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    cfg.MaxAttempts,
		BaseDelay:      cfg.BaseDelay,
		MaxDelay:       cfg.MaxDelay,
		AttemptTimeout: cfg.AttemptTimeout,
	}
}

// Delay returns the wait before retry n, where n=1 is the first retry.
// Delay = min(BaseDelay * 2^(n-1), MaxDelay).
func (p RetryPolicy) Delay(n int) time.Duration {
	if n < 1 || p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < n; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}
