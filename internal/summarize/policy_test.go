package summarize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/phrazzld/digest-api/internal/config"
)

func TestRetryPolicy_Delay(t *testing.T) {
	t.Parallel()

	p := DefaultRetryPolicy()
	assert.Equal(t, time.Duration(0), p.Delay(0))
	assert.Equal(t, 4*time.Second, p.Delay(1))
	assert.Equal(t, 8*time.Second, p.Delay(2))
	assert.Equal(t, 10*time.Second, p.Delay(3))
	assert.Equal(t, 10*time.Second, p.Delay(30))

	uncapped := RetryPolicy{BaseDelay: time.Second}
	assert.Equal(t, 4*time.Second, uncapped.Delay(3))
}

func TestPolicyFromConfig(t *testing.T) {
	t.Parallel()

	p := PolicyFromConfig(config.RetryConfig{
		MaxAttempts:    5,
		BaseDelay:      time.Second,
		MaxDelay:       3 * time.Second,
		AttemptTimeout: time.Minute,
	})
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, 3*time.Second, p.Delay(3))
	assert.Equal(t, time.Minute, p.AttemptTimeout)
}

func TestPolicyDelaysMatchConfigMaxDuration(t *testing.T) {
	t.Parallel()

	cfg := config.RetryConfig{
		MaxAttempts:    5,
		BaseDelay:      time.Second,
		MaxDelay:       3 * time.Second,
		AttemptTimeout: 10 * time.Second,
	}
	p := PolicyFromConfig(cfg)

	total := time.Duration(p.MaxAttempts) * p.AttemptTimeout
	for n := 1; n < p.MaxAttempts; n++ {
		total += p.Delay(n)
	}
	assert.Equal(t, total, cfg.MaxDuration())
}
