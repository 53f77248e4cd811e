package workflow

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ahmed123sa/whatsapp-auto/backend"
	"github.com/Ahmed123sa/whatsapp-auto/backend/backendtest"
)

func quietLogger() *log.Logger {
	l := log.New("workflow-test")
	l.SetOutput(io.Discard)
	return l
}

var group = backend.GroupHandle{ID: "g1@g.us"}

func TestPromoteWithRetry_SucceedsOnThirdAttempt(t *testing.T) {
	fake := backendtest.New()
	fake.PromoteFunc = func(_ backendtest.PromoteCall, attempt int) error {
		if attempt < 3 {
			return backend.ErrPromotionRejected
		}
		return nil
	}
	const pause = 30 * time.Millisecond
	p := NewPromoter(fake, 3, pause, quietLogger())

	start := time.Now()
	out := p.PromoteWithRetry(context.Background(), group, []string{"c@c.us"})
	elapsed := time.Since(start)

	assert.True(t, out.Succeeded)
	assert.Equal(t, 3, out.AttemptsUsed)
	assert.Equal(t, []string{"c@c.us"}, out.Targets)
	assert.GreaterOrEqual(t, elapsed, 2*pause)

	calls := fake.Promotes()
	require.Len(t, calls, 3)
	assert.GreaterOrEqual(t, calls[1].At.Sub(calls[0].At), pause)
	assert.GreaterOrEqual(t, calls[2].At.Sub(calls[1].At), pause)
}

func TestPromoteWithRetry_GivesUp(t *testing.T) {
	fake := backendtest.New()
	fake.PromoteFunc = func(backendtest.PromoteCall, int) error {
		return errors.New("not yet")
	}
	p := NewPromoter(fake, 4, time.Millisecond, quietLogger())

	out := p.PromoteWithRetry(context.Background(), group, []string{"d1@c.us", "d2@c.us"})
	assert.False(t, out.Succeeded)
	assert.Equal(t, 4, out.AttemptsUsed)
	assert.Len(t, fake.Promotes(), 4)
}

func TestPromoteWithRetry_FirstAttempt(t *testing.T) {
	fake := backendtest.New()
	p := NewPromoter(fake, 3, time.Hour, quietLogger())

	out := p.PromoteWithRetry(context.Background(), group, []string{"c@c.us"})
	assert.True(t, out.Succeeded)
	assert.Equal(t, 1, out.AttemptsUsed)
}

func TestPromoteWithRetry_NoTargets(t *testing.T) {
	fake := backendtest.New()
	p := NewPromoter(fake, 3, time.Millisecond, quietLogger())

	out := p.PromoteWithRetry(context.Background(), group, nil)
	assert.True(t, out.Succeeded)
	assert.Zero(t, out.AttemptsUsed)
	assert.Empty(t, fake.Promotes())
}

func TestNewPromoter_Defaults(t *testing.T) {
	p := NewPromoter(backendtest.New(), 0, -time.Second, quietLogger())
	assert.Equal(t, DefaultPromotionAttempts, p.maxAttempts)
	assert.Zero(t, p.backoff)
}
