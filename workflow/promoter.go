package workflow

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/labstack/gommon/log"

	"github.com/Ahmed123sa/whatsapp-auto/backend"
	"github.com/Ahmed123sa/whatsapp-auto/metrics"
	"github.com/Ahmed123sa/whatsapp-auto/model"
)

const (
	DefaultPromotionAttempts = 3
	DefaultPromotionBackoff  = 3 * time.Second
)

// PromotionBackend grants admin privileges in a group.
type PromotionBackend interface {
	PromoteParticipants(ctx context.Context, group backend.GroupHandle, identities []string) error
}

// Promoter grants admin with a bounded number of attempts and a fixed pause between them.
// Newly created groups take a while to propagate, so early attempts are expected to fail.
type Promoter struct {
	backend     PromotionBackend
	maxAttempts int
	backoff     time.Duration
	logger      *log.Logger
}

func NewPromoter(b PromotionBackend, maxAttempts int, backoff time.Duration, logger *log.Logger) *Promoter {
	if maxAttempts < 1 {
		maxAttempts = DefaultPromotionAttempts
	}
	if backoff < 0 {
		backoff = 0
	}
	return &Promoter{
		backend:     b,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		logger:      logger,
	}
}

// PromoteWithRetry promotes targets in group. Failures are reported in the outcome, never returned.
func (p *Promoter) PromoteWithRetry(ctx context.Context, group backend.GroupHandle, targets []string) model.PromotionOutcome {
	outcome := model.PromotionOutcome{Targets: append([]string(nil), targets...)}
	if len(targets) == 0 {
		outcome.Succeeded = true
		return outcome
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		outcome.AttemptsUsed++
		err := p.backend.PromoteParticipants(ctx, group, targets)
		if err != nil {
			p.logger.Warnf("promotion attempt %d/%d in %s for %v failed, err: %s",
				outcome.AttemptsUsed, p.maxAttempts, group.ID, targets, err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(p.backoff)),
		backoff.WithMaxTries(uint(p.maxAttempts)),
		backoff.WithMaxElapsedTime(0),
	)
	outcome.Succeeded = err == nil
	if outcome.Succeeded {
		metrics.PromotionAttempts.WithLabelValues("success").Observe(float64(outcome.AttemptsUsed))
		p.logger.Infof("promoted %v in %s after %d attempt(s)", targets, group.ID, outcome.AttemptsUsed)
	} else {
		metrics.PromotionAttempts.WithLabelValues("failure").Observe(float64(outcome.AttemptsUsed))
		p.logger.Errorf("gave up promoting %v in %s after %d attempt(s), err: %s", targets, group.ID, outcome.AttemptsUsed, err)
	}
	return outcome
}
