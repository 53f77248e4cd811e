package workflow

import (
	"context"
	"time"

	"github.com/Ahmed123sa/whatsapp-auto/backend"
	"github.com/Ahmed123sa/whatsapp-auto/metrics"
	"github.com/Ahmed123sa/whatsapp-auto/model"
)

// followUp is the best-effort work left after a group was created.
type followUp struct {
	runID   string
	group   backend.GroupHandle
	label   string
	set     model.ParticipantSet
	contact string
	created time.Time
}

// spawn runs f in the background. It shares nothing with the request that created it.
func (e *Engine) spawn(f followUp) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				metrics.DeferredFailures.WithLabelValues("panic").Inc()
				e.logger.Errorf("[%s] follow-up panicked: %v", f.runID, r)
			}
		}()
		e.runFollowUp(context.Background(), f)
	}()
}

func (e *Engine) runFollowUp(ctx context.Context, f followUp) {
	if e.opts.SettleDelay > 0 {
		time.Sleep(e.opts.SettleDelay)
	}

	if f.set.Client != f.set.Owner {
		if out := e.promoter.PromoteWithRetry(ctx, f.group, []string{f.set.Client}); !out.Succeeded {
			metrics.DeferredFailures.WithLabelValues("promote_client").Inc()
		}
	}
	if targets := f.set.RosterTargets(); len(targets) > 0 {
		if out := e.promoter.PromoteWithRetry(ctx, f.group, targets); !out.Succeeded {
			metrics.DeferredFailures.WithLabelValues("promote_roster").Inc()
		}
	}
	e.verifyAdmins(ctx, f)

	if err := e.backend.SendMessage(ctx, f.group, RenderWelcome(e.opts.WelcomeTemplate, f.label)); err != nil {
		metrics.DeferredFailures.WithLabelValues("welcome").Inc()
		e.logger.Errorf("[%s] fail to send welcome message to %s, err: %s", f.runID, f.group.ID, err)
	} else {
		e.logger.Infof("[%s] welcome message sent to %s", f.runID, f.group.ID)
	}

	record := model.GroupRecord{
		GroupID:       f.group.ID,
		GroupLabel:    f.label,
		Participants:  f.set,
		ClientContact: f.contact,
		CreatedAt:     f.created,
	}
	if err := e.records.AppendRecord(ctx, record); err != nil {
		metrics.DeferredFailures.WithLabelValues("record").Inc()
		e.logger.Errorf("[%s] fail to save record for %s, err: %s", f.runID, f.group.ID, err)
		return
	}
	e.logger.Infof("[%s] record saved for %s", f.runID, f.group.ID)
}

// verifyAdmins logs members other than the owner that still lack admin.
func (e *Engine) verifyAdmins(ctx context.Context, f followUp) {
	info, err := e.backend.GetGroupInfo(ctx, f.group)
	if err != nil {
		e.logger.Warnf("[%s] fail to read roster of %s, err: %s", f.runID, f.group.ID, err)
		return
	}
	var missing []string
	for _, id := range info.NonAdmins() {
		if id != f.set.Owner {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		e.logger.Warnf("[%s] members without admin in %s: %v", f.runID, f.group.ID, missing)
		return
	}
	e.logger.Debugf("[%s] all members of %s are admins", f.runID, f.group.ID)
}
