// Package workflow provisions client groups on the messaging backend.
package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/Ahmed123sa/whatsapp-auto/backend"
	"github.com/Ahmed123sa/whatsapp-auto/metrics"
	"github.com/Ahmed123sa/whatsapp-auto/model"
	"github.com/Ahmed123sa/whatsapp-auto/phone"
)

// Backend is the part of the messaging backend the engine uses.
type Backend interface {
	PromotionBackend
	CreateGroup(ctx context.Context, label string, participants []string, opts *backend.CreateOptions) (*backend.GroupHandle, error)
	SendMessage(ctx context.Context, group backend.GroupHandle, text string) error
	GetGroupInfo(ctx context.Context, group backend.GroupHandle) (*model.GroupInfo, error)
}

// SessionReader reports backend readiness.
type SessionReader interface {
	Ready() bool
}

// RecordAppender persists provisioned groups.
type RecordAppender interface {
	AppendRecord(ctx context.Context, record model.GroupRecord) error
}

// Normalizer turns raw phone input into international digits.
type Normalizer interface {
	Normalize(raw string) string
}

// Options configures an Engine. Owner and Designers are phone numbers.
type Options struct {
	Owner             string
	Designers         []string
	SettleDelay       time.Duration
	PromotionAttempts int
	PromotionBackoff  time.Duration
	// CreateOptions are sent with the first creation call. When CreateFallback is set
	// and that call is rejected, creation is retried once without them.
	CreateOptions   *backend.CreateOptions
	CreateFallback  bool
	WelcomeTemplate string
}

// Engine runs provisioning workflows. Each call to Provision is independent;
// follow-up work continues in the background after Provision returns.
type Engine struct {
	backend  Backend
	session  SessionReader
	records  RecordAppender
	phones   Normalizer
	promoter *Promoter
	logger   *log.Logger
	opts     Options

	ownerNumber     string
	designerNumbers []string

	wg  sync.WaitGroup
	now func() time.Time
}

// NewEngine returns an engine. The owner and designer numbers are normalized once here.
func NewEngine(b Backend, s SessionReader, records RecordAppender, phones Normalizer, opts Options, logger *log.Logger) *Engine {
	e := &Engine{
		backend:     b,
		session:     s,
		records:     records,
		phones:      phones,
		promoter:    NewPromoter(b, opts.PromotionAttempts, opts.PromotionBackoff, logger),
		logger:      logger,
		opts:        opts,
		ownerNumber: phones.Normalize(opts.Owner),
		now:         time.Now,
	}
	for _, d := range opts.Designers {
		if n := phones.Normalize(d); n != "" {
			e.designerNumbers = append(e.designerNumbers, n)
		}
	}
	return e
}

// Provision validates req, creates the group and returns as soon as the backend
// confirmed it. Promotion, the welcome message and the record are handled afterwards
// and never affect the returned result.
func (e *Engine) Provision(ctx context.Context, req model.GroupProvisionRequest) (result *model.ProvisionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Errorf("provisioning panicked: %v", r)
			result, err = nil, internalError(fmt.Sprint(r))
		}
		if err != nil {
			metrics.Provisions.WithLabelValues(string(KindOf(err))).Inc()
		} else {
			metrics.Provisions.WithLabelValues("success").Inc()
		}
	}()

	contact := strings.TrimSpace(req.ClientContact)
	label := strings.TrimSpace(req.GroupLabel)
	if contact == "" {
		return nil, missingInput("phone", "Phone number is required")
	}
	if label == "" {
		return nil, missingInput("groupName", "Group name is required")
	}
	if !e.session.Ready() {
		return nil, backendNotReady()
	}

	clientNumber := e.phones.Normalize(contact)
	if clientNumber == "" {
		return nil, missingInput("phone", "Phone number must contain digits")
	}
	owner := phone.Identity(e.ownerNumber)
	set := model.NewParticipantSet(owner, phone.Identity(clientNumber), identities(e.designerNumbers))
	if owner == "" || !set.Contains(owner) {
		e.logger.Errorf("owner %q has no usable phone number", e.opts.Owner)
		return nil, internalError("owner has no usable phone number")
	}
	if set.Size() < 2 {
		return nil, insufficientParticipants(set.Size())
	}

	runID := uuid.NewString()
	e.logger.Infof("[%s] creating group %q with %d participants", runID, label, set.Size())
	handle, err := e.createGroup(ctx, runID, label, set.Members)
	if err != nil {
		e.logger.Errorf("[%s] fail to create group %q, err: %s", runID, label, err)
		return nil, groupCreationFailed(err)
	}
	if handle == nil || strings.TrimSpace(handle.ID) == "" {
		e.logger.Errorf("[%s] backend returned no group id for %q", runID, label)
		return nil, groupCreationFailed(errors.New("backend returned no group id"))
	}
	e.logger.Infof("[%s] group %q created as %s", runID, label, handle.ID)

	e.spawn(followUp{
		runID:   runID,
		group:   *handle,
		label:   label,
		set:     set,
		contact: contact,
		created: e.now(),
	})

	return &model.ProvisionResult{
		Success:   true,
		Message:   "Group created successfully",
		GroupID:   handle.ID,
		GroupName: label,
		Participants: model.ParticipantBreakdown{
			Admin:     e.ownerNumber,
			Client:    clientNumber,
			Designers: append([]string{}, e.designerNumbers...),
		},
	}, nil
}

func (e *Engine) createGroup(ctx context.Context, runID, label string, members []string) (*backend.GroupHandle, error) {
	handle, err := e.backend.CreateGroup(ctx, label, members, e.opts.CreateOptions)
	if err == nil || !e.opts.CreateFallback || e.opts.CreateOptions == nil || !errors.Is(err, backend.ErrCreateRejected) {
		return handle, err
	}
	e.logger.Warnf("[%s] group creation with options rejected, retrying without options, err: %s", runID, err)
	metrics.CreateFallbacks.Inc()
	handle, err = e.backend.CreateGroup(ctx, label, members, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create group without options")
	}
	return handle, nil
}

// Wait blocks until all background follow-up work finished or ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func identities(numbers []string) []string {
	out := make([]string, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, phone.Identity(n))
	}
	return out
}
