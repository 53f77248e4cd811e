// Package backendtest provides an in-memory backend.Client for tests.
package backendtest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ahmed123sa/whatsapp-auto/backend"
	"github.com/Ahmed123sa/whatsapp-auto/model"
)

var _ backend.Client = (*Fake)(nil)

// CreateCall records one CreateGroup invocation.
type CreateCall struct {
	Label        string
	Participants []string
	Options      *backend.CreateOptions
}

// PromoteCall records one PromoteParticipants invocation.
type PromoteCall struct {
	Group      string
	Identities []string
	At         time.Time
}

// Fake is a scriptable backend. Hooks left nil succeed.
type Fake struct {
	// CreateFunc overrides group creation.
	CreateFunc func(call CreateCall) (*backend.GroupHandle, error)
	// PromoteFunc overrides promotion; attempt counts calls for the same identities from 1.
	PromoteFunc func(call PromoteCall, attempt int) error
	SendFunc    func(group, text string) error
	InfoFunc    func(group string) (*model.GroupInfo, error)
	ConnectFunc func() error

	// PromoteDelay and SendDelay slow down the deferred calls.
	PromoteDelay time.Duration
	SendDelay    time.Duration

	mu           sync.Mutex
	creates      []CreateCall
	promotes     []PromoteCall
	messages     map[string][]string
	infoCalls    int
	connects     int
	attemptsByID map[string]int
	events       chan backend.Event
}

func New() *Fake {
	return &Fake{
		messages:     make(map[string][]string),
		attemptsByID: make(map[string]int),
		events:       make(chan backend.Event, 64),
	}
}

// Emit pushes a lifecycle event to subscribers of Events.
func (f *Fake) Emit(ev backend.Event) {
	f.events <- ev
}

func (f *Fake) Connect(context.Context) error {
	f.mu.Lock()
	f.connects++
	hook := f.ConnectFunc
	f.mu.Unlock()
	if hook != nil {
		return hook()
	}
	return nil
}

func (f *Fake) Events() <-chan backend.Event {
	return f.events
}

func (f *Fake) CreateGroup(_ context.Context, label string, participants []string, opts *backend.CreateOptions) (*backend.GroupHandle, error) {
	call := CreateCall{Label: label, Participants: append([]string(nil), participants...), Options: opts}
	f.mu.Lock()
	f.creates = append(f.creates, call)
	f.mu.Unlock()
	if f.CreateFunc != nil {
		return f.CreateFunc(call)
	}
	return &backend.GroupHandle{ID: uuid.NewString() + "@g.us"}, nil
}

func (f *Fake) PromoteParticipants(ctx context.Context, group backend.GroupHandle, identities []string) error {
	if err := sleep(ctx, f.PromoteDelay); err != nil {
		return err
	}
	call := PromoteCall{Group: group.ID, Identities: append([]string(nil), identities...), At: time.Now()}
	key := group.ID + "|" + strings.Join(identities, ",")
	f.mu.Lock()
	f.promotes = append(f.promotes, call)
	f.attemptsByID[key]++
	attempt := f.attemptsByID[key]
	f.mu.Unlock()
	if f.PromoteFunc != nil {
		return f.PromoteFunc(call, attempt)
	}
	return nil
}

func (f *Fake) SendMessage(ctx context.Context, group backend.GroupHandle, text string) error {
	if err := sleep(ctx, f.SendDelay); err != nil {
		return err
	}
	if f.SendFunc != nil {
		if err := f.SendFunc(group.ID, text); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.messages[group.ID] = append(f.messages[group.ID], text)
	f.mu.Unlock()
	return nil
}

func (f *Fake) GetGroupInfo(_ context.Context, group backend.GroupHandle) (*model.GroupInfo, error) {
	f.mu.Lock()
	f.infoCalls++
	f.mu.Unlock()
	if f.InfoFunc != nil {
		return f.InfoFunc(group.ID)
	}
	return &model.GroupInfo{ID: group.ID}, nil
}

func (f *Fake) Close() error {
	return nil
}

// Creates returns the recorded CreateGroup calls.
func (f *Fake) Creates() []CreateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CreateCall(nil), f.creates...)
}

// Promotes returns the recorded PromoteParticipants calls.
func (f *Fake) Promotes() []PromoteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PromoteCall(nil), f.promotes...)
}

// Messages returns the texts sent to group.
func (f *Fake) Messages(group string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages[group]...)
}

// InfoCalls returns how many times GetGroupInfo was called.
func (f *Fake) InfoCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.infoCalls
}

// Connects returns how many times Connect was called.
func (f *Fake) Connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

// Calls returns the total number of group operations made.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.creates) + len(f.promotes) + f.infoCalls
	for _, m := range f.messages {
		n += len(m)
	}
	return n
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
