// Package backend defines the capability the provisioner needs from the messaging
// backend and a gateway implementation of it.
package backend

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Ahmed123sa/whatsapp-auto/model"
)

var (
	// ErrBackendUnavailable is returned when the backend session is not ready.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrCreateRejected is returned when the backend refuses to create a group.
	ErrCreateRejected = errors.New("group creation rejected")
	// ErrPromotionRejected is returned when the backend refuses a privilege change.
	ErrPromotionRejected = errors.New("promotion rejected")
)

// EventType names a session lifecycle notification.
type EventType string

const (
	EventPairingChallenge EventType = "qr"
	EventAuthenticated    EventType = "authenticated"
	EventReady            EventType = "ready"
	EventAuthFailed       EventType = "auth_failure"
	EventDisconnected     EventType = "disconnected"
)

// Event is a lifecycle notification. Data holds the pairing challenge for
// EventPairingChallenge, the session identity for EventReady and a reason otherwise.
// Conn identifies the subscription that delivered the event. It grows with every
// Connect and is zero for clients that do not track subscriptions.
type Event struct {
	Type EventType `json:"type"`
	Data string    `json:"data,omitempty"`
	Conn uint64    `json:"-"`
}

// GroupHandle addresses a created group.
type GroupHandle struct {
	ID string `json:"id"`
}

// CreateOptions are optional group settings sent with a creation request.
type CreateOptions struct {
	MemberAddMode      bool   `json:"memberAddMode"`
	MembershipApproval bool   `json:"membershipApprovalMode"`
	Description        string `json:"description,omitempty"`
}

// Client is the messaging backend capability.
type Client interface {
	// Connect starts a session; lifecycle events are delivered on Events.
	Connect(ctx context.Context) error
	Events() <-chan Event
	// CreateGroup creates a group. opts may be nil for a bare creation call.
	CreateGroup(ctx context.Context, label string, participants []string, opts *CreateOptions) (*GroupHandle, error)
	// PromoteParticipants grants admin to identities. It is not atomic across identities.
	PromoteParticipants(ctx context.Context, group GroupHandle, identities []string) error
	SendMessage(ctx context.Context, group GroupHandle, text string) error
	GetGroupInfo(ctx context.Context, group GroupHandle) (*model.GroupInfo, error)
	Close() error
}
