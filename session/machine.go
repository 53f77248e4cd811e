// Package session tracks the connection and authentication state of the
// messaging backend session.
package session

import (
	"sync"
	"sync/atomic"

	"github.com/labstack/gommon/log"

	"github.com/Ahmed123sa/whatsapp-auto/backend"
	"github.com/Ahmed123sa/whatsapp-auto/metrics"
	"github.com/Ahmed123sa/whatsapp-auto/model"
)

// Next returns the session that results from applying ev to cur.
//
// A pairing challenge is accepted while Disconnected or AwaitingPairing and
// replaces any earlier challenge. Once authenticated the backend only issues a new
// challenge after a logout, which arrives as a disconnect first. Authentication is accepted from Disconnected (restored credentials)
// and AwaitingPairing. Ready is only accepted once Authenticated. Auth failures
// and disconnects reset to Disconnected from any state. Events that do not apply
// to cur leave it unchanged.
func Next(cur model.Session, ev backend.Event) model.Session {
	switch ev.Type {
	case backend.EventPairingChallenge:
		if ev.Data == "" {
			return cur
		}
		switch cur.State {
		case model.SessionDisconnected, model.SessionAwaitingPairing:
			return model.Session{State: model.SessionAwaitingPairing, PairingChallenge: ev.Data}
		}
		return cur
	case backend.EventAuthenticated:
		switch cur.State {
		case model.SessionDisconnected, model.SessionAwaitingPairing:
			return model.Session{State: model.SessionAuthenticated}
		}
		return cur
	case backend.EventReady:
		if cur.State == model.SessionAuthenticated {
			return model.Session{State: model.SessionReady, BackendIdentity: ev.Data}
		}
		return cur
	case backend.EventAuthFailed, backend.EventDisconnected:
		return model.Session{State: model.SessionDisconnected}
	default:
		return cur
	}
}

// Machine owns the process-wide session. Only Apply and Reset change it;
// readers get lock-free snapshots.
type Machine struct {
	mu      sync.Mutex
	current atomic.Pointer[model.Session]
	logger  *log.Logger
}

// NewMachine returns a machine in the Disconnected state.
func NewMachine(logger *log.Logger) *Machine {
	m := &Machine{logger: logger}
	m.current.Store(&model.Session{State: model.SessionDisconnected})
	metrics.SetSessionState(model.SessionDisconnected)
	return m
}

// Apply feeds one backend event to the machine and returns the states before and after.
func (m *Machine) Apply(ev backend.Event) (prev, next model.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev = *m.current.Load()
	next = Next(prev, ev)
	if next == prev {
		m.logger.Debugf("session event %s ignored in state %s", ev.Type, prev.State)
		return prev, next
	}
	m.current.Store(&next)
	metrics.SetSessionState(next.State)
	switch {
	case next.State == model.SessionDisconnected:
		m.logger.Warnf("session %s -> %s (%s: %s)", prev.State, next.State, ev.Type, ev.Data)
	case prev.State == next.State:
		m.logger.Infof("session pairing challenge rotated")
	default:
		m.logger.Infof("session %s -> %s", prev.State, next.State)
	}
	return prev, next
}

// Reset moves the session to Disconnected. It is a no-op when already disconnected.
func (m *Machine) Reset() {
	m.Apply(backend.Event{Type: backend.EventDisconnected, Data: "reset"})
}

// Snapshot returns the current session.
func (m *Machine) Snapshot() model.Session {
	return *m.current.Load()
}

// Ready reports whether provisioning requests may be accepted.
func (m *Machine) Ready() bool {
	return m.Snapshot().IsReady()
}

// PairingChallenge returns the challenge to display, if the session awaits pairing.
func (m *Machine) PairingChallenge() (string, bool) {
	s := m.Snapshot()
	if s.State != model.SessionAwaitingPairing {
		return "", false
	}
	return s.PairingChallenge, true
}
