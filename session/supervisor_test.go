package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/Ahmed123sa/whatsapp-auto/backend"
	"github.com/Ahmed123sa/whatsapp-auto/backend/backendtest"
	"github.com/Ahmed123sa/whatsapp-auto/model"
)

func runSupervisor(t *testing.T, fake *backendtest.Fake, m *Machine) (cancel func(), done <-chan error) {
	t.Helper()
	ctx, cancelFn := context.WithCancel(context.Background())
	ch := make(chan error, 1)
	s := NewSupervisor(m, fake, 10*time.Millisecond, quietLogger())
	go func() { ch <- s.Run(ctx) }()
	return cancelFn, ch
}

func TestSupervisor_DrivesMachine(t *testing.T) {
	fake := backendtest.New()
	m := NewMachine(quietLogger())
	cancel, done := runSupervisor(t, fake, m)

	fake.Emit(backend.Event{Type: backend.EventPairingChallenge, Data: "qr-1"})
	require.Eventually(t, func() bool {
		c, ok := m.PairingChallenge()
		return ok && c == "qr-1"
	}, time.Second, 5*time.Millisecond)

	fake.Emit(backend.Event{Type: backend.EventAuthenticated})
	fake.Emit(backend.Event{Type: backend.EventReady, Data: "me@c.us"})
	require.Eventually(t, m.Ready, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, fake.Connects())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, model.SessionDisconnected, m.Snapshot().State)
}

func TestSupervisor_ReconnectsAfterDisconnect(t *testing.T) {
	fake := backendtest.New()
	m := NewMachine(quietLogger())
	cancel, done := runSupervisor(t, fake, m)
	defer func() {
		cancel()
		<-done
	}()

	fake.Emit(backend.Event{Type: backend.EventAuthenticated})
	fake.Emit(backend.Event{Type: backend.EventReady})
	require.Eventually(t, m.Ready, time.Second, 5*time.Millisecond)

	fake.Emit(backend.Event{Type: backend.EventAuthFailed, Data: "logged out"})
	require.Eventually(t, func() bool { return fake.Connects() == 2 }, time.Second, 5*time.Millisecond)
	assert.False(t, m.Ready())

	// the fresh stream dies before any event, the session is still disconnected
	fake.Emit(backend.Event{Type: backend.EventDisconnected})
	require.Eventually(t, func() bool { return fake.Connects() == 3 }, time.Second, 5*time.Millisecond)
}

func TestSupervisor_ReconnectsWhenStreamDiesBeforePairing(t *testing.T) {
	fake := backendtest.New()
	m := NewMachine(quietLogger())
	cancel, done := runSupervisor(t, fake, m)
	defer func() {
		cancel()
		<-done
	}()

	fake.Emit(backend.Event{Type: backend.EventDisconnected, Data: "EOF"})
	require.Eventually(t, func() bool { return fake.Connects() == 2 }, time.Second, 5*time.Millisecond)

	fake.Emit(backend.Event{Type: backend.EventAuthFailed, Data: "restore failed"})
	require.Eventually(t, func() bool { return fake.Connects() == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, model.SessionDisconnected, m.Snapshot().State)

	fake.Emit(backend.Event{Type: backend.EventPairingChallenge, Data: "qr-1"})
	require.Eventually(t, func() bool {
		_, ok := m.PairingChallenge()
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestSupervisor_DropsEventsFromReplacedSubscription(t *testing.T) {
	fake := backendtest.New()
	m := NewMachine(quietLogger())
	cancel, done := runSupervisor(t, fake, m)
	defer func() {
		cancel()
		<-done
	}()

	fake.Emit(backend.Event{Type: backend.EventAuthFailed, Conn: 1})
	require.Eventually(t, func() bool { return fake.Connects() == 2 }, time.Second, 5*time.Millisecond)

	fake.Emit(backend.Event{Type: backend.EventPairingChallenge, Data: "qr-2", Conn: 2})
	require.Eventually(t, func() bool {
		c, ok := m.PairingChallenge()
		return ok && c == "qr-2"
	}, time.Second, 5*time.Millisecond)

	// the dead first stream reports its end late
	fake.Emit(backend.Event{Type: backend.EventDisconnected, Conn: 1})
	fake.Emit(backend.Event{Type: backend.EventPairingChallenge, Data: "qr-3", Conn: 2})
	require.Eventually(t, func() bool {
		c, ok := m.PairingChallenge()
		return ok && c == "qr-3"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, fake.Connects())
}

func TestSupervisor_ReconnectsGatewayWhenStreamCloses(t *testing.T) {
	var connects atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /session/connect", func(w http.ResponseWriter, r *http.Request) {
		connects.Add(1)
		w.WriteHeader(http.StatusAccepted)
	})
	mux.Handle("GET /session/events", websocket.Handler(func(conn *websocket.Conn) {}))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g, err := backend.NewGateway(srv.URL, "", time.Second, quietLogger())
	require.NoError(t, err)
	defer func() { _ = g.Close() }()

	m := NewMachine(quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewSupervisor(m, g, 10*time.Millisecond, quietLogger()).Run(ctx) }()

	require.Eventually(t, func() bool { return connects.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, model.SessionDisconnected, m.Snapshot().State)

	cancel()
	<-done
}

func TestSupervisor_RetriesFailedConnect(t *testing.T) {
	fake := backendtest.New()
	failures := 2
	fake.ConnectFunc = func() error {
		if failures > 0 {
			failures--
			return errors.New("gateway down")
		}
		return nil
	}
	m := NewMachine(quietLogger())
	cancel, done := runSupervisor(t, fake, m)
	defer func() {
		cancel()
		<-done
	}()
	require.Eventually(t, func() bool { return fake.Connects() == 3 }, 2*time.Second, 5*time.Millisecond)
}
