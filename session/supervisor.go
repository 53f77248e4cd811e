package session

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/Ahmed123sa/whatsapp-auto/backend"
)

const maxReconnectInterval = time.Minute

// Connector is the part of the backend client the supervisor drives.
type Connector interface {
	Connect(ctx context.Context) error
	Events() <-chan backend.Event
}

// Supervisor drains backend events into a Machine and starts a fresh pairing
// cycle whenever the session falls back to Disconnected.
type Supervisor struct {
	machine        *Machine
	conn           Connector
	reconnectDelay time.Duration
	logger         *log.Logger
}

func NewSupervisor(machine *Machine, conn Connector, reconnectDelay time.Duration, logger *log.Logger) *Supervisor {
	return &Supervisor{
		machine:        machine,
		conn:           conn,
		reconnectDelay: reconnectDelay,
		logger:         logger,
	}
}

// Run connects and processes events until ctx is done or the event stream closes.
// Every disconnect or auth failure starts a fresh pairing cycle, whatever the
// session state was. Events from subscriptions that were already given up are
// dropped. The session is reset to Disconnected on return.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.machine.Reset()
	if err := s.connect(ctx); err != nil {
		return err
	}
	// highest subscription already given up; zero-stamped events are always current
	var abandoned uint64
	events := s.conn.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Conn != 0 && ev.Conn <= abandoned {
				s.logger.Debugf("dropping %s from replaced subscription %d", ev.Type, ev.Conn)
				continue
			}
			s.machine.Apply(ev)
			if !endsSession(ev.Type) {
				continue
			}
			if ev.Conn > abandoned {
				abandoned = ev.Conn
			}
			if err := s.wait(ctx); err != nil {
				return err
			}
			if err := s.connect(ctx); err != nil {
				return err
			}
		}
	}
}

func endsSession(t backend.EventType) bool {
	return t == backend.EventDisconnected || t == backend.EventAuthFailed
}

func (s *Supervisor) wait(ctx context.Context) error {
	if s.reconnectDelay <= 0 {
		return nil
	}
	t := time.NewTimer(s.reconnectDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Supervisor) connect(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	if s.reconnectDelay > 0 {
		b.InitialInterval = s.reconnectDelay
	}
	b.MaxInterval = maxReconnectInterval
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, s.conn.Connect(ctx)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.Errorf("fail to connect backend session, retry in %s, err: %s", next, err)
		}),
	)
	if err != nil {
		return errors.Wrap(err, "connect backend session")
	}
	s.logger.Info("backend session connecting")
	return nil
}
