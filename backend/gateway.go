package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"
	"golang.org/x/net/websocket"

	"github.com/Ahmed123sa/whatsapp-auto/model"
)

var _ Client = (*Gateway)(nil)

// Gateway talks to an HTTP gateway in front of the messaging backend.
// Group operations are REST calls, lifecycle events arrive over a websocket.
type Gateway struct {
	baseURL   string
	eventsURL string
	http      *http.Client
	logger    *log.Logger

	events chan Event
	done   chan struct{}

	mu     sync.Mutex
	conn   *websocket.Conn
	gen    uint64
	closed bool
}

// NewGateway returns a gateway client. An empty eventsURL is derived from baseURL.
func NewGateway(baseURL, eventsURL string, timeout time.Duration, logger *log.Logger) (*Gateway, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil, errors.Errorf("invalid backend base url %q", baseURL)
	}
	if eventsURL == "" {
		ws := *u
		ws.Scheme = "ws"
		if u.Scheme == "https" {
			ws.Scheme = "wss"
		}
		ws.Path = strings.TrimRight(u.Path, "/") + "/session/events"
		eventsURL = ws.String()
	}
	return &Gateway{
		baseURL:   baseURL,
		eventsURL: eventsURL,
		http:      &http.Client{Timeout: timeout},
		logger:    logger,
		events:    make(chan Event, 16),
		done:      make(chan struct{}),
	}, nil
}

// Events returns the lifecycle event stream. It is never closed while the gateway is open.
func (g *Gateway) Events() <-chan Event {
	return g.events
}

// Connect asks the gateway to start a session and subscribes to its events.
// Calling Connect again replaces the previous subscription.
func (g *Gateway) Connect(ctx context.Context) error {
	if _, err := g.do(ctx, http.MethodPost, "/session/connect", nil, nil); err != nil {
		return errors.Wrap(err, "start session")
	}
	wsCfg, err := websocket.NewConfig(g.eventsURL, g.baseURL)
	if err != nil {
		return errors.Wrap(err, "events config")
	}
	conn, err := wsCfg.DialContext(ctx)
	if err != nil {
		return errors.Wrapf(err, "dial events %s", g.eventsURL)
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		_ = conn.Close()
		return errors.New("gateway closed")
	}
	prev := g.conn
	g.conn = conn
	g.gen++
	gen := g.gen
	g.mu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}

	go g.readEvents(conn, gen)
	return nil
}

// readEvents forwards events of one subscription, stamped with its generation.
// A dead stream yields exactly one EventDisconnected, unless it was replaced or closed.
func (g *Gateway) readEvents(conn *websocket.Conn, gen uint64) {
	decoder := json.NewDecoder(conn)
	for {
		var ev Event
		err := decoder.Decode(&ev)
		if err == nil {
			ev.Conn = gen
			g.emit(ev)
			continue
		}
		g.mu.Lock()
		current := g.conn == conn
		if current {
			g.conn = nil
		}
		g.mu.Unlock()
		_ = conn.Close()
		if current {
			g.logger.Warnf("event stream ended, err: %s", err)
			g.emit(Event{Type: EventDisconnected, Data: err.Error(), Conn: gen})
		}
		return
	}
}

func (g *Gateway) emit(ev Event) {
	select {
	case g.events <- ev:
	case <-g.done:
	}
}

func (g *Gateway) CreateGroup(ctx context.Context, label string, participants []string, opts *CreateOptions) (*GroupHandle, error) {
	req := struct {
		Subject      string         `json:"subject"`
		Participants []string       `json:"participants"`
		Options      *CreateOptions `json:"options,omitempty"`
	}{Subject: label, Participants: participants, Options: opts}
	var handle GroupHandle
	status, err := g.do(ctx, http.MethodPost, "/groups", req, &handle)
	if err != nil {
		if isClientError(status) {
			return nil, errors.Wrap(ErrCreateRejected, err.Error())
		}
		return nil, errors.Wrap(err, "create group")
	}
	return &handle, nil
}

func (g *Gateway) PromoteParticipants(ctx context.Context, group GroupHandle, identities []string) error {
	req := struct {
		Participants []string `json:"participants"`
	}{Participants: identities}
	status, err := g.do(ctx, http.MethodPost, "/groups/"+url.PathEscape(group.ID)+"/admins", req, nil)
	if err != nil {
		if isClientError(status) {
			return errors.Wrap(ErrPromotionRejected, err.Error())
		}
		return errors.Wrap(err, "promote participants")
	}
	return nil
}

func (g *Gateway) SendMessage(ctx context.Context, group GroupHandle, text string) error {
	req := struct {
		Text string `json:"text"`
	}{Text: text}
	if _, err := g.do(ctx, http.MethodPost, "/groups/"+url.PathEscape(group.ID)+"/messages", req, nil); err != nil {
		return errors.Wrap(err, "send message")
	}
	return nil
}

func (g *Gateway) GetGroupInfo(ctx context.Context, group GroupHandle) (*model.GroupInfo, error) {
	var info model.GroupInfo
	if _, err := g.do(ctx, http.MethodGet, "/groups/"+url.PathEscape(group.ID), nil, &info); err != nil {
		return nil, errors.Wrap(err, "get group info")
	}
	return &info, nil
}

// Close drops the event subscription. The gateway cannot be reused afterwards.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	close(g.done)
	if g.conn != nil {
		err := g.conn.Close()
		g.conn = nil
		return err
	}
	return nil
}

// do sends a JSON request and decodes a JSON response into out when out is not nil.
// It returns the HTTP status whenever a response was received.
func (g *Gateway) do(ctx context.Context, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return 0, errors.Wrap(err, "marshal request")
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return 0, errors.Wrap(err, "build request")
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return 0, errors.Wrapf(err, "%s %s", method, path)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			g.logger.Debugf("fail to close response body, err: %s", err)
		}
	}()

	if resp.StatusCode == http.StatusServiceUnavailable {
		return resp.StatusCode, errors.Wrapf(ErrBackendUnavailable, "%s %s", method, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, readError(resp.Body))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return resp.StatusCode, errors.Wrap(err, "decode response")
		}
	}
	return resp.StatusCode, nil
}

func isClientError(status int) bool {
	return status >= 400 && status < 500
}

func readError(r io.Reader) string {
	buf, _ := io.ReadAll(io.LimitReader(r, 4096))
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(buf, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(buf))
}
