package chatclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/wire"
)

// ErrNotAdmitted is returned by Run when the server refuses the socket's
// credential. Reconnecting with the same credential cannot succeed.
var ErrNotAdmitted = errors.New("chatclient: socket not admitted")

// Handler receives a decoded server push.
type Handler func(wire.Payload)

// Subscriber registers event handlers.
type Subscriber interface {
	Subscribe(event string, h Handler) *Subscription
}

// Subscription is a registered handler. Close is idempotent.
type Subscription struct {
	once   sync.Once
	socket *Socket
	event  string
	id     uint64
}

// Close removes the handler. Events whose dispatch starts after Close
// returns are not delivered to it; a dispatch already in flight may still
// call it once, so handlers that must not observe late events need their
// own guard.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.socket.unsubscribe(s.event, s.id)
	})
}

// SocketConfig tunes dialing and reconnects.
type SocketConfig struct {
	HandshakeTimeout time.Duration
	PongWait         time.Duration
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
}

func (c *SocketConfig) withDefaults() SocketConfig {
	out := *c
	if out.HandshakeTimeout == 0 {
		out.HandshakeTimeout = 10 * time.Second
	}
	if out.PongWait == 0 {
		out.PongWait = 90 * time.Second
	}
	if out.InitialBackoff == 0 {
		out.InitialBackoff = 500 * time.Millisecond
	}
	if out.MaxBackoff == 0 {
		out.MaxBackoff = 30 * time.Second
	}
	return out
}

// Socket is a reconnecting subscription to the server's push events.
// Handlers run on the read goroutine in the order the server sent the
// events and must not block.
type Socket struct {
	url    string
	token  string
	config SocketConfig
	dialer websocket.Dialer
	logger zerolog.Logger

	mu     sync.RWMutex
	subs   map[string]map[uint64]Handler
	nextID uint64

	connMu sync.Mutex
	conn   *websocket.Conn
}

var _ Subscriber = (*Socket)(nil)

// NewSocket creates a socket for the websocket URL authenticating with token.
func NewSocket(url, token string, cfg SocketConfig) *Socket {
	cfg = cfg.withDefaults()
	return &Socket{
		url:    url,
		token:  token,
		config: cfg,
		dialer: websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		logger: log.Component("chatclient"),
		subs:   make(map[string]map[uint64]Handler),
	}
}

// Subscribe registers h for event.
func (s *Socket) Subscribe(event string, h Handler) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	if s.subs[event] == nil {
		s.subs[event] = make(map[uint64]Handler)
	}
	s.subs[event][s.nextID] = h
	return &Subscription{socket: s, event: event, id: s.nextID}
}

func (s *Socket) unsubscribe(event string, id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.subs[event], id)
	if len(s.subs[event]) == 0 {
		delete(s.subs, event)
	}
}

func (s *Socket) dispatch(p wire.Payload) {
	s.mu.RLock()
	handlers := make([]Handler, 0, len(s.subs[p.Event()]))
	for _, h := range s.subs[p.Event()] {
		handlers = append(handlers, h)
	}
	s.mu.RUnlock()

	for _, h := range handlers {
		h(p)
	}
}

// Run connects and dispatches events until ctx is cancelled, reconnecting
// with exponential backoff after failures. It returns ErrNotAdmitted if the
// server rejects the credential.
func (s *Socket) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.config.InitialBackoff
	b.MaxInterval = s.config.MaxBackoff
	b.MaxElapsedTime = 0
	bctx := backoff.WithContext(b, ctx)

	for {
		connected, err := s.session(ctx)
		if errors.Is(err, ErrNotAdmitted) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			bctx.Reset()
		}

		wait := bctx.NextBackOff()
		if wait == backoff.Stop {
			return ctx.Err()
		}
		s.logger.Info().Err(err).Dur("delay", wait).Msg("socket disconnected, reconnecting")

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close drops the current connection. Run reconnects unless its context
// is done.
func (s *Socket) Close() error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// session runs one connection. connected reports whether the dial
// succeeded.
func (s *Socket) session(ctx context.Context) (connected bool, err error) {
	header := http.Header{}
	if s.token != "" {
		header.Set("Authorization", "Bearer "+s.token)
	}

	conn, resp, err := s.dialer.DialContext(ctx, s.url, header)
	if err != nil {
		if resp != nil {
			return false, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return false, fmt.Errorf("websocket dial failed: %w", err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
	defer func() {
		s.connMu.Lock()
		s.conn = nil
		s.connMu.Unlock()
		conn.Close()
	}()

	// Unblock ReadMessage when ctx ends.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	conn.SetReadDeadline(time.Now().Add(s.config.PongWait))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(s.config.PongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		conn.SetReadDeadline(time.Now().Add(s.config.PongWait))

		p, err := wire.Decode(frame)
		if err != nil {
			s.logger.Warn().Err(err).Msg("dropping undecodable frame")
			continue
		}
		s.dispatch(p)

		if ae, ok := p.(wire.AdmissionError); ok {
			return true, fmt.Errorf("%w: %s: %s", ErrNotAdmitted, ae.Code, ae.Message)
		}
	}
}
