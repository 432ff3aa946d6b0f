// Package hub owns the lifecycle of chat sockets.
//
// All registry mutations run on the Run goroutine, each followed by a presence
// broadcast before the next admission or release is read. Pushes are
// non-blocking enqueues, so every connection observes presence snapshots in
// the order the mutations happened.
package hub

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/weiawesome/wes-io-chat/internal/audit"
	"github.com/weiawesome/wes-io-chat/internal/config"
	"github.com/weiawesome/wes-io-chat/internal/metrics"
	"github.com/weiawesome/wes-io-chat/internal/presence"
	"github.com/weiawesome/wes-io-chat/internal/registry"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// ErrStopped is returned when the hub no longer accepts connections.
var ErrStopped = errors.New("hub stopped")

type Hub struct {
	registry *registry.Registry
	presence *presence.Broadcaster

	admit   chan registry.Conn
	release chan registry.Conn
	done    chan struct{}

	// attached holds every open socket, admitted or not, for shutdown.
	attached map[registry.Conn]struct{}
	mu       sync.Mutex

	config config.WebSocketConfig
	logger zerolog.Logger
}

func NewHub(reg *registry.Registry, cfg config.WebSocketConfig) *Hub {
	return &Hub{
		registry: reg,
		presence: presence.NewBroadcaster(reg),
		admit:    make(chan registry.Conn),
		release:  make(chan registry.Conn),
		done:     make(chan struct{}),
		attached: make(map[registry.Conn]struct{}),
		config:   cfg,
		logger:   log.Component("hub"),
	}
}

// Run processes admissions and releases until ctx is cancelled, then closes
// every attached socket.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		// Shutdown wins over pending lifecycle events.
		select {
		case <-ctx.Done():
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case conn := <-h.admit:
			h.handleAdmit(conn)
		case conn := <-h.release:
			h.handleRelease(conn)
		}
	}
}

// Attach tracks an upgraded socket so shutdown can close it. Sockets that
// fail admission are attached but never admitted.
func (h *Hub) Attach(conn registry.Conn) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	select {
	case <-h.done:
		return ErrStopped
	default:
	}
	h.attached[conn] = struct{}{}
	return nil
}

// Admit registers conn under its user id and broadcasts presence. It
// returns once the hub has taken the admission.
func (h *Hub) Admit(conn registry.Conn) error {
	select {
	case h.admit <- conn:
		return nil
	case <-h.done:
		return ErrStopped
	}
}

// Release detaches conn and, if it is still the registered connection for
// its user, unregisters it and broadcasts presence. Releasing a superseded
// or never-admitted connection changes nothing.
func (h *Hub) Release(conn registry.Conn) {
	select {
	case h.release <- conn:
	case <-h.done:
	}
}

// Disconnect closes the live connection of userID, if any. The socket's read
// loop then releases it.
func (h *Hub) Disconnect(userID string) bool {
	conn, ok := h.registry.Lookup(userID)
	if !ok {
		return false
	}
	conn.Close()
	return true
}

// Online returns the sorted ids of connected users.
func (h *Hub) Online() []string {
	return h.registry.SnapshotIDs()
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) handleAdmit(conn registry.Conn) {
	ctx := log.WithConn(context.Background(), h.logger, conn.UserID(), conn.ID())

	h.mu.Lock()
	h.attached[conn] = struct{}{}
	h.mu.Unlock()

	prev := h.registry.Register(conn.UserID(), conn)
	metrics.ConnectionsTotal.WithLabelValues("admitted").Inc()
	audit.Log(ctx, audit.ActionConnect, conn.UserID(), "user connected")

	if prev != nil {
		metrics.ConnectionsTotal.WithLabelValues("superseded").Inc()
		audit.LogWithDetail(ctx, audit.ActionSupersede, conn.UserID(), prev.ID(), "connection superseded")
		if h.config.CloseSuperseded {
			prev.Close()
		}
	}

	h.presence.Broadcast()
}

func (h *Hub) handleRelease(conn registry.Conn) {
	h.mu.Lock()
	delete(h.attached, conn)
	h.mu.Unlock()

	if conn.UserID() == "" || !h.registry.Unregister(conn.UserID(), conn) {
		h.logger.Debug().Str(log.FieldConnID, conn.ID()).Msg("released connection was not registered")
		return
	}

	ctx := log.WithConn(context.Background(), h.logger, conn.UserID(), conn.ID())
	metrics.ConnectionsTotal.WithLabelValues("released").Inc()
	audit.Log(ctx, audit.ActionDisconnect, conn.UserID(), "user disconnected")

	h.presence.Broadcast()
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	close(h.done)
	conns := make([]registry.Conn, 0, len(h.attached))
	for c := range h.attached {
		conns = append(conns, c)
	}
	h.attached = make(map[registry.Conn]struct{})
	h.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	h.logger.Info().Int("closed", len(conns)).Msg("hub stopped")
}
