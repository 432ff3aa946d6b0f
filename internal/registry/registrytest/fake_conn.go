// Package registrytest provides test helpers for code built on registry.Conn.
package registrytest

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/registry"
	"github.com/weiawesome/wes-io-chat/pkg/wire"
)

var seq atomic.Uint64

// FakeConn records every payload pushed to it.
type FakeConn struct {
	id     string
	userID string

	mu       sync.Mutex
	received []wire.Payload
	closed   bool

	// FailSend, when set, makes Send return a transport failure.
	FailSend bool
}

var _ registry.Conn = (*FakeConn)(nil)

// NewFakeConn returns an open FakeConn owned by userID.
func NewFakeConn(userID string) *FakeConn {
	return &FakeConn{
		id:     fmt.Sprintf("fake-%s-%d", userID, seq.Add(1)),
		userID: userID,
	}
}

// ID implements registry.Conn.
func (c *FakeConn) ID() string { return c.id }

// UserID implements registry.Conn.
func (c *FakeConn) UserID() string { return c.userID }

// Send implements registry.Conn.
func (c *FakeConn) Send(p wire.Payload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.FailSend {
		return fmt.Errorf("%w: fake conn %s", domain.ErrTransport, c.id)
	}
	c.received = append(c.received, p)
	return nil
}

// Close implements registry.Conn.
func (c *FakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Closed reports whether Close was called.
func (c *FakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Received returns a snapshot of pushed payloads.
func (c *FakeConn) Received() []wire.Payload {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]wire.Payload, len(c.received))
	copy(out, c.received)
	return out
}

// Presence returns every presence snapshot received, in order.
func (c *FakeConn) Presence() []wire.OnlineUsers {
	var out []wire.OnlineUsers
	for _, p := range c.Received() {
		if v, ok := p.(wire.OnlineUsers); ok {
			out = append(out, v)
		}
	}
	return out
}

// LastPresence returns the most recent presence snapshot, or nil.
func (c *FakeConn) LastPresence() wire.OnlineUsers {
	all := c.Presence()
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

// Messages returns every message pushed, in order.
func (c *FakeConn) Messages() []wire.Message {
	var out []wire.Message
	for _, p := range c.Received() {
		if v, ok := p.(wire.Message); ok {
			out = append(out, v)
		}
	}
	return out
}

// ProfileUpdates returns every profile update pushed, in order.
func (c *FakeConn) ProfileUpdates() []wire.ProfileUpdate {
	var out []wire.ProfileUpdate
	for _, p := range c.Received() {
		if v, ok := p.(wire.ProfileUpdate); ok {
			out = append(out, v)
		}
	}
	return out
}

// Reset drops recorded payloads.
func (c *FakeConn) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = nil
}
