// Package registry maps authenticated users to their single live connection.
//
// Presence in the registry is the authoritative online status. A user has at
// most one entry; registering a new connection for the same user replaces
// the old one, and removal is compare-and-delete so a late close of a
// superseded connection cannot evict its replacement.
package registry

import (
	"sort"
	"sync"

	"github.com/weiawesome/wes-io-chat/pkg/wire"
)

// Conn is a live push channel owned by exactly one user.
type Conn interface {
	// ID uniquely identifies the connection for logging.
	ID() string
	// UserID is the identity the connection was admitted as.
	UserID() string
	// Send enqueues p without blocking. It fails when the connection is
	// closed or cannot keep up.
	Send(p wire.Payload) error
	// Close tears down the transport. It is safe to call more than once.
	Close() error
}

// Registry is a concurrency-safe UserID -> Conn map.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{conns: make(map[string]Conn)}
}

// Register stores conn for userID and returns the connection it replaced,
// or nil.
func (r *Registry) Register(userID string, conn Conn) Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.conns[userID]
	r.conns[userID] = conn
	if prev == conn {
		return nil
	}
	return prev
}

// Unregister removes the entry for userID only if it still holds conn.
// It reports whether an entry was removed.
func (r *Registry) Unregister(userID string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.conns[userID]
	if !ok || current != conn {
		return false
	}
	delete(r.conns, userID)
	return true
}

// Lookup returns the connection registered for userID.
func (r *Registry) Lookup(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[userID]
	return c, ok
}

// SnapshotIDs returns the sorted ids of every registered user.
func (r *Registry) SnapshotIDs() []string {
	ids, _ := r.Snapshot()
	return ids
}

// Snapshot returns the sorted registered user ids and their connections,
// index-aligned, captured under a single lock.
func (r *Registry) Snapshot() ([]string, []Conn) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	conns := make([]Conn, len(ids))
	for i, id := range ids {
		conns[i] = r.conns[id]
	}
	return ids, conns
}

// Len returns the number of registered users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
