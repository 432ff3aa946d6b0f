package chatclient

import (
	"sort"
	"sync"

	"github.com/weiawesome/wes-io-chat/pkg/wire"
)

// PresenceController mirrors the server's online set. Every snapshot
// replaces the previous one.
type PresenceController struct {
	self string
	sub  *Subscription

	mu       sync.RWMutex
	online   map[string]struct{}
	onChange func(others []string)
}

// NewPresenceController subscribes to presence snapshots. selfID is the
// local user, left out of Others.
func NewPresenceController(sock Subscriber, selfID string) *PresenceController {
	p := &PresenceController{
		self:   selfID,
		online: make(map[string]struct{}),
	}
	p.sub = sock.Subscribe(wire.EventOnlineUsers, p.handle)
	return p
}

// OnChange sets a callback invoked with Others after each snapshot.
func (p *PresenceController) OnChange(fn func(others []string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = fn
}

func (p *PresenceController) handle(payload wire.Payload) {
	ids, ok := payload.(wire.OnlineUsers)
	if !ok {
		return
	}

	next := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		next[id] = struct{}{}
	}

	p.mu.Lock()
	p.online = next
	fn := p.onChange
	p.mu.Unlock()

	if fn != nil {
		fn(p.Others())
	}
}

// Online returns the full snapshot, sorted.
func (p *PresenceController) Online() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sorted(false)
}

// Others returns the snapshot without the local user, sorted.
func (p *PresenceController) Others() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sorted(true)
}

// IsOnline reports whether id is in the latest snapshot.
func (p *PresenceController) IsOnline(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.online[id]
	return ok
}

// Close stops following presence.
func (p *PresenceController) Close() {
	p.sub.Close()
}

func (p *PresenceController) sorted(excludeSelf bool) []string {
	out := make([]string, 0, len(p.online))
	for id := range p.online {
		if excludeSelf && id == p.self {
			continue
		}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
