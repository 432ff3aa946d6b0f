package chatclient

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/weiawesome/wes-io-chat/pkg/wire"
)

// State is the lifecycle of a ConversationController.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

var (
	// ErrNoConversation is returned by calls that need a selected partner.
	ErrNoConversation = errors.New("chatclient: no conversation selected")
	// ErrSuperseded is returned by Select when another Select or Close
	// happened while history was loading.
	ErrSuperseded = errors.New("chatclient: conversation changed while loading")
)

// ChatAPI is the part of the REST API a conversation uses.
type ChatAPI interface {
	History(ctx context.Context, partnerID string, q HistoryQuery) (*HistoryPage, error)
	SendMessage(ctx context.Context, partnerID, text, image string) (*wire.Message, error)
}

// ConversationController holds the open conversation. Live messages from
// the partner that arrive while history loads are buffered and merged, so
// none are lost or shown twice.
type ConversationController struct {
	api      ChatAPI
	sock     Subscriber
	pageSize int

	mu       sync.Mutex
	state    State
	gen      uint64
	partner  string
	sub      *Subscription
	messages []wire.Message
	seen     map[string]struct{}
	pending  []wire.Message
	cursor   string
	hasMore  bool
	onChange func()
}

// NewConversationController creates an idle controller. pageSize <= 0 uses
// the server default.
func NewConversationController(api ChatAPI, sock Subscriber, pageSize int) *ConversationController {
	return &ConversationController{
		api:      api,
		sock:     sock,
		pageSize: pageSize,
		seen:     make(map[string]struct{}),
	}
}

// OnChange sets a callback invoked whenever the message list or state
// changes.
func (c *ConversationController) OnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Select opens the conversation with partnerID. The live subscription is
// taken before history is requested.
func (c *ConversationController) Select(ctx context.Context, partnerID string) error {
	c.mu.Lock()
	c.resetLocked()
	c.gen++
	gen := c.gen
	c.state = StateLoading
	c.partner = partnerID
	c.sub = c.sock.Subscribe(wire.EventNewMessage, func(p wire.Payload) {
		c.handleLive(gen, p)
	})
	c.mu.Unlock()
	c.notify()

	page, err := c.api.History(ctx, partnerID, HistoryQuery{Limit: c.pageSize})

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return ErrSuperseded
	}
	if err != nil {
		c.resetLocked()
		c.mu.Unlock()
		c.notify()
		return err
	}

	for _, m := range page.Messages {
		c.addLocked(m)
	}
	for _, m := range c.pending {
		c.addLocked(m)
	}
	c.pending = nil
	c.cursor = page.NextCursor
	c.hasMore = page.HasMore
	c.state = StateReady
	c.mu.Unlock()

	c.notify()
	return nil
}

// LoadOlder prepends the previous history page. It reports whether older
// messages remain.
func (c *ConversationController) LoadOlder(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return false, ErrNoConversation
	}
	if !c.hasMore {
		c.mu.Unlock()
		return false, nil
	}
	gen, partner, cursor := c.gen, c.partner, c.cursor
	c.mu.Unlock()

	page, err := c.api.History(ctx, partner, HistoryQuery{Cursor: cursor, Limit: c.pageSize})
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return false, ErrSuperseded
	}
	for _, m := range page.Messages {
		c.addLocked(m)
	}
	c.cursor = page.NextCursor
	c.hasMore = page.HasMore
	hasMore := c.hasMore
	c.mu.Unlock()

	c.notify()
	return hasMore, nil
}

// Send posts a message to the partner and appends the stored copy.
func (c *ConversationController) Send(ctx context.Context, text, image string) (*wire.Message, error) {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return nil, ErrNoConversation
	}
	gen, partner := c.gen, c.partner
	c.mu.Unlock()

	msg, err := c.api.SendMessage(ctx, partner, text, image)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.gen == gen {
		if c.state == StateLoading {
			c.pending = append(c.pending, *msg)
		} else {
			c.addLocked(*msg)
		}
	}
	c.mu.Unlock()

	c.notify()
	return msg, nil
}

// Close leaves the conversation and returns to idle.
func (c *ConversationController) Close() {
	c.mu.Lock()
	c.resetLocked()
	c.gen++
	c.mu.Unlock()
	c.notify()
}

// State returns the current state.
func (c *ConversationController) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Partner returns the selected partner id, or "" when idle.
func (c *ConversationController) Partner() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.partner
}

// Messages returns the conversation in creation order.
func (c *ConversationController) Messages() []wire.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]wire.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *ConversationController) handleLive(gen uint64, p wire.Payload) {
	msg, ok := p.(wire.Message)
	if !ok {
		return
	}

	c.mu.Lock()
	if c.gen != gen || msg.SenderID != c.partner {
		c.mu.Unlock()
		return
	}
	if c.state == StateLoading {
		c.pending = append(c.pending, msg)
		c.mu.Unlock()
		return
	}
	added := c.addLocked(msg)
	c.mu.Unlock()

	if added {
		c.notify()
	}
}

// addLocked inserts m unless its id is known, keeping id order. Message ids
// sort by creation time.
func (c *ConversationController) addLocked(m wire.Message) bool {
	if _, ok := c.seen[m.ID]; ok {
		return false
	}
	c.seen[m.ID] = struct{}{}
	c.messages = append(c.messages, m)

	n := len(c.messages)
	if n > 1 && c.messages[n-2].ID > m.ID {
		sort.Slice(c.messages, func(i, j int) bool {
			return c.messages[i].ID < c.messages[j].ID
		})
	}
	return true
}

func (c *ConversationController) resetLocked() {
	if c.sub != nil {
		c.sub.Close()
		c.sub = nil
	}
	c.state = StateIdle
	c.partner = ""
	c.messages = nil
	c.seen = make(map[string]struct{})
	c.pending = nil
	c.cursor = ""
	c.hasMore = false
}

func (c *ConversationController) notify() {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}
