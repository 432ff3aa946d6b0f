package chatclient

import (
	"context"
	"sync"

	"github.com/weiawesome/wes-io-chat/pkg/wire"
)

// ContactsAPI loads the contact list.
type ContactsAPI interface {
	Contacts(ctx context.Context) ([]User, error)
}

// ContactsController keeps the contact list current with profile updates.
type ContactsController struct {
	api ContactsAPI
	sub *Subscription

	mu       sync.RWMutex
	contacts []User
	onChange func(User)
}

// NewContactsController subscribes to profile updates. Call Load to fetch
// the list.
func NewContactsController(api ContactsAPI, sock Subscriber) *ContactsController {
	c := &ContactsController{api: api}
	c.sub = sock.Subscribe(wire.EventProfileUpdate, c.handle)
	return c
}

// Load replaces the list with the server's.
func (c *ContactsController) Load(ctx context.Context) error {
	users, err := c.api.Contacts(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.contacts = users
	c.mu.Unlock()
	return nil
}

// OnChange sets a callback invoked with each patched contact.
func (c *ContactsController) OnChange(fn func(User)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

func (c *ContactsController) handle(p wire.Payload) {
	upd, ok := p.(wire.ProfileUpdate)
	if !ok {
		return
	}

	c.mu.Lock()
	var (
		patched User
		found   bool
	)
	for i := range c.contacts {
		if c.contacts[i].ID == upd.UserID {
			c.contacts[i].ProfilePic = upd.ProfilePic
			if upd.FullName != "" {
				c.contacts[i].FullName = upd.FullName
			}
			patched, found = c.contacts[i], true
			break
		}
	}
	fn := c.onChange
	c.mu.Unlock()

	if found && fn != nil {
		fn(patched)
	}
}

// Contacts returns a copy of the list.
func (c *ContactsController) Contacts() []User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]User, len(c.contacts))
	copy(out, c.contacts)
	return out
}

// Get returns the contact with id.
func (c *ContactsController) Get(id string) (User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, u := range c.contacts {
		if u.ID == id {
			return u, true
		}
	}
	return User{}, false
}

// Close stops following profile updates.
func (c *ContactsController) Close() {
	c.sub.Close()
}
