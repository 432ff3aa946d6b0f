// Package wire defines the server-push events exchanged over the chat socket.
//
// Every frame is an Envelope whose Event field names the payload carried in
// Data. The set of payloads is closed: only types declared in this package
// implement Payload, so Encode and Decode cover every event the server emits.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Version is the envelope schema version written by Encode.
const Version = 1

// Event names.
const (
	EventOnlineUsers    = "getOnlineUsers"
	EventNewMessage     = "newMessage"
	EventProfileUpdate  = "userProfileUpdate"
	EventAdmissionError = "admissionError"
)

var (
	ErrUnknownEvent       = errors.New("wire: unknown event")
	ErrUnsupportedVersion = errors.New("wire: unsupported envelope version")
)

// Envelope is the JSON frame written to the socket.
type Envelope struct {
	// Event is the payload discriminator.
	Event string `json:"event"`
	// Version is the schema version of Data.
	Version int `json:"v"`
	// Data is the event payload.
	Data json.RawMessage `json:"data"`
}

// Payload is implemented by every event body.
type Payload interface {
	// Event returns the envelope event name for this payload.
	Event() string
	payload()
}

// OnlineUsers is the full set of user ids with a registered connection,
// sorted ascending and including the receiver.
type OnlineUsers []string

func (OnlineUsers) Event() string { return EventOnlineUsers }
func (OnlineUsers) payload()      {}

// Message is a persisted direct message.
type Message struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"senderId"`
	RecipientID string    `json:"recipientId"`
	Text        string    `json:"text,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (Message) Event() string { return EventNewMessage }
func (Message) payload()      {}

// ProfileUpdate announces a changed profile picture or display name.
type ProfileUpdate struct {
	UserID     string `json:"userId"`
	ProfilePic string `json:"profilePic"`
	FullName   string `json:"fullName"`
}

func (ProfileUpdate) Event() string { return EventProfileUpdate }
func (ProfileUpdate) payload()      {}

// AdmissionError tells a socket it was not admitted to presence.
type AdmissionError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (AdmissionError) Event() string { return EventAdmissionError }
func (AdmissionError) payload()      {}

// Encode wraps p in an envelope and marshals it.
func Encode(p Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("wire: nil payload")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal %s: %w", p.Event(), err)
	}
	return json.Marshal(Envelope{
		Event:   p.Event(),
		Version: Version,
		Data:    data,
	})
}

// Decode parses a frame produced by Encode.
func Decode(frame []byte) (Payload, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("wire: unmarshal envelope: %w", err)
	}
	if env.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.Version)
	}

	var (
		p   Payload
		err error
	)
	switch env.Event {
	case EventOnlineUsers:
		var v OnlineUsers
		err = json.Unmarshal(env.Data, &v)
		if v == nil {
			v = OnlineUsers{}
		}
		p = v
	case EventNewMessage:
		var v Message
		err = json.Unmarshal(env.Data, &v)
		p = v
	case EventProfileUpdate:
		var v ProfileUpdate
		err = json.Unmarshal(env.Data, &v)
		p = v
	case EventAdmissionError:
		var v AdmissionError
		err = json.Unmarshal(env.Data, &v)
		p = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	if err != nil {
		return nil, fmt.Errorf("wire: unmarshal %s: %w", env.Event, err)
	}
	return p, nil
}
