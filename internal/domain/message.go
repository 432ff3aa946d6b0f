package domain

import (
	"time"

	"github.com/weiawesome/wes-io-chat/pkg/wire"
)

// Message is a persisted direct message.
type Message struct {
	ID          string
	SenderID    string
	RecipientID string
	Text        string
	ImageURL    string
	CreatedAt   time.Time
}

// ToWire converts the message to its push and API representation.
func (m *Message) ToWire() wire.Message {
	return wire.Message{
		ID:          m.ID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Text:        m.Text,
		ImageURL:    m.ImageURL,
		CreatedAt:   m.CreatedAt,
	}
}

// ConversationKey identifies the unordered pair of participants.
func ConversationKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// SendMessageRequest is the body of a send call. Image is an optional
// base64 data URL.
type SendMessageRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

// HistoryPage is one page of a conversation, oldest first.
type HistoryPage struct {
	Messages   []wire.Message `json:"messages"`
	NextCursor string         `json:"nextCursor,omitempty"`
	HasMore    bool           `json:"hasMore"`
}
