package service

import (
	"context"
	"time"

	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/pkg/jwt"
	"github.com/weiawesome/wes-io-chat/pkg/wire"
)

// AuthService manages accounts and sessions.
type AuthService interface {
	Signup(ctx context.Context, req *domain.SignupRequest) (*domain.AuthResponse, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.AuthResponse, error)
	// Logout revokes the session token and closes the user's live socket.
	Logout(ctx context.Context, claims *jwt.Claims)
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	// UpdateProfile stores a new profile picture and announces it to every
	// connected user.
	UpdateProfile(ctx context.Context, userID string, req *domain.UpdateProfileRequest) (*domain.User, error)
}

// ChatService handles direct messages.
type ChatService interface {
	ListContacts(ctx context.Context, userID string) ([]*domain.User, error)
	// SendMessage persists a message and then pushes it to the recipient if
	// online. Nothing is pushed when persistence fails.
	SendMessage(ctx context.Context, senderID, recipientID string, req *domain.SendMessageRequest) (*wire.Message, error)
	GetHistory(ctx context.Context, userID, partnerID, cursor string, limit int, direction string) (*domain.HistoryPage, error)
	Online() []string
}

// Router pushes events to live connections.
type Router interface {
	DeliverMessage(ctx context.Context, msg wire.Message) bool
	BroadcastProfileUpdate(ctx context.Context, upd wire.ProfileUpdate) int
}

// Sessions controls live sockets.
type Sessions interface {
	Disconnect(userID string) bool
	Online() []string
}

// Uploader stores images.
type Uploader interface {
	Upload(ctx context.Context, folder, ownerID, dataURL string) (url, key string, err error)
	Delete(ctx context.Context, key string) error
}

// TokenIssuer creates and revokes session tokens.
type TokenIssuer interface {
	GenerateToken(userID, email string) (string, time.Time, error)
	RevokeToken(claims *jwt.Claims)
}

// IDGenerator produces sortable message ids.
type IDGenerator interface {
	Generate() (string, time.Time, error)
}
