package repository

import (
	"context"
	"errors"

	"github.com/weiawesome/wes-io-chat/internal/domain"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailExists  = errors.New("email already exists")
)

type Direction string

const (
	DirectionBackward Direction = "backward" // DESC - from newest to oldest
	DirectionForward  Direction = "forward"  // ASC - from oldest to newest
)

func ParseDirection(s string) Direction {
	if s == "forward" {
		return DirectionForward
	}
	return DirectionBackward
}

// UserRepository defines the interface for user data persistence.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// ListExcept returns every user except excludeID, ordered by name.
	ListExcept(ctx context.Context, excludeID string) ([]*domain.User, error)
	UpdateProfile(ctx context.Context, user *domain.User) error
}

// MessageRepository defines the interface for message persistence.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error

	// GetConversation pages through the messages exchanged between a and b
	// in the given direction, starting after cursor (exclusive). Messages are
	// returned in query order.
	GetConversation(
		ctx context.Context,
		a, b string,
		cursor string,
		limit int,
		direction Direction,
	) (messages []*domain.Message, nextCursor string, hasMore bool, err error)
}
