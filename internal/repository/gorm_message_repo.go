package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/pkg/database"
)

// GormMessageRepository implements MessageRepository using GORM.
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GORM-based message repository.
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// Create stores a message. The id and timestamp must already be set.
func (r *GormMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	if msg.ID == "" {
		return fmt.Errorf("message id is required")
	}
	if err := r.db.WithContext(ctx).Create(domain.MessageToModel(msg)).Error; err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// GetConversation implements MessageRepository.
func (r *GormMessageRepository) GetConversation(
	ctx context.Context,
	a, b string,
	cursor string,
	limit int,
	direction Direction,
) ([]*domain.Message, string, bool, error) {
	// Query limit + 1 to determine if there are more results
	query := r.db.WithContext(ctx).
		Where("conversation_key = ?", domain.ConversationKey(a, b)).
		Limit(limit + 1)

	if direction == DirectionBackward {
		if cursor != "" {
			query = query.Where("id < ?", cursor)
		}
		query = query.Order("id DESC")
	} else {
		if cursor != "" {
			query = query.Where("id > ?", cursor)
		}
		query = query.Order("id ASC")
	}

	var models []domain.MessageModel
	if err := query.Find(&models).Error; err != nil {
		return nil, "", false, fmt.Errorf("failed to query messages: %w", err)
	}

	// Determine if there are more results
	hasMore := len(models) > limit
	if hasMore {
		models = models[:limit]
	}

	messages := make([]*domain.Message, 0, len(models))
	for i := range models {
		messages = append(messages, models[i].ToDomain())
	}

	// Get next cursor from the last message
	var nextCursor string
	if len(messages) > 0 {
		nextCursor = messages[len(messages)-1].ID
	}

	return messages, nextCursor, hasMore, nil
}

// Migrate creates or updates the tables used by the repositories.
func Migrate(db *gorm.DB) error {
	return database.AutoMigrate(db, &domain.UserModel{}, &domain.MessageModel{})
}
