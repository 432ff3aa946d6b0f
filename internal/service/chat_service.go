package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"github.com/weiawesome/wes-io-chat/internal/audit"
	"github.com/weiawesome/wes-io-chat/internal/cache"
	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/idgen"
	"github.com/weiawesome/wes-io-chat/internal/kafka"
	"github.com/weiawesome/wes-io-chat/internal/media"
	"github.com/weiawesome/wes-io-chat/internal/metrics"
	"github.com/weiawesome/wes-io-chat/internal/repository"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/wire"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100
	MaxTextLength       = 4000
)

// chatServiceImpl implements ChatService.
type chatServiceImpl struct {
	users    repository.UserRepository
	messages repository.MessageRepository
	cache    cache.HistoryCache
	cacheTTL time.Duration
	ids      IDGenerator
	uploader Uploader
	router   Router
	sessions Sessions
	producer kafka.EventProducer
	sf       singleflight.Group
}

// ChatDeps groups the collaborators of the chat service.
type ChatDeps struct {
	Users    repository.UserRepository
	Messages repository.MessageRepository
	Cache    cache.HistoryCache
	CacheTTL time.Duration
	IDs      IDGenerator
	Uploader Uploader
	Router   Router
	Sessions Sessions
	Producer kafka.EventProducer
}

// NewChatService creates a new chat service.
func NewChatService(deps ChatDeps) ChatService {
	if deps.Cache == nil {
		deps.Cache = cache.NopCache{}
	}
	if deps.Producer == nil {
		deps.Producer = kafka.NopProducer{}
	}
	return &chatServiceImpl{
		users:    deps.Users,
		messages: deps.Messages,
		cache:    deps.Cache,
		cacheTTL: deps.CacheTTL,
		ids:      deps.IDs,
		uploader: deps.Uploader,
		router:   deps.Router,
		sessions: deps.Sessions,
		producer: deps.Producer,
	}
}

// ListContacts returns every user except the caller.
func (s *chatServiceImpl) ListContacts(ctx context.Context, userID string) ([]*domain.User, error) {
	return s.users.ListExcept(ctx, userID)
}

// SendMessage stores the message, then routes it to the recipient.
func (s *chatServiceImpl) SendMessage(ctx context.Context, senderID, recipientID string, req *domain.SendMessageRequest) (*wire.Message, error) {
	l := log.Ctx(ctx)

	text := strings.TrimSpace(req.Text)
	if text == "" && req.Image == "" {
		return nil, domain.ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return nil, domain.ErrMessageTooLong
	}
	if senderID == recipientID {
		return nil, domain.ErrSelfMessage
	}
	if _, err := s.users.GetByID(ctx, recipientID); err != nil {
		return nil, err
	}

	var imageURL, imageKey string
	if req.Image != "" {
		url, key, err := s.uploader.Upload(ctx, media.FolderMessages, senderID, req.Image)
		if err != nil {
			metrics.MessageFailures.WithLabelValues("upload").Inc()
			return nil, err
		}
		imageURL, imageKey = url, key
	}

	id, createdAt, err := s.ids.Generate()
	if err != nil {
		l.Error().Err(err).Msg("failed to generate message id")
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	msg := &domain.Message{
		ID:          id,
		SenderID:    senderID,
		RecipientID: recipientID,
		Text:        text,
		ImageURL:    imageURL,
		CreatedAt:   createdAt,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		metrics.MessageFailures.WithLabelValues("persist").Inc()
		l.Error().Err(err).
			Str(log.FieldUserID, senderID).
			Str(log.FieldRecipientID, recipientID).
			Msg("failed to persist message")
		if imageKey != "" {
			if delErr := s.uploader.Delete(ctx, imageKey); delErr != nil {
				l.Warn().Err(delErr).Str("key", imageKey).Msg("failed to remove orphaned image")
			}
		}
		audit.LogWithTarget(ctx, audit.ActionSendFailed, senderID, recipientID, "message not stored")
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	metrics.MessagesPersisted.Inc()

	out := msg.ToWire()
	if err := s.producer.ProduceMessage(ctx, out); err != nil {
		l.Warn().Err(err).Str(log.FieldMessageID, out.ID).Msg("failed to publish message")
	}

	delivered := s.router.DeliverMessage(ctx, out)

	l.Debug().
		Str(log.FieldMessageID, out.ID).
		Str(log.FieldRecipientID, recipientID).
		Bool("delivered", delivered).
		Msg("message sent")
	audit.LogWithTarget(ctx, audit.ActionSendMessage, senderID, recipientID, "message sent")

	return &out, nil
}

// GetHistory returns one page of the conversation between userID and
// partnerID, oldest first.
func (s *chatServiceImpl) GetHistory(
	ctx context.Context,
	userID, partnerID string,
	cursor string,
	limit int,
	direction string,
) (*domain.HistoryPage, error) {
	if cursor != "" {
		if err := idgen.Validate(cursor); err != nil {
			return nil, domain.ErrInvalidCursor
		}
	}
	limit = clampLimit(limit)
	dir := repository.ParseDirection(direction)

	// The newest page changes with every message and forward pages grow at
	// the tail, so only backward pages behind a cursor are cached.
	if cursor == "" || dir == repository.DirectionForward {
		return s.fetch(ctx, userID, partnerID, cursor, limit, dir)
	}

	cacheKey := s.cache.BuildKey(userID, partnerID, cursor, string(dir), limit)

	result, err, _ := s.sf.Do(cacheKey, func() (interface{}, error) {
		return s.fetchWithCache(ctx, userID, partnerID, cursor, limit, dir, cacheKey)
	})
	if err != nil {
		return nil, err
	}

	page, ok := result.(*domain.HistoryPage)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from singleflight")
	}
	return page, nil
}

func (s *chatServiceImpl) fetchWithCache(
	ctx context.Context,
	userID, partnerID string,
	cursor string,
	limit int,
	dir repository.Direction,
	cacheKey string,
) (*domain.HistoryPage, error) {
	cached, err := s.cache.Get(ctx, cacheKey)
	if err == nil {
		metrics.CacheRequests.WithLabelValues("hit").Inc()
		return cached, nil
	}
	metrics.CacheRequests.WithLabelValues(metrics.OutcomeMiss).Inc()

	if !errors.Is(err, cache.ErrCacheMiss) {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("cache get error")
	}

	page, err := s.fetch(ctx, userID, partnerID, cursor, limit, dir)
	if err != nil {
		return nil, err
	}

	go func() {
		cacheCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.cache.Set(cacheCtx, cacheKey, page, s.cacheTTL); err != nil {
			l := log.L()
			l.Warn().Err(err).Msg("cache set error")
		}
	}()

	return page, nil
}

func (s *chatServiceImpl) fetch(
	ctx context.Context,
	userID, partnerID string,
	cursor string,
	limit int,
	dir repository.Direction,
) (*domain.HistoryPage, error) {
	msgs, nextCursor, hasMore, err := s.messages.GetConversation(ctx, userID, partnerID, cursor, limit, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages from repository: %w", err)
	}

	out := make([]wire.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.ToWire()
	}
	if dir == repository.DirectionBackward {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}

	return &domain.HistoryPage{
		Messages:   out,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// Online returns the sorted ids of connected users.
func (s *chatServiceImpl) Online() []string {
	return s.sessions.Online()
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}
