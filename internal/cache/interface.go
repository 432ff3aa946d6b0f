package cache

import (
	"context"
	"errors"
	"time"

	"github.com/weiawesome/wes-io-chat/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// HistoryCache stores immutable conversation pages.
type HistoryCache interface {
	Get(ctx context.Context, key string) (*domain.HistoryPage, error)
	Set(ctx context.Context, key string, page *domain.HistoryPage, ttl time.Duration) error
	BuildKey(a, b, cursor, direction string, limit int) string
	Close() error
}

// NopCache always misses. It is used when redis is disabled.
type NopCache struct{}

var _ HistoryCache = NopCache{}

func (NopCache) Get(context.Context, string) (*domain.HistoryPage, error) {
	return nil, ErrCacheMiss
}

func (NopCache) Set(context.Context, string, *domain.HistoryPage, time.Duration) error {
	return nil
}

func (NopCache) BuildKey(a, b, cursor, direction string, limit int) string {
	return buildKey("nop", a, b, cursor, direction, limit)
}

func (NopCache) Close() error { return nil }
