package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/weiawesome/wes-io-chat/internal/domain"
)

func TestBuildKeyIsSymmetric(t *testing.T) {
	require.Equal(t,
		buildKey("p", "a", "b", "c1", "backward", 50),
		buildKey("p", "b", "a", "c1", "backward", 50),
	)
	require.Equal(t, "p:a:b:start:backward:50", buildKey("p", "b", "a", "", "backward", 50))
}

func TestNopCacheAlwaysMisses(t *testing.T) {
	ctx := context.Background()
	c := NopCache{}
	require.NoError(t, c.Set(ctx, "k", &domain.HistoryPage{}, time.Minute))

	_, err := c.Get(ctx, "k")
	require.ErrorIs(t, err, ErrCacheMiss)
	require.NoError(t, c.Close())
}
