package log

import (
	"context"

	"github.com/rs/zerolog"
)

// WithLogger stores logger in ctx using zerolog's context key, so
// zerolog.Ctx and Ctx both find it.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return logger.WithContext(ctx)
}

// Ctx returns the logger stored in ctx, or the global logger when ctx
// carries none.
func Ctx(ctx context.Context) zerolog.Logger {
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		return L()
	}
	return *l
}

// WithConn returns a context whose logger carries the user and connection
// ids of a socket.
func WithConn(ctx context.Context, base zerolog.Logger, userID, connID string) context.Context {
	return WithLogger(ctx, base.With().
		Str(FieldUserID, userID).
		Str(FieldConnID, connID).
		Logger())
}
