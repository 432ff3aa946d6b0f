package log

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const headerRequestID = "X-Request-ID"

// GinMiddleware attaches a request-scoped logger to the request context and
// logs each request once it completes. The request id is taken from
// X-Request-ID or generated, and echoed back in the response.
//
// Requests to quietPaths (health probes, scrapes) log at debug. Websocket
// upgrades log when the socket closes, with the socket lifetime as latency.
func GinMiddleware(logger zerolog.Logger, quietPaths ...string) gin.HandlerFunc {
	quiet := make(map[string]struct{}, len(quietPaths))
	for _, p := range quietPaths {
		quiet[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader(headerRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(headerRequestID, reqID)

		child := logger.With().
			Str(FieldRequestID, reqID).
			Str(FieldMethod, c.Request.Method).
			Str(FieldPath, c.Request.URL.Path).
			Str(FieldClientIP, c.ClientIP()).
			Logger()
		c.Request = c.Request.WithContext(WithLogger(c.Request.Context(), child))

		c.Next()

		_, isQuiet := quiet[c.Request.URL.Path]
		evt := child.WithLevel(requestLevel(c.Writer.Status(), isQuiet)).
			Int(FieldStatus, c.Writer.Status()).
			Float64(FieldLatency, float64(time.Since(start).Milliseconds()))

		// The auth middleware stores the caller under FieldUserID.
		if userID := c.GetString(FieldUserID); userID != "" {
			evt = evt.Str(FieldUserID, userID)
		}
		if len(c.Errors) > 0 {
			evt = evt.Str("errors", c.Errors.String())
		}

		if c.IsWebsocket() {
			evt.Msg("socket closed")
			return
		}
		evt.Msg("request completed")
	}
}

func requestLevel(status int, quiet bool) zerolog.Level {
	switch {
	case status >= 500:
		return zerolog.ErrorLevel
	case quiet:
		return zerolog.DebugLevel
	case status >= 400:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}
