package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, zerolog.DebugLevel, parseLevel("DEBUG"))
	require.Equal(t, zerolog.WarnLevel, parseLevel(" warning "))
	require.Equal(t, zerolog.InfoLevel, parseLevel(""))
	require.Equal(t, zerolog.InfoLevel, parseLevel("verbose"))
	require.Equal(t, zerolog.TraceLevel, parseLevel("trace"))
}

func TestNewWritesServiceField(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "info", ServiceName: "chat", Instance: "node-1", Output: &buf})

	logger.Debug().Msg("dropped")
	logger.Info().Str(FieldUserID, "u1").Msg("kept")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "chat", entry[FieldService])
	require.Equal(t, "node-1", entry[FieldInstance])
	require.Equal(t, "u1", entry[FieldUserID])
	require.Equal(t, "kept", entry["message"])
}

func TestCtxFallsBackToGlobal(t *testing.T) {
	var buf bytes.Buffer
	child := New(Config{Output: &buf}).With().Str(FieldRequestID, "r1").Logger()

	ctx := WithLogger(context.Background(), child)
	l := Ctx(ctx)
	l.Info().Msg("hello")
	require.Contains(t, buf.String(), `"request_id":"r1"`)

	require.NotPanics(t, func() {
		l := Ctx(context.Background())
		_ = l
	})
}

func TestWithConnAddsSocketFields(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithConn(context.Background(), New(Config{Output: &buf}), "u1", "c1")
	l := Ctx(ctx)
	l.Info().Msg("admitted")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "u1", entry[FieldUserID])
	require.Equal(t, "c1", entry[FieldConnID])
}

func TestLogCallLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "info", Output: &buf})

	logCall(logger, "/grpc.health.v1.Health/Check", time.Now(), nil).Msg("probe")
	require.Empty(t, buf.String())

	logCall(logger, "/chat.Foo/Bar", time.Now(), status.Error(codes.Internal, "boom")).Msg("failed")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "Internal", entry[FieldGRPCCode])
}
