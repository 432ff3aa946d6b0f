package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("auth.jwt_secret", "s3cret")

	cfg, err := unmarshal(v)
	require.NoError(t, err)
	require.Equal(t, 5001, cfg.Server.Port)
	require.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
	require.Equal(t, "jwt", cfg.Auth.CookieName)
	require.Equal(t, 256, cfg.WebSocket.SendBuffer)
	require.False(t, cfg.WebSocket.CloseSuperseded)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, int64(10*1024*1024), cfg.Storage.MaxImageBytes)
	require.Equal(t, "local", cfg.Storage.Driver)
	require.Equal(t, "/media", cfg.Storage.Local.PublicURL)
	require.Equal(t, []string{"http://localhost:5173"}, cfg.CORS.AllowedOrigins)
}

func TestRequiresSecret(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	_, err := unmarshal(v)
	require.ErrorContains(t, err, "jwt_secret")
}

func TestRejectsPingLongerThanPongWait(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("auth.jwt_secret", "s3cret")
	v.Set("websocket.ping_interval", "2m")

	_, err := unmarshal(v)
	require.ErrorContains(t, err, "ping_interval")
}

func TestSplitList(t *testing.T) {
	require.Equal(t, []string{"a", "b", "c"}, splitList([]string{"a, b", "", "c"}))
	require.Nil(t, splitList(nil))
}
