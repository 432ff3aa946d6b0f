package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(LocalConfig{BasePath: t.TempDir(), PublicURL: "/media/"})
	require.NoError(t, err)

	require.NoError(t, s.Write(ctx, "avatars/u1/a.png", strings.NewReader("png"), 3, "image/png"))

	url, err := s.GetURL(ctx, "avatars/u1/a.png", time.Hour)
	require.NoError(t, err)
	require.Equal(t, "/media/avatars/u1/a.png", url)

	rc, err := s.Read(ctx, "avatars/u1/a.png")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "png", string(data))

	require.NoError(t, s.Delete(ctx, "avatars/u1/a.png"))
	_, err = s.Read(ctx, "avatars/u1/a.png")
	require.ErrorIs(t, err, ErrNotFound)

	// Deleting twice is fine.
	require.NoError(t, s.Delete(ctx, "avatars/u1/a.png"))
}

func TestLocalStorageStaysInsideBase(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	s, err := NewLocalStorage(LocalConfig{BasePath: base})
	require.NoError(t, err)

	require.NoError(t, s.Write(ctx, "../../escape.txt", strings.NewReader("x"), 1, "text/plain"))
	path, err := s.fullPath("../../escape.txt")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(path, s.basePath))

	_, err = s.fullPath("")
	require.Error(t, err)
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), Config{Driver: "ftp"})
	require.Error(t, err)
}

func TestJoinURLEscapesSegments(t *testing.T) {
	require.Equal(t, "https://cdn.example.com/avatars/u%201/a.png", joinURL("https://cdn.example.com/", "avatars/u 1/a.png"))
	require.Equal(t, "/media/messages/m.jpg", joinURL("/media", "messages/m.jpg"))
}
