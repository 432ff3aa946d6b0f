package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/weiawesome/wes-io-chat/internal/config"
	"github.com/weiawesome/wes-io-chat/pkg/chatclient"
	"github.com/weiawesome/wes-io-chat/pkg/database"
	"github.com/weiawesome/wes-io-chat/pkg/storage"
	"github.com/weiawesome/wes-io-chat/pkg/wire"
)

const onePixelPNG = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{ShutdownTimeout: time.Second},
		WebSocket: config.WebSocketConfig{
			PingInterval:   time.Second,
			PongWait:       2 * time.Second,
			WriteWait:      time.Second,
			MaxMessageSize: 4096,
			SendBuffer:     64,
		},
		Auth: config.AuthConfig{
			JWTSecret:  "test-secret",
			TokenTTL:   time.Hour,
			Issuer:     "wes-io-chat",
			CookieName: "jwt",
			BcryptCost: bcrypt.MinCost,
		},
		Database: database.Config{
			Driver:   "sqlite",
			FilePath: fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
			LogLevel: "silent",
		},
		Cache: config.CacheConfig{TTL: time.Minute},
		Storage: config.StorageConfig{
			Enabled:       true,
			MaxImageBytes: 1 << 20,
			URLExpiry:     time.Hour,
			Config: storage.Config{
				Driver: "local",
				Local:  storage.LocalConfig{BasePath: t.TempDir(), PublicURL: "/media"},
			},
		},
		CORS: config.CORSConfig{AllowedOrigins: []string{"http://localhost:5173"}},
	}
}

type testEnv struct {
	srv *Server
	ts  *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	srv, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go srv.hub.Run(ctx)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		cancel()
		<-srv.hub.Done()
		ts.Close()
		srv.Close()
	})
	return &testEnv{srv: srv, ts: ts}
}

func (e *testEnv) signup(t *testing.T, name string) *chatclient.Client {
	t.Helper()
	c, err := chatclient.New(e.ts.URL)
	require.NoError(t, err)
	_, err = c.Signup(context.Background(), name, name+"@example.com", "Passw0rd!")
	require.NoError(t, err)
	return c
}

// peer is a connected user recording every push it receives.
type peer struct {
	api      *chatclient.Client
	sock     *chatclient.Socket
	presence *chatclient.PresenceController
	cancel   context.CancelFunc
	done     chan error

	mu     sync.Mutex
	events []wire.Payload
}

func (e *testEnv) connect(t *testing.T, api *chatclient.Client) *peer {
	t.Helper()
	p := &peer{
		api:  api,
		sock: chatclient.NewSocket(api.SocketURL(), api.Token(), chatclient.SocketConfig{InitialBackoff: 20 * time.Millisecond}),
		done: make(chan error, 1),
	}
	p.presence = chatclient.NewPresenceController(p.sock, api.Self().ID)
	for _, ev := range []string{wire.EventOnlineUsers, wire.EventNewMessage, wire.EventProfileUpdate, wire.EventAdmissionError} {
		p.sock.Subscribe(ev, p.record)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go func() { p.done <- p.sock.Run(ctx) }()
	t.Cleanup(cancel)
	return p
}

func (p *peer) record(payload wire.Payload) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, payload)
}

func (p *peer) messages() []wire.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []wire.Message
	for _, ev := range p.events {
		if m, ok := ev.(wire.Message); ok {
			out = append(out, m)
		}
	}
	return out
}

func (p *peer) profileUpdates() []wire.ProfileUpdate {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []wire.ProfileUpdate
	for _, ev := range p.events {
		if u, ok := ev.(wire.ProfileUpdate); ok {
			out = append(out, u)
		}
	}
	return out
}

func (p *peer) leave() {
	p.cancel()
	<-p.done
}

func ids(clients ...*chatclient.Client) []string {
	out := make([]string, len(clients))
	for i, c := range clients {
		out[i] = c.Self().ID
	}
	sort.Strings(out)
	return out
}

func requireOnline(t *testing.T, p *peer, want []string) {
	t.Helper()
	require.Eventually(t, func() bool {
		got := p.presence.Online()
		if len(got) != len(want) {
			return false
		}
		for i := range got {
			if got[i] != want[i] {
				return false
			}
		}
		return true
	}, 3*time.Second, 10*time.Millisecond, "want online %v, got %v", want, p.presence.Online())
}

func TestPresenceAndRouting(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u1, u2, u3 := env.signup(t, "ann"), env.signup(t, "bob"), env.signup(t, "cat")

	p1 := env.connect(t, u1)
	requireOnline(t, p1, ids(u1))

	p2 := env.connect(t, u2)
	requireOnline(t, p1, ids(u1, u2))
	requireOnline(t, p2, ids(u1, u2))

	p3 := env.connect(t, u3)
	all := ids(u1, u2, u3)
	requireOnline(t, p1, all)
	requireOnline(t, p2, all)
	requireOnline(t, p3, all)

	p2.leave()
	requireOnline(t, p1, ids(u1, u3))
	requireOnline(t, p3, ids(u1, u3))
	require.Equal(t, []string{u3.Self().ID}, p1.presence.Others())

	sent, err := u1.SendMessage(ctx, u3.Self().ID, "hi", "")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(p3.messages()) == 1 }, 3*time.Second, 10*time.Millisecond)
	require.Equal(t, *sent, p3.messages()[0])
	require.Equal(t, u1.Self().ID, p3.messages()[0].SenderID)

	// Sending to an offline user only persists.
	offline, err := u1.SendMessage(ctx, u2.Self().ID, "later", "")
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	require.Empty(t, p1.messages())
	require.Len(t, p3.messages(), 1)

	page, err := u2.History(ctx, u1.Self().ID, chatclient.HistoryQuery{})
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	require.Equal(t, offline.ID, page.Messages[0].ID)

	online, err := u3.Online(ctx)
	require.NoError(t, err)
	require.Equal(t, ids(u1, u3), online)
}

func TestProfileUpdateReachesEveryConnection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u1, u2 := env.signup(t, "ann"), env.signup(t, "bob")

	p1 := env.connect(t, u1)
	p2 := env.connect(t, u2)
	requireOnline(t, p1, ids(u1, u2))
	requireOnline(t, p2, ids(u1, u2))

	user, err := u1.UpdateProfile(ctx, onePixelPNG, nil)
	require.NoError(t, err)
	require.NotEmpty(t, user.ProfilePic)

	for _, p := range []*peer{p1, p2} {
		require.Eventually(t, func() bool { return len(p.profileUpdates()) == 1 }, 3*time.Second, 10*time.Millisecond)
		require.Equal(t, user.ProfilePic, p.profileUpdates()[0].ProfilePic)
	}

	resp, err := http.Get(env.ts.URL + user.ProfilePic)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "image/png", resp.Header.Get("Content-Type"))
}

func TestLogoutClosesLiveConnection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u1, u2 := env.signup(t, "ann"), env.signup(t, "bob")

	p1 := env.connect(t, u1)
	p2 := env.connect(t, u2)
	requireOnline(t, p1, ids(u1, u2))

	require.NoError(t, u2.Logout(ctx))
	requireOnline(t, p1, ids(u1))

	// The revoked token is refused on reconnect.
	select {
	case err := <-p2.done:
		require.ErrorIs(t, err, chatclient.ErrNotAdmitted)
	case <-time.After(3 * time.Second):
		t.Fatal("socket kept reconnecting with a revoked token")
	}
}

func TestUnauthenticatedSocketIsNotAdmitted(t *testing.T) {
	env := newTestEnv(t)
	u1 := env.signup(t, "ann")
	p1 := env.connect(t, u1)
	requireOnline(t, p1, ids(u1))

	conn, _, err := websocket.DefaultDialer.Dial(u1.SocketURL(), nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	p, err := wire.Decode(frame)
	require.NoError(t, err)
	require.Equal(t, wire.EventAdmissionError, p.Event())

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, ids(u1), env.srv.hub.Online())
}

func TestReconnectSupersedesOldConnection(t *testing.T) {
	env := newTestEnv(t)
	u1, u2 := env.signup(t, "ann"), env.signup(t, "bob")
	p2 := env.connect(t, u2)
	requireOnline(t, p2, ids(u2))

	header := http.Header{"Authorization": []string{"Bearer " + u1.Token()}}
	c1, _, err := websocket.DefaultDialer.Dial(u1.SocketURL(), header)
	require.NoError(t, err)
	requireOnline(t, p2, ids(u1, u2))

	c2, _, err := websocket.DefaultDialer.Dial(u1.SocketURL(), header)
	require.NoError(t, err)
	defer c2.Close()

	// The superseded connection closes late; u1 must stay online.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, c1.Close())
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, ids(u1, u2), env.srv.hub.Online())
	require.Equal(t, ids(u1, u2), p2.presence.Online())
}

func TestHTTPSurface(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(env.ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(env.ts.URL + "/api/messages/users")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	u1 := env.signup(t, "ann")
	_, err = u1.SendMessage(context.Background(), u1.Self().ID, "me", "")
	var apiErr *chatclient.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.Status)

	dup, err := chatclient.New(env.ts.URL)
	require.NoError(t, err)
	_, err = dup.Signup(context.Background(), "ann", "ann@example.com", "Passw0rd!")
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusConflict, apiErr.Status)

	_, err = dup.Signup(context.Background(), "bob", "bob@example.com", "Aa1!"+strings.Repeat("x", 80))
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestMediaPrefix(t *testing.T) {
	require.Equal(t, "/media", mediaPrefix("/media"))
	require.Equal(t, "/static/img", mediaPrefix("https://cdn.example.com/static/img"))
	require.Equal(t, "/media", mediaPrefix(""))
}
