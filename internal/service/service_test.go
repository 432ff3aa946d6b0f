package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/weiawesome/wes-io-chat/internal/cache"
	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/idgen"
	"github.com/weiawesome/wes-io-chat/internal/kafka"
	"github.com/weiawesome/wes-io-chat/internal/repository"
	"github.com/weiawesome/wes-io-chat/pkg/database"
	"github.com/weiawesome/wes-io-chat/pkg/jwt"
	"github.com/weiawesome/wes-io-chat/pkg/wire"
)

type fakeRouter struct {
	mu        sync.Mutex
	delivered []wire.Message
	updates   []wire.ProfileUpdate
	online    bool
}

func (r *fakeRouter) DeliverMessage(_ context.Context, msg wire.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delivered = append(r.delivered, msg)
	return r.online
}

func (r *fakeRouter) BroadcastProfileUpdate(_ context.Context, upd wire.ProfileUpdate) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, upd)
	return 1
}

type fakeSessions struct {
	disconnected []string
	online       []string
}

func (s *fakeSessions) Disconnect(userID string) bool {
	s.disconnected = append(s.disconnected, userID)
	return true
}

func (s *fakeSessions) Online() []string { return s.online }

type fakeUploader struct {
	err     error
	deleted []string
}

func (u *fakeUploader) Upload(_ context.Context, folder, ownerID, _ string) (string, string, error) {
	if u.err != nil {
		return "", "", u.err
	}
	key := folder + "/" + ownerID + "/img.png"
	return "https://cdn/" + key, key, nil
}

func (u *fakeUploader) Delete(_ context.Context, key string) error {
	u.deleted = append(u.deleted, key)
	return nil
}

type failingMessages struct {
	repository.MessageRepository
}

func (failingMessages) Create(context.Context, *domain.Message) error {
	return errors.New("disk full")
}

type countingMessages struct {
	repository.MessageRepository
	mu    sync.Mutex
	calls int
}

func (m *countingMessages) GetConversation(ctx context.Context, a, b, cursor string, limit int, dir repository.Direction) ([]*domain.Message, string, bool, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.MessageRepository.GetConversation(ctx, a, b, cursor, limit, dir)
}

type memCache struct {
	mu    sync.Mutex
	pages map[string]*domain.HistoryPage
}

func (c *memCache) Get(_ context.Context, key string) (*domain.HistoryPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pages[key]; ok {
		return p, nil
	}
	return nil, cache.ErrCacheMiss
}

func (c *memCache) Set(_ context.Context, key string, page *domain.HistoryPage, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages[key] = page
	return nil
}

func (c *memCache) BuildKey(a, b, cursor, direction string, limit int) string {
	return fmt.Sprintf("%s|%s|%s|%d", domain.ConversationKey(a, b), cursor, direction, limit)
}

func (c *memCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pages)
}

func (c *memCache) Close() error { return nil }

type fixture struct {
	users    repository.UserRepository
	messages repository.MessageRepository
	tokens   *jwt.Manager
	router   *fakeRouter
	sessions *fakeSessions
	uploader *fakeUploader
	auth     AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.New(&database.Config{
		Driver:   "sqlite",
		FilePath: fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))
	t.Cleanup(func() { database.Close(db) })

	tokens, err := jwt.NewManager("test-secret", time.Hour, "chat")
	require.NoError(t, err)

	f := &fixture{
		users:    repository.NewGormUserRepository(db),
		messages: repository.NewGormMessageRepository(db),
		tokens:   tokens,
		router:   &fakeRouter{},
		sessions: &fakeSessions{},
		uploader: &fakeUploader{},
	}
	f.auth = NewAuthService(f.users, tokens, f.sessions, f.router, f.uploader, kafka.NopProducer{}, bcrypt.MinCost)
	return f
}

func (f *fixture) chat(messages repository.MessageRepository, c cache.HistoryCache) ChatService {
	return NewChatService(ChatDeps{
		Users:    f.users,
		Messages: messages,
		Cache:    c,
		CacheTTL: time.Minute,
		IDs:      idgen.NewULIDGenerator(),
		Uploader: f.uploader,
		Router:   f.router,
		Sessions: f.sessions,
	})
}

func (f *fixture) signup(t *testing.T, name string) *domain.User {
	t.Helper()
	resp, err := f.auth.Signup(context.Background(), &domain.SignupRequest{
		FullName: name,
		Email:    name + "@example.com",
		Password: "Passw0rd!",
	})
	require.NoError(t, err)
	return resp.User
}

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		pw   string
		want error
	}{
		{"Passw0rd", nil},
		{"password1!", nil},
		{"abcdefg 1", nil},
		{"pässwörd1", nil},
		{"Aa1!" + strings.Repeat("x", 68), nil},
		{"Pa1!", domain.ErrWeakPassword},
		{"passwordonly", domain.ErrWeakPassword},
		{"password12", domain.ErrWeakPassword},
		{"Aa1!" + strings.Repeat("x", 69), domain.ErrPasswordTooLong},
		{"Aa1!" + strings.Repeat("é", 35), domain.ErrPasswordTooLong},
	}
	for _, tc := range cases {
		err := ValidatePassword(tc.pw)
		if tc.want == nil {
			require.NoError(t, err, tc.pw)
			continue
		}
		require.ErrorIs(t, err, tc.want, tc.pw)
	}
}

func TestSignupAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.auth.Signup(ctx, &domain.SignupRequest{FullName: " Ann ", Email: "ann@example.com", Password: "Passw0rd!"})
	require.NoError(t, err)
	require.Equal(t, "Ann", resp.User.FullName)

	claims, err := f.tokens.ValidateToken(resp.Token)
	require.NoError(t, err)
	require.Equal(t, resp.User.ID, claims.UserID)

	_, err = f.auth.Signup(ctx, &domain.SignupRequest{FullName: "Ann", Email: "ann@example.com", Password: "Passw0rd!"})
	require.ErrorIs(t, err, repository.ErrEmailExists)

	_, err = f.auth.Signup(ctx, &domain.SignupRequest{FullName: "Bob", Email: "bob@example.com", Password: "short"})
	require.ErrorIs(t, err, domain.ErrWeakPassword)

	_, err = f.auth.Signup(ctx, &domain.SignupRequest{FullName: "Bob", Email: "bob@example.com", Password: "Aa1!" + strings.Repeat("x", 80)})
	require.ErrorIs(t, err, domain.ErrPasswordTooLong)

	_, err = f.auth.Signup(ctx, &domain.SignupRequest{FullName: "  ", Email: "x@example.com", Password: "Passw0rd!"})
	require.ErrorIs(t, err, domain.ErrMissingFields)

	login, err := f.auth.Login(ctx, &domain.LoginRequest{Email: "ann@example.com", Password: "Passw0rd!"})
	require.NoError(t, err)
	require.Equal(t, resp.User.ID, login.User.ID)

	_, err = f.auth.Login(ctx, &domain.LoginRequest{Email: "ann@example.com", Password: "wrong"})
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = f.auth.Login(ctx, &domain.LoginRequest{Email: "nobody@example.com", Password: "Passw0rd!"})
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestLogoutRevokesAndDisconnects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.auth.Signup(ctx, &domain.SignupRequest{FullName: "Ann", Email: "ann@example.com", Password: "Passw0rd!"})
	require.NoError(t, err)
	claims, err := f.tokens.ValidateToken(resp.Token)
	require.NoError(t, err)

	f.auth.Logout(ctx, claims)
	require.Equal(t, []string{resp.User.ID}, f.sessions.disconnected)

	_, err = f.tokens.ValidateToken(resp.Token)
	require.Error(t, err)

	require.NotPanics(t, func() { f.auth.Logout(ctx, nil) })
}

func TestUpdateProfileBroadcasts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ann := f.signup(t, "ann")

	name := "Annie"
	user, err := f.auth.UpdateProfile(ctx, ann.ID, &domain.UpdateProfileRequest{ProfilePic: "data:image/png;base64,AA==", FullName: &name})
	require.NoError(t, err)
	require.Equal(t, "Annie", user.FullName)
	require.Contains(t, user.ProfilePic, "avatars/"+ann.ID)

	require.Len(t, f.router.updates, 1)
	require.Equal(t, wire.ProfileUpdate{UserID: ann.ID, ProfilePic: user.ProfilePic, FullName: "Annie"}, f.router.updates[0])

	stored, err := f.auth.GetUser(ctx, ann.ID)
	require.NoError(t, err)
	require.Equal(t, user.ProfilePic, stored.ProfilePic)

	f.uploader.err = domain.ErrInvalidImage
	_, err = f.auth.UpdateProfile(ctx, ann.ID, &domain.UpdateProfileRequest{ProfilePic: "nope"})
	require.ErrorIs(t, err, domain.ErrInvalidImage)
	require.Len(t, f.router.updates, 1)
}

func TestSendMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ann, bob := f.signup(t, "ann"), f.signup(t, "bob")
	chat := f.chat(f.messages, nil)

	f.router.online = true
	msg, err := chat.SendMessage(ctx, ann.ID, bob.ID, &domain.SendMessageRequest{Text: " hi "})
	require.NoError(t, err)
	require.Equal(t, "hi", msg.Text)
	require.NoError(t, idgen.Validate(msg.ID))
	require.Equal(t, []wire.Message{*msg}, f.router.delivered)

	withImage, err := chat.SendMessage(ctx, bob.ID, ann.ID, &domain.SendMessageRequest{Image: "data:image/png;base64,AA=="})
	require.NoError(t, err)
	require.Empty(t, withImage.Text)
	require.NotEmpty(t, withImage.ImageURL)

	_, err = chat.SendMessage(ctx, ann.ID, bob.ID, &domain.SendMessageRequest{Text: "   "})
	require.ErrorIs(t, err, domain.ErrEmptyMessage)

	cjk, err := chat.SendMessage(ctx, ann.ID, bob.ID, &domain.SendMessageRequest{Text: strings.Repeat("你", MaxTextLength)})
	require.NoError(t, err)
	require.Equal(t, MaxTextLength, utf8.RuneCountInString(cjk.Text))

	_, err = chat.SendMessage(ctx, ann.ID, bob.ID, &domain.SendMessageRequest{Text: strings.Repeat("你", MaxTextLength+1)})
	require.ErrorIs(t, err, domain.ErrMessageTooLong)

	_, err = chat.SendMessage(ctx, ann.ID, bob.ID, &domain.SendMessageRequest{Text: strings.Repeat("a", MaxTextLength+1)})
	require.ErrorIs(t, err, domain.ErrMessageTooLong)

	_, err = chat.SendMessage(ctx, ann.ID, ann.ID, &domain.SendMessageRequest{Text: "me"})
	require.ErrorIs(t, err, domain.ErrSelfMessage)

	_, err = chat.SendMessage(ctx, ann.ID, "missing", &domain.SendMessageRequest{Text: "hi"})
	require.ErrorIs(t, err, repository.ErrUserNotFound)

	require.Len(t, f.router.delivered, 3)
}

func TestSendMessagePersistenceFailureSkipsPush(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ann, bob := f.signup(t, "ann"), f.signup(t, "bob")
	chat := f.chat(failingMessages{f.messages}, nil)

	_, err := chat.SendMessage(ctx, ann.ID, bob.ID, &domain.SendMessageRequest{Text: "hi", Image: "data:image/png;base64,AA=="})
	require.ErrorIs(t, err, domain.ErrPersistence)
	require.Empty(t, f.router.delivered)
	require.Len(t, f.uploader.deleted, 1)
}

func TestGetHistoryPaging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ann, bob := f.signup(t, "ann"), f.signup(t, "bob")
	counting := &countingMessages{MessageRepository: f.messages}
	mc := &memCache{pages: map[string]*domain.HistoryPage{}}
	chat := f.chat(counting, mc)

	var ids []string
	for i := 0; i < 5; i++ {
		from, to := ann.ID, bob.ID
		if i%2 == 1 {
			from, to = to, from
		}
		msg, err := chat.SendMessage(ctx, from, to, &domain.SendMessageRequest{Text: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
		ids = append(ids, msg.ID)
	}

	latest, err := chat.GetHistory(ctx, bob.ID, ann.ID, "", 2, "backward")
	require.NoError(t, err)
	require.True(t, latest.HasMore)
	require.Equal(t, []string{ids[3], ids[4]}, messageIDs(latest.Messages))

	older, err := chat.GetHistory(ctx, ann.ID, bob.ID, latest.NextCursor, 2, "backward")
	require.NoError(t, err)
	require.Equal(t, []string{ids[1], ids[2]}, messageIDs(older.Messages))
	require.Equal(t, 2, counting.calls)

	require.Eventually(t, func() bool { return mc.len() == 1 }, time.Second, 10*time.Millisecond)
	again, err := chat.GetHistory(ctx, bob.ID, ann.ID, latest.NextCursor, 2, "backward")
	require.NoError(t, err)
	require.Equal(t, older, again)
	require.Equal(t, 2, counting.calls)

	forward, err := chat.GetHistory(ctx, ann.ID, bob.ID, ids[2], 10, "forward")
	require.NoError(t, err)
	require.False(t, forward.HasMore)
	require.Equal(t, []string{ids[3], ids[4]}, messageIDs(forward.Messages))

	_, err = chat.GetHistory(ctx, ann.ID, bob.ID, "not-a-ulid", 2, "backward")
	require.ErrorIs(t, err, domain.ErrInvalidCursor)
}

func TestClampLimit(t *testing.T) {
	require.Equal(t, DefaultHistoryLimit, clampLimit(0))
	require.Equal(t, MaxHistoryLimit, clampLimit(1000))
	require.Equal(t, 7, clampLimit(7))
}

func messageIDs(msgs []wire.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}
