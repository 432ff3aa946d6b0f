package dispatcher_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/weiawesome/wes-io-chat/internal/dispatcher"
	"github.com/weiawesome/wes-io-chat/internal/registry"
	"github.com/weiawesome/wes-io-chat/internal/registry/registrytest"
	"github.com/weiawesome/wes-io-chat/pkg/wire"
)

func setup(users ...string) (*registry.Registry, map[string]*registrytest.FakeConn) {
	reg := registry.New()
	conns := make(map[string]*registrytest.FakeConn, len(users))
	for _, u := range users {
		c := registrytest.NewFakeConn(u)
		reg.Register(u, c)
		conns[u] = c
	}
	return reg, conns
}

func TestDeliverMessageOnlyToRecipient(t *testing.T) {
	reg, conns := setup("a", "b", "c")
	d := dispatcher.NewDispatcher(reg)

	msg := wire.Message{ID: "m1", SenderID: "a", RecipientID: "b", Text: "hi", CreatedAt: time.Now()}
	require.True(t, d.DeliverMessage(context.Background(), msg))

	require.Equal(t, []wire.Message{msg}, conns["b"].Messages())
	require.Empty(t, conns["a"].Received())
	require.Empty(t, conns["c"].Received())
}

func TestDeliverMessageRecipientOffline(t *testing.T) {
	reg, conns := setup("a", "c")
	d := dispatcher.NewDispatcher(reg)

	msg := wire.Message{ID: "m1", SenderID: "a", RecipientID: "b", Text: "hi"}
	require.False(t, d.DeliverMessage(context.Background(), msg))

	require.Empty(t, conns["a"].Received())
	require.Empty(t, conns["c"].Received())
}

func TestDeliverMessageSwallowsTransportFailure(t *testing.T) {
	reg, conns := setup("a", "b")
	conns["b"].FailSend = true
	d := dispatcher.NewDispatcher(reg)

	require.NotPanics(t, func() {
		ok := d.DeliverMessage(context.Background(), wire.Message{ID: "m1", SenderID: "a", RecipientID: "b", Text: "x"})
		require.False(t, ok)
	})

	// A failed push does not evict the connection.
	_, ok := reg.Lookup("b")
	require.True(t, ok)
}

func TestBroadcastProfileUpdateReachesEveryone(t *testing.T) {
	reg, conns := setup("a", "b", "c")
	conns["c"].FailSend = true
	d := dispatcher.NewDispatcher(reg)

	upd := wire.ProfileUpdate{UserID: "a", ProfilePic: "https://cdn/a.png", FullName: "Ann"}
	require.Equal(t, 2, d.BroadcastProfileUpdate(context.Background(), upd))

	require.Equal(t, []wire.ProfileUpdate{upd}, conns["a"].ProfileUpdates())
	require.Equal(t, []wire.ProfileUpdate{upd}, conns["b"].ProfileUpdates())
	require.Empty(t, conns["c"].Received())
}

func TestBroadcastProfileUpdateWithNobodyOnline(t *testing.T) {
	d := dispatcher.NewDispatcher(registry.New())
	require.Zero(t, d.BroadcastProfileUpdate(context.Background(), wire.ProfileUpdate{UserID: "a"}))
}
