// Package presence fans out the online-user set.
package presence

import (
	"github.com/rs/zerolog"
	"github.com/weiawesome/wes-io-chat/internal/metrics"
	"github.com/weiawesome/wes-io-chat/internal/registry"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/wire"
)

// Snapshotter returns registered ids and their connections, index-aligned.
type Snapshotter interface {
	Snapshot() ([]string, []registry.Conn)
}

// Broadcaster pushes the full presence set to every registered connection.
//
// Broadcast must be called by a single goroutine after each registry change;
// the hub does this, which keeps snapshots ordered on every connection.
type Broadcaster struct {
	registry Snapshotter
	logger   zerolog.Logger
}

// NewBroadcaster creates a presence broadcaster over reg.
func NewBroadcaster(reg Snapshotter) *Broadcaster {
	return &Broadcaster{
		registry: reg,
		logger:   log.Component("presence"),
	}
}

// Broadcast sends the current snapshot to every registered connection,
// including the connection whose change triggered it. Push failures are
// logged and skipped. It returns the number of successful pushes.
func (b *Broadcaster) Broadcast() int {
	ids, conns := b.registry.Snapshot()
	snapshot := wire.OnlineUsers(ids)

	sent := 0
	for _, c := range conns {
		if err := c.Send(snapshot); err != nil {
			metrics.PushesTotal.WithLabelValues(wire.EventOnlineUsers, metrics.OutcomeFailed).Inc()
			b.logger.Debug().Err(err).
				Str(log.FieldUserID, c.UserID()).
				Str(log.FieldConnID, c.ID()).
				Msg("presence push failed")
			continue
		}
		sent++
	}

	metrics.PushesTotal.WithLabelValues(wire.EventOnlineUsers, metrics.OutcomeSent).Add(float64(sent))
	metrics.PresenceBroadcasts.Inc()
	metrics.OnlineUsers.Set(float64(len(ids)))

	b.logger.Debug().Int(log.FieldOnline, len(ids)).Int("pushed", sent).Msg("presence broadcast")
	return sent
}
