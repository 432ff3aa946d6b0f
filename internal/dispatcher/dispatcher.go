// Package dispatcher routes persisted chat events to live connections.
package dispatcher

import (
	"context"

	"github.com/weiawesome/wes-io-chat/internal/metrics"
	"github.com/weiawesome/wes-io-chat/internal/registry"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/wire"
)

// Registry is the read side of the connection registry.
type Registry interface {
	Lookup(userID string) (registry.Conn, bool)
	Snapshot() ([]string, []registry.Conn)
}

// Dispatcher pushes events to registered connections. It never mutates the
// registry and never blocks on a slow connection; delivery is best effort
// and clients recover missed events from history.
type Dispatcher struct {
	registry Registry
}

func NewDispatcher(reg Registry) *Dispatcher {
	return &Dispatcher{registry: reg}
}

// DeliverMessage pushes msg to the recipient's connection only. It reports
// whether the push was handed to a connection; an offline recipient is not
// an error.
func (d *Dispatcher) DeliverMessage(ctx context.Context, msg wire.Message) bool {
	l := log.Ctx(ctx)

	conn, ok := d.registry.Lookup(msg.RecipientID)
	if !ok {
		metrics.PushesTotal.WithLabelValues(wire.EventNewMessage, metrics.OutcomeMiss).Inc()
		l.Debug().
			Str(log.FieldMessageID, msg.ID).
			Str(log.FieldRecipientID, msg.RecipientID).
			Msg("recipient offline, skipping push")
		return false
	}

	if err := conn.Send(msg); err != nil {
		metrics.PushesTotal.WithLabelValues(wire.EventNewMessage, metrics.OutcomeFailed).Inc()
		l.Warn().Err(err).
			Str(log.FieldMessageID, msg.ID).
			Str(log.FieldRecipientID, msg.RecipientID).
			Str(log.FieldConnID, conn.ID()).
			Msg("message push failed")
		return false
	}

	metrics.PushesTotal.WithLabelValues(wire.EventNewMessage, metrics.OutcomeSent).Inc()
	l.Debug().
		Str(log.FieldMessageID, msg.ID).
		Str(log.FieldRecipientID, msg.RecipientID).
		Str(log.FieldConnID, conn.ID()).
		Msg("message pushed")
	return true
}

// BroadcastProfileUpdate pushes upd to every registered connection,
// including the updater's own. It returns the number of successful pushes.
func (d *Dispatcher) BroadcastProfileUpdate(ctx context.Context, upd wire.ProfileUpdate) int {
	l := log.Ctx(ctx)

	_, conns := d.registry.Snapshot()
	sent := 0
	for _, conn := range conns {
		if err := conn.Send(upd); err != nil {
			metrics.PushesTotal.WithLabelValues(wire.EventProfileUpdate, metrics.OutcomeFailed).Inc()
			l.Debug().Err(err).Str(log.FieldConnID, conn.ID()).Msg("profile update push failed")
			continue
		}
		sent++
	}

	metrics.PushesTotal.WithLabelValues(wire.EventProfileUpdate, metrics.OutcomeSent).Add(float64(sent))
	l.Info().Str(log.FieldUserID, upd.UserID).Int("pushed", sent).Msg("profile update broadcast")
	return sent
}
