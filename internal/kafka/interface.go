package kafka

import (
	"context"

	"github.com/weiawesome/wes-io-chat/pkg/wire"
)

// EventProducer publishes persisted chat events for downstream consumers.
// Publishing is best effort and never affects live delivery.
type EventProducer interface {
	ProduceMessage(ctx context.Context, msg wire.Message) error
	ProduceProfileUpdate(ctx context.Context, upd wire.ProfileUpdate) error
	Close() error
}

// NopProducer drops every event. It is used when kafka is disabled.
type NopProducer struct{}

var _ EventProducer = NopProducer{}

func (NopProducer) ProduceMessage(context.Context, wire.Message) error { return nil }

func (NopProducer) ProduceProfileUpdate(context.Context, wire.ProfileUpdate) error { return nil }

func (NopProducer) Close() error { return nil }
