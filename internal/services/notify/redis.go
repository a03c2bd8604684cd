package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

const (
	matchChannel        = "match_events"
	verificationChannel = "verification_events"
)

func chatChannel(conversationID int64) string {
	return fmt.Sprintf("chat:%d", conversationID)
}

type ChannelPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RedisBridge fans events out over redis pub/sub. Errors are logged and
// swallowed so chat and matching writes stay unaffected.
type RedisBridge struct {
	publisher ChannelPublisher
	log       *zap.Logger
}

func NewRedisBridge(publisher ChannelPublisher, log *zap.Logger) *RedisBridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisBridge{publisher: publisher, log: log}
}

func (b *RedisBridge) MatchFormed(ctx context.Context, ev MatchFormedEvent) {
	b.publish(ctx, matchChannel, ev)
}

func (b *RedisBridge) MessageAppended(ctx context.Context, ev MessageAppendedEvent) {
	b.publish(ctx, chatChannel(ev.ConversationID), ev)
}

func (b *RedisBridge) VerificationRequested(ctx context.Context, ev VerificationRequestedEvent) {
	b.publish(ctx, verificationChannel, ev)
}

func (b *RedisBridge) publish(ctx context.Context, channel string, ev interface{}) {
	if b.publisher == nil {
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		b.log.Warn("marshal notify event", zap.String("channel", channel), zap.Error(err))
		return
	}

	if err := b.publisher.Publish(ctx, channel, payload); err != nil {
		b.log.Warn("publish notify event", zap.String("channel", channel), zap.Error(err))
	}
}
