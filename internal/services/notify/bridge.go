package notify

import (
	"context"
	"time"
)

// MatchFormedEvent announces a new mutual match to both participants.
type MatchFormedEvent struct {
	MatchUserAID int64     `json:"user_a_id"`
	MatchUserBID int64     `json:"user_b_id"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type MessageAppendedEvent struct {
	ConversationID int64     `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	SenderID       int64     `json:"sender_id"`
	Content        string    `json:"content"`
	Type           string    `json:"type"`
	CreatedAt      time.Time `json:"created_at"`
}

// VerificationRequestedEvent hands a fresh email confirmation code to
// the mailer worker listening on the other side of the channel.
type VerificationRequestedEvent struct {
	UserID      int64     `json:"user_id"`
	Email       string    `json:"email"`
	Code        string    `json:"code"`
	RequestedAt time.Time `json:"requested_at"`
}

// Bridge delivers realtime events to connected clients. Delivery is
// best effort: a failed publish never fails the write that produced it.
type Bridge interface {
	MatchFormed(ctx context.Context, ev MatchFormedEvent)
	MessageAppended(ctx context.Context, ev MessageAppendedEvent)
	VerificationRequested(ctx context.Context, ev VerificationRequestedEvent)
}

// NopBridge drops every event. Used when redis is not configured.
type NopBridge struct{}

func (NopBridge) MatchFormed(context.Context, MatchFormedEvent)                     {}
func (NopBridge) MessageAppended(context.Context, MessageAppendedEvent)             {}
func (NopBridge) VerificationRequested(context.Context, VerificationRequestedEvent) {}
