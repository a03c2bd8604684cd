package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusmatch/backend/internal/domain/enums"
	pgrepo "github.com/campusmatch/backend/internal/repo/postgres"
	"github.com/campusmatch/backend/internal/services/notify"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrNotMatched = errors.New("users are not matched")
	ErrClosed     = errors.New("conversation is closed")
)

const (
	defaultPageSize   = 50
	defaultMaxPage    = 100
	defaultMaxContent = 1000
)

type ConversationStore interface {
	GetOrCreate(ctx context.Context, tx pgx.Tx, userID, otherID int64) (pgrepo.ConversationRecord, bool, error)
	Reactivate(ctx context.Context, tx pgx.Tx, conversationID int64) error
	GetByID(ctx context.Context, conversationID int64) (pgrepo.ConversationRecord, error)
	ListForUser(ctx context.Context, userID int64, limit int) ([]pgrepo.ConversationListRecord, error)
	RecomputeLastMessage(ctx context.Context, tx pgx.Tx, conversationID int64) error
}

type MessageStore interface {
	Insert(ctx context.Context, tx pgx.Tx, rec pgrepo.MessageRecord) error
	Get(ctx context.Context, tx pgx.Tx, conversationID int64, messageID uuid.UUID) (pgrepo.MessageRecord, error)
	Delete(ctx context.Context, tx pgx.Tx, conversationID int64, messageID uuid.UUID) (bool, error)
	Count(ctx context.Context, conversationID int64) (int, error)
	ListPage(ctx context.Context, conversationID int64, offset, limit int) ([]pgrepo.MessageRecord, error)
	ListReceipts(ctx context.Context, messageIDs []uuid.UUID) ([]pgrepo.ReadReceipt, error)
	InsertReceipt(ctx context.Context, tx pgx.Tx, messageID uuid.UUID, userID int64, at time.Time) error
	MarkAllRead(ctx context.Context, tx pgx.Tx, conversationID, userID int64, at time.Time) (int, error)
}

type MatchChecker interface {
	Exists(ctx context.Context, userID, otherID int64) (bool, error)
}

type Config struct {
	DefaultPageSize int
	MaxPageSize     int
	MaxContentLen   int
}

type LastMessage struct {
	Content  string
	SenderID int64
	SentAt   time.Time
}

type Conversation struct {
	ID            int64
	CounterpartID int64
	IsActive      bool
	LastMessage   *LastMessage
	CreatedAt     time.Time
}

type ConversationPreview struct {
	Conversation
	CounterpartFirstName string
	CounterpartLastName  string
	CounterpartPhotoURL  *string
}

type Message struct {
	ID             uuid.UUID
	ConversationID int64
	SenderID       int64
	Content        string
	Type           string
	CreatedAt      time.Time
	ReadAt         *time.Time
}

type MessagePage struct {
	Items    []Message
	Page     int
	PageSize int
	Total    int
	HasMore  bool
}

type Service struct {
	pool          *pgxpool.Pool
	conversations ConversationStore
	messages      MessageStore
	matches       MatchChecker
	bridge        notify.Bridge
	cfg           Config
	now           func() time.Time
	newID         func() uuid.UUID

	runPairTx func(ctx context.Context, a, b int64, fn func(context.Context, pgx.Tx) error) error
	runConvTx func(ctx context.Context, conversationID int64, fn func(context.Context, pgx.Tx) error) error
}

type Dependencies struct {
	Pool          *pgxpool.Pool
	Conversations ConversationStore
	Messages      MessageStore
	Matches       MatchChecker
	Bridge        notify.Bridge
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = defaultPageSize
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = defaultMaxPage
	}
	if cfg.MaxContentLen <= 0 {
		cfg.MaxContentLen = defaultMaxContent
	}

	bridge := deps.Bridge
	if bridge == nil {
		bridge = notify.NopBridge{}
	}

	return &Service{
		pool:          deps.Pool,
		conversations: deps.Conversations,
		messages:      deps.Messages,
		matches:       deps.Matches,
		bridge:        bridge,
		cfg:           cfg,
		now:           time.Now,
		newID:         uuid.New,
	}
}

// GetOrCreateConversation opens the chat for a matched pair. The first
// caller inserts the row; both see the same conversation afterwards.
// A row left closed by an earlier unmatch is reopened, since the pair
// is matched again by the time we get here.
func (s *Service) GetOrCreateConversation(ctx context.Context, userID, otherID int64) (Conversation, bool, error) {
	if userID <= 0 || otherID <= 0 || userID == otherID {
		return Conversation{}, false, ErrValidation
	}
	if s.matches == nil || s.conversations == nil {
		return Conversation{}, false, fmt.Errorf("chat dependencies are not configured")
	}

	matched, err := s.matches.Exists(ctx, userID, otherID)
	if err != nil {
		return Conversation{}, false, fmt.Errorf("check match: %w", err)
	}
	if !matched {
		return Conversation{}, false, ErrNotMatched
	}

	var (
		rec     pgrepo.ConversationRecord
		created bool
	)
	if err := s.pairTx(ctx, userID, otherID, func(txCtx context.Context, tx pgx.Tx) error {
		rec, created, err = s.conversations.GetOrCreate(txCtx, tx, userID, otherID)
		if err != nil {
			return err
		}
		if !rec.IsActive {
			if err := s.conversations.Reactivate(txCtx, tx, rec.ID); err != nil {
				return err
			}
			rec.IsActive = true
		}
		return nil
	}); err != nil {
		return Conversation{}, false, fmt.Errorf("get or create conversation: %w", err)
	}

	return toConversation(rec, userID), created, nil
}

func (s *Service) ListConversations(ctx context.Context, userID int64, limit int) ([]ConversationPreview, error) {
	if userID <= 0 {
		return nil, ErrValidation
	}

	rows, err := s.conversations.ListForUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	items := make([]ConversationPreview, 0, len(rows))
	for _, row := range rows {
		items = append(items, ConversationPreview{
			Conversation:         toConversation(row.ConversationRecord, userID),
			CounterpartFirstName: row.CounterpartFirstName,
			CounterpartLastName:  row.CounterpartLastName,
			CounterpartPhotoURL:  row.CounterpartPhotoURL,
		})
	}
	return items, nil
}

// ListMessages returns one page of history, newest page first but each
// page ordered chronologically. ReadAt reflects the counterpart's
// receipt, so senders can render delivery state.
func (s *Service) ListMessages(ctx context.Context, userID, conversationID int64, page, pageSize int) (MessagePage, error) {
	if _, err := s.authorizeParticipant(ctx, userID, conversationID); err != nil {
		return MessagePage{}, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = s.cfg.DefaultPageSize
	}
	if pageSize > s.cfg.MaxPageSize {
		pageSize = s.cfg.MaxPageSize
	}

	total, err := s.messages.Count(ctx, conversationID)
	if err != nil {
		return MessagePage{}, fmt.Errorf("count messages: %w", err)
	}

	offset := (page - 1) * pageSize
	rows, err := s.messages.ListPage(ctx, conversationID, offset, pageSize)
	if err != nil {
		return MessagePage{}, fmt.Errorf("list messages: %w", err)
	}

	readAt, err := s.counterpartReceipts(ctx, rows)
	if err != nil {
		return MessagePage{}, err
	}

	// Rows arrive newest first; flip so the page reads top to bottom.
	items := make([]Message, len(rows))
	for i, row := range rows {
		msg := Message{
			ID:             row.ID,
			ConversationID: row.ConversationID,
			SenderID:       row.SenderID,
			Content:        row.Content,
			Type:           row.Type,
			CreatedAt:      row.CreatedAt,
		}
		if at, ok := readAt[row.ID]; ok {
			t := at
			msg.ReadAt = &t
		}
		items[len(rows)-1-i] = msg
	}

	return MessagePage{
		Items:    items,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
		HasMore:  total > page*pageSize,
	}, nil
}

// SendMessage appends to an active conversation and refreshes its
// preview atomically. The sender's own receipt is stamped at write
// time so unread counts only track the counterpart.
func (s *Service) SendMessage(ctx context.Context, userID, conversationID int64, content, msgType string) (Message, error) {
	conv, err := s.authorizeParticipant(ctx, userID, conversationID)
	if err != nil {
		return Message{}, err
	}
	if !conv.IsActive {
		return Message{}, ErrClosed
	}

	content = strings.TrimSpace(content)
	if content == "" || utf8.RuneCountInString(content) > s.cfg.MaxContentLen {
		return Message{}, ErrValidation
	}
	if msgType == "" {
		msgType = string(enums.MessageTypeText)
	}
	if !enums.MessageType(msgType).Valid() {
		return Message{}, ErrValidation
	}

	rec := pgrepo.MessageRecord{
		ID:             s.newID(),
		ConversationID: conversationID,
		SenderID:       userID,
		Content:        content,
		Type:           msgType,
		CreatedAt:      s.now().UTC(),
	}

	if err := s.convTx(ctx, conversationID, func(txCtx context.Context, tx pgx.Tx) error {
		if err := s.messages.Insert(txCtx, tx, rec); err != nil {
			return err
		}
		if err := s.messages.InsertReceipt(txCtx, tx, rec.ID, userID, rec.CreatedAt); err != nil {
			return err
		}
		return s.conversations.RecomputeLastMessage(txCtx, tx, conversationID)
	}); err != nil {
		return Message{}, fmt.Errorf("send message: %w", err)
	}

	s.bridge.MessageAppended(ctx, notify.MessageAppendedEvent{
		ConversationID: conversationID,
		MessageID:      rec.ID.String(),
		SenderID:       userID,
		Content:        rec.Content,
		Type:           rec.Type,
		CreatedAt:      rec.CreatedAt,
	})

	at := rec.CreatedAt
	return Message{
		ID:             rec.ID,
		ConversationID: rec.ConversationID,
		SenderID:       rec.SenderID,
		Content:        rec.Content,
		Type:           rec.Type,
		CreatedAt:      rec.CreatedAt,
		ReadAt:         &at,
	}, nil
}

// MarkRead stamps every unread message in the conversation for the
// caller and reports how many were newly stamped. Repeating the call
// changes nothing.
func (s *Service) MarkRead(ctx context.Context, userID, conversationID int64) (int, error) {
	if _, err := s.authorizeParticipant(ctx, userID, conversationID); err != nil {
		return 0, err
	}

	var marked int
	if err := s.convTx(ctx, conversationID, func(txCtx context.Context, tx pgx.Tx) error {
		n, err := s.messages.MarkAllRead(txCtx, tx, conversationID, userID, s.now().UTC())
		if err != nil {
			return err
		}
		marked = n
		return nil
	}); err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}

	return marked, nil
}

// DeleteMessage removes the caller's own message and repairs the
// conversation preview from whatever message remains newest.
func (s *Service) DeleteMessage(ctx context.Context, userID, conversationID int64, messageID uuid.UUID) error {
	if messageID == uuid.Nil {
		return ErrValidation
	}
	if _, err := s.authorizeParticipant(ctx, userID, conversationID); err != nil {
		return err
	}

	if err := s.convTx(ctx, conversationID, func(txCtx context.Context, tx pgx.Tx) error {
		msg, err := s.messages.Get(txCtx, tx, conversationID, messageID)
		if err != nil {
			if errors.Is(err, pgrepo.ErrMessageNotFound) {
				return ErrNotFound
			}
			return err
		}
		if msg.SenderID != userID {
			return ErrForbidden
		}
		if _, err := s.messages.Delete(txCtx, tx, conversationID, messageID); err != nil {
			return err
		}
		return s.conversations.RecomputeLastMessage(txCtx, tx, conversationID)
	}); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden) {
			return err
		}
		return fmt.Errorf("delete message: %w", err)
	}

	return nil
}

func (s *Service) authorizeParticipant(ctx context.Context, userID, conversationID int64) (pgrepo.ConversationRecord, error) {
	if userID <= 0 || conversationID <= 0 {
		return pgrepo.ConversationRecord{}, ErrValidation
	}
	if s.conversations == nil || s.messages == nil {
		return pgrepo.ConversationRecord{}, fmt.Errorf("chat dependencies are not configured")
	}

	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrConversationNotFound) {
			return pgrepo.ConversationRecord{}, ErrNotFound
		}
		return pgrepo.ConversationRecord{}, fmt.Errorf("get conversation: %w", err)
	}
	if !conv.HasParticipant(userID) {
		return pgrepo.ConversationRecord{}, ErrForbidden
	}
	return conv, nil
}

// counterpartReceipts maps message IDs to the moment the non-sender
// read them.
func (s *Service) counterpartReceipts(ctx context.Context, rows []pgrepo.MessageRecord) (map[uuid.UUID]time.Time, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, len(rows))
	senders := make(map[uuid.UUID]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
		senders[row.ID] = row.SenderID
	}

	receipts, err := s.messages.ListReceipts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}

	readAt := make(map[uuid.UUID]time.Time, len(receipts))
	for _, r := range receipts {
		if senders[r.MessageID] == r.UserID {
			continue
		}
		if cur, ok := readAt[r.MessageID]; !ok || r.ReadAt.Before(cur) {
			readAt[r.MessageID] = r.ReadAt
		}
	}
	return readAt, nil
}

func toConversation(rec pgrepo.ConversationRecord, viewerID int64) Conversation {
	conv := Conversation{
		ID:            rec.ID,
		CounterpartID: rec.CounterpartOf(viewerID),
		IsActive:      rec.IsActive,
		CreatedAt:     rec.CreatedAt,
	}
	if rec.LastMessageContent != nil && rec.LastMessageSenderID != nil && rec.LastMessageAt != nil {
		conv.LastMessage = &LastMessage{
			Content:  *rec.LastMessageContent,
			SenderID: *rec.LastMessageSenderID,
			SentAt:   *rec.LastMessageAt,
		}
	}
	return conv
}

func (s *Service) pairTx(ctx context.Context, a, b int64, fn func(context.Context, pgx.Tx) error) error {
	if s.runPairTx != nil {
		return s.runPairTx(ctx, a, b, fn)
	}

	return pgrepo.WithTx(ctx, s.pool, func(txCtx context.Context, tx pgx.Tx) error {
		if err := pgrepo.AcquirePairLock(txCtx, tx, a, b); err != nil {
			return err
		}
		return fn(txCtx, tx)
	})
}

func (s *Service) convTx(ctx context.Context, conversationID int64, fn func(context.Context, pgx.Tx) error) error {
	if s.runConvTx != nil {
		return s.runConvTx(ctx, conversationID, fn)
	}

	return pgrepo.WithTx(ctx, s.pool, func(txCtx context.Context, tx pgx.Tx) error {
		if err := pgrepo.AcquireConversationLock(txCtx, tx, conversationID); err != nil {
			return err
		}
		return fn(txCtx, tx)
	})
}
