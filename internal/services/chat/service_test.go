package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	pgrepo "github.com/campusmatch/backend/internal/repo/postgres"
)

type fakeMessageStore struct {
	rows     []pgrepo.MessageRecord
	receipts map[uuid.UUID]map[int64]time.Time
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{receipts: map[uuid.UUID]map[int64]time.Time{}}
}

func (s *fakeMessageStore) Insert(_ context.Context, _ pgx.Tx, rec pgrepo.MessageRecord) error {
	s.rows = append(s.rows, rec)
	return nil
}

func (s *fakeMessageStore) Get(_ context.Context, _ pgx.Tx, conversationID int64, messageID uuid.UUID) (pgrepo.MessageRecord, error) {
	for _, row := range s.rows {
		if row.ConversationID == conversationID && row.ID == messageID {
			return row, nil
		}
	}
	return pgrepo.MessageRecord{}, pgrepo.ErrMessageNotFound
}

func (s *fakeMessageStore) Delete(_ context.Context, _ pgx.Tx, conversationID int64, messageID uuid.UUID) (bool, error) {
	for i, row := range s.rows {
		if row.ConversationID == conversationID && row.ID == messageID {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeMessageStore) Count(_ context.Context, conversationID int64) (int, error) {
	n := 0
	for _, row := range s.rows {
		if row.ConversationID == conversationID {
			n++
		}
	}
	return n, nil
}

func (s *fakeMessageStore) ListPage(_ context.Context, conversationID int64, offset, limit int) ([]pgrepo.MessageRecord, error) {
	var newest []pgrepo.MessageRecord
	for i := len(s.rows) - 1; i >= 0; i-- {
		if s.rows[i].ConversationID == conversationID {
			newest = append(newest, s.rows[i])
		}
	}
	if offset >= len(newest) {
		return nil, nil
	}
	newest = newest[offset:]
	if len(newest) > limit {
		newest = newest[:limit]
	}
	return newest, nil
}

func (s *fakeMessageStore) ListReceipts(_ context.Context, messageIDs []uuid.UUID) ([]pgrepo.ReadReceipt, error) {
	var out []pgrepo.ReadReceipt
	for _, id := range messageIDs {
		for userID, at := range s.receipts[id] {
			out = append(out, pgrepo.ReadReceipt{MessageID: id, UserID: userID, ReadAt: at})
		}
	}
	return out, nil
}

func (s *fakeMessageStore) InsertReceipt(_ context.Context, _ pgx.Tx, messageID uuid.UUID, userID int64, at time.Time) error {
	if s.receipts[messageID] == nil {
		s.receipts[messageID] = map[int64]time.Time{}
	}
	if _, ok := s.receipts[messageID][userID]; !ok {
		s.receipts[messageID][userID] = at
	}
	return nil
}

func (s *fakeMessageStore) MarkAllRead(_ context.Context, _ pgx.Tx, conversationID, userID int64, at time.Time) (int, error) {
	marked := 0
	for _, row := range s.rows {
		if row.ConversationID != conversationID {
			continue
		}
		if s.receipts[row.ID] == nil {
			s.receipts[row.ID] = map[int64]time.Time{}
		}
		if _, ok := s.receipts[row.ID][userID]; !ok {
			s.receipts[row.ID][userID] = at
			marked++
		}
	}
	return marked, nil
}

type fakeConversationStore struct {
	byID     map[int64]pgrepo.ConversationRecord
	nextID   int64
	messages *fakeMessageStore
}

func newFakeConversationStore(messages *fakeMessageStore) *fakeConversationStore {
	return &fakeConversationStore{byID: map[int64]pgrepo.ConversationRecord{}, nextID: 1, messages: messages}
}

func (s *fakeConversationStore) GetOrCreate(_ context.Context, _ pgx.Tx, userID, otherID int64) (pgrepo.ConversationRecord, bool, error) {
	a, b := userID, otherID
	if a > b {
		a, b = b, a
	}
	for _, rec := range s.byID {
		if rec.UserAID == a && rec.UserBID == b {
			return rec, false, nil
		}
	}
	rec := pgrepo.ConversationRecord{ID: s.nextID, UserAID: a, UserBID: b, IsActive: true, CreatedAt: time.Now()}
	s.byID[rec.ID] = rec
	s.nextID++
	return rec, true, nil
}

func (s *fakeConversationStore) Reactivate(_ context.Context, _ pgx.Tx, conversationID int64) error {
	rec, ok := s.byID[conversationID]
	if !ok {
		return pgrepo.ErrConversationNotFound
	}
	rec.IsActive = true
	s.byID[conversationID] = rec
	return nil
}

func (s *fakeConversationStore) GetByID(_ context.Context, conversationID int64) (pgrepo.ConversationRecord, error) {
	rec, ok := s.byID[conversationID]
	if !ok {
		return pgrepo.ConversationRecord{}, pgrepo.ErrConversationNotFound
	}
	return rec, nil
}

func (s *fakeConversationStore) ListForUser(_ context.Context, userID int64, _ int) ([]pgrepo.ConversationListRecord, error) {
	var out []pgrepo.ConversationListRecord
	for _, rec := range s.byID {
		if rec.HasParticipant(userID) && rec.IsActive {
			out = append(out, pgrepo.ConversationListRecord{ConversationRecord: rec, CounterpartID: rec.CounterpartOf(userID)})
		}
	}
	return out, nil
}

func (s *fakeConversationStore) RecomputeLastMessage(_ context.Context, _ pgx.Tx, conversationID int64) error {
	rec, ok := s.byID[conversationID]
	if !ok {
		return nil
	}
	rec.LastMessageContent = nil
	rec.LastMessageSenderID = nil
	rec.LastMessageAt = nil
	for _, row := range s.messages.rows {
		if row.ConversationID != conversationID {
			continue
		}
		if rec.LastMessageAt == nil || row.CreatedAt.After(*rec.LastMessageAt) {
			content, sender, at := row.Content, row.SenderID, row.CreatedAt
			rec.LastMessageContent = &content
			rec.LastMessageSenderID = &sender
			rec.LastMessageAt = &at
		}
	}
	s.byID[conversationID] = rec
	return nil
}

type fakeMatchChecker struct {
	matched map[[2]int64]bool
}

func (s *fakeMatchChecker) Exists(_ context.Context, userID, otherID int64) (bool, error) {
	if userID > otherID {
		userID, otherID = otherID, userID
	}
	return s.matched[[2]int64{userID, otherID}], nil
}

type chatFixture struct {
	svc      *Service
	convs    *fakeConversationStore
	messages *fakeMessageStore
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()

	messages := newFakeMessageStore()
	convs := newFakeConversationStore(messages)
	svc := NewService(Dependencies{
		Conversations: convs,
		Messages:      messages,
		Matches:       &fakeMatchChecker{matched: map[[2]int64]bool{{1, 2}: true}},
	}, Config{})

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	svc.runPairTx = func(ctx context.Context, _, _ int64, fn func(context.Context, pgx.Tx) error) error {
		return fn(ctx, nil)
	}
	svc.runConvTx = func(ctx context.Context, _ int64, fn func(context.Context, pgx.Tx) error) error {
		return fn(ctx, nil)
	}

	return &chatFixture{svc: svc, convs: convs, messages: messages}
}

func (f *chatFixture) openConversation(t *testing.T) int64 {
	t.Helper()
	conv, created, err := f.svc.GetOrCreateConversation(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("open conversation: %v", err)
	}
	if !created {
		t.Fatalf("first open should create the conversation")
	}
	return conv.ID
}

func TestGetOrCreateConversationRequiresMatch(t *testing.T) {
	f := newChatFixture(t)
	if _, _, err := f.svc.GetOrCreateConversation(context.Background(), 1, 3); !errors.Is(err, ErrNotMatched) {
		t.Fatalf("expected ErrNotMatched, got %v", err)
	}
}

func TestGetOrCreateConversationIsIdempotent(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	first, created, err := f.svc.GetOrCreateConversation(ctx, 1, 2)
	if err != nil || !created {
		t.Fatalf("first open: created=%v err=%v", created, err)
	}
	second, created, err := f.svc.GetOrCreateConversation(ctx, 2, 1)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	if created {
		t.Fatalf("second open must reuse the row")
	}
	if first.ID != second.ID {
		t.Fatalf("both sides must see one conversation: %d vs %d", first.ID, second.ID)
	}
	if second.CounterpartID != 1 {
		t.Fatalf("counterpart resolved from the viewer, got %d", second.CounterpartID)
	}
}

func TestGetOrCreateConversationReopensAfterRematch(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	convID := f.openConversation(t)

	// An unmatch closed the chat; the pair then liked each other again.
	rec := f.convs.byID[convID]
	rec.IsActive = false
	f.convs.byID[convID] = rec

	conv, created, err := f.svc.GetOrCreateConversation(ctx, 1, 2)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if created || conv.ID != convID {
		t.Fatalf("reopen must reuse the pair's row, got created=%v id=%d", created, conv.ID)
	}
	if !conv.IsActive {
		t.Fatalf("conversation must be active again for a re-matched pair")
	}

	if _, err := f.svc.SendMessage(ctx, 1, convID, "we're back", ""); err != nil {
		t.Fatalf("re-matched pair must be able to chat: %v", err)
	}
}

func TestSendMessageValidation(t *testing.T) {
	f := newChatFixture(t)
	convID := f.openConversation(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		content string
		msgType string
		wantErr error
	}{
		{name: "empty", content: "", wantErr: ErrValidation},
		{name: "whitespace only", content: "   ", wantErr: ErrValidation},
		{name: "single rune", content: "ы"},
		{name: "at limit", content: strings.Repeat("я", 1000)},
		{name: "over limit", content: strings.Repeat("я", 1001), wantErr: ErrValidation},
		{name: "bad type", content: "hi", msgType: "voice", wantErr: ErrValidation},
		{name: "location type", content: "53.9,27.56", msgType: "location"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.SendMessage(ctx, 1, convID, tc.content, tc.msgType)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestSendMessageUpdatesConversationPreview(t *testing.T) {
	f := newChatFixture(t)
	convID := f.openConversation(t)
	ctx := context.Background()

	if _, err := f.svc.SendMessage(ctx, 1, convID, "first", ""); err != nil {
		t.Fatalf("send: %v", err)
	}
	msg, err := f.svc.SendMessage(ctx, 2, convID, "second", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Type != "text" {
		t.Fatalf("empty type should default to text, got %q", msg.Type)
	}

	convs, err := f.svc.ListConversations(ctx, 1, 20)
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if len(convs) != 1 || convs[0].LastMessage == nil {
		t.Fatalf("conversation preview missing after send")
	}
	if convs[0].LastMessage.Content != "second" || convs[0].LastMessage.SenderID != 2 {
		t.Fatalf("preview should carry the newest message, got %+v", convs[0].LastMessage)
	}
}

func TestSendMessageOutsiderForbidden(t *testing.T) {
	f := newChatFixture(t)
	convID := f.openConversation(t)

	if _, err := f.svc.SendMessage(context.Background(), 7, convID, "hi", ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestSendMessageClosedConversation(t *testing.T) {
	f := newChatFixture(t)
	convID := f.openConversation(t)

	rec := f.convs.byID[convID]
	rec.IsActive = false
	f.convs.byID[convID] = rec

	if _, err := f.svc.SendMessage(context.Background(), 1, convID, "hi", ""); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestListMessagesPagination(t *testing.T) {
	f := newChatFixture(t)
	convID := f.openConversation(t)
	ctx := context.Background()

	for i := 1; i <= 120; i++ {
		sender := int64(1 + i%2)
		if _, err := f.svc.SendMessage(ctx, sender, convID, fmt.Sprintf("msg-%03d", i), ""); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}

	page1, err := f.svc.ListMessages(ctx, 1, convID, 1, 0)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if page1.PageSize != 50 || page1.Total != 120 || !page1.HasMore {
		t.Fatalf("page 1 header: %+v", page1)
	}
	if len(page1.Items) != 50 {
		t.Fatalf("page 1 size: %d", len(page1.Items))
	}
	if page1.Items[0].Content != "msg-071" || page1.Items[49].Content != "msg-120" {
		t.Fatalf("page 1 must hold the newest 50 in chronological order, got %q..%q",
			page1.Items[0].Content, page1.Items[49].Content)
	}

	page3, err := f.svc.ListMessages(ctx, 1, convID, 3, 50)
	if err != nil {
		t.Fatalf("page 3: %v", err)
	}
	if len(page3.Items) != 20 || page3.HasMore {
		t.Fatalf("page 3 should hold the oldest 20 and no more: %+v", page3)
	}
	if page3.Items[0].Content != "msg-001" || page3.Items[19].Content != "msg-020" {
		t.Fatalf("page 3 order: %q..%q", page3.Items[0].Content, page3.Items[19].Content)
	}

	if _, err := f.svc.ListMessages(ctx, 9, convID, 1, 0); !errors.Is(err, ErrForbidden) {
		t.Fatalf("outsider read should be forbidden, got %v", err)
	}
}

func TestListMessagesClampsPageSize(t *testing.T) {
	f := newChatFixture(t)
	convID := f.openConversation(t)

	page, err := f.svc.ListMessages(context.Background(), 1, convID, 0, 500)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Page != 1 || page.PageSize != 100 {
		t.Fatalf("expected page 1 size 100, got page %d size %d", page.Page, page.PageSize)
	}
}

func TestMarkReadIsIdempotent(t *testing.T) {
	f := newChatFixture(t)
	convID := f.openConversation(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := f.svc.SendMessage(ctx, 1, convID, "hello", ""); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	marked, err := f.svc.MarkRead(ctx, 2, convID)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if marked != 3 {
		t.Fatalf("expected 3 newly read, got %d", marked)
	}

	marked, err = f.svc.MarkRead(ctx, 2, convID)
	if err != nil {
		t.Fatalf("repeat mark read: %v", err)
	}
	if marked != 0 {
		t.Fatalf("repeat should stamp nothing, got %d", marked)
	}

	page, err := f.svc.ListMessages(ctx, 1, convID, 1, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, msg := range page.Items {
		if msg.ReadAt == nil {
			t.Fatalf("message %s should carry the counterpart receipt", msg.ID)
		}
	}
}

func TestDeleteMessageRepairsPreview(t *testing.T) {
	f := newChatFixture(t)
	convID := f.openConversation(t)
	ctx := context.Background()

	if _, err := f.svc.SendMessage(ctx, 1, convID, "keep", ""); err != nil {
		t.Fatalf("send: %v", err)
	}
	last, err := f.svc.SendMessage(ctx, 1, convID, "drop", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if err := f.svc.DeleteMessage(ctx, 2, convID, last.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-author delete should be forbidden, got %v", err)
	}
	if err := f.svc.DeleteMessage(ctx, 1, convID, last.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := f.svc.DeleteMessage(ctx, 1, convID, last.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("repeat delete should be not found, got %v", err)
	}

	convs, err := f.svc.ListConversations(ctx, 1, 20)
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if convs[0].LastMessage == nil || convs[0].LastMessage.Content != "keep" {
		t.Fatalf("preview should fall back to the previous message, got %+v", convs[0].LastMessage)
	}
}

func TestDeleteOnlyMessageClearsPreview(t *testing.T) {
	f := newChatFixture(t)
	convID := f.openConversation(t)
	ctx := context.Background()

	msg, err := f.svc.SendMessage(ctx, 1, convID, "solo", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := f.svc.DeleteMessage(ctx, 1, convID, msg.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	convs, err := f.svc.ListConversations(ctx, 1, 20)
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if convs[0].LastMessage != nil {
		t.Fatalf("preview should be empty after the only message is gone")
	}
}
