package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	authsvc "github.com/campusmatch/backend/internal/services/auth"
	chatsvc "github.com/campusmatch/backend/internal/services/chat"
	"github.com/campusmatch/backend/internal/transport/http/dto"
	httperrors "github.com/campusmatch/backend/internal/transport/http/errors"
)

type ChatHandler struct {
	service *chatsvc.Service
}

func NewChatHandler(service *chatsvc.Service) *ChatHandler {
	return &ChatHandler{service: service}
}

func (h *ChatHandler) Open(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "CHAT_SERVICE_UNAVAILABLE", "chat service is unavailable")
		return
	}

	var req dto.OpenConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	conv, created, err := h.service.GetOrCreateConversation(r.Context(), identity.UserID, req.UserID)
	if err != nil {
		handleChatError(w, err, "open conversation")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httperrors.Write(w, status, mapConversation(chatsvc.ConversationPreview{Conversation: conv}))
}

func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "CHAT_SERVICE_UNAVAILABLE", "chat service is unavailable")
		return
	}

	items, err := h.service.ListConversations(r.Context(), identity.UserID, parseIntOrDefault(r.URL.Query().Get("limit"), 50))
	if err != nil {
		handleChatError(w, err, "list conversations")
		return
	}

	responseItems := make([]dto.ConversationResponse, 0, len(items))
	for _, item := range items {
		responseItems = append(responseItems, mapConversation(item))
	}
	httperrors.Write(w, http.StatusOK, dto.ConversationsResponse{Items: responseItems})
}

func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "CHAT_SERVICE_UNAVAILABLE", "chat service is unavailable")
		return
	}

	conversationID, ok := conversationIDFromRequest(r)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid conversation id")
		return
	}

	page, err := h.service.ListMessages(
		r.Context(),
		identity.UserID,
		conversationID,
		parseIntOrDefault(r.URL.Query().Get("page"), 1),
		parseIntOrDefault(r.URL.Query().Get("page_size"), 0),
	)
	if err != nil {
		handleChatError(w, err, "list messages")
		return
	}

	items := make([]dto.MessageResponse, 0, len(page.Items))
	for _, msg := range page.Items {
		items = append(items, mapMessage(msg))
	}
	httperrors.Write(w, http.StatusOK, dto.MessagesResponse{
		Items:    items,
		Page:     page.Page,
		PageSize: page.PageSize,
		Total:    page.Total,
		HasMore:  page.HasMore,
	})
}

func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "CHAT_SERVICE_UNAVAILABLE", "chat service is unavailable")
		return
	}

	conversationID, ok := conversationIDFromRequest(r)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid conversation id")
		return
	}

	var req dto.SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	msg, err := h.service.SendMessage(r.Context(), identity.UserID, conversationID, req.Content, req.Type)
	if err != nil {
		handleChatError(w, err, "send message")
		return
	}

	httperrors.Write(w, http.StatusCreated, mapMessage(msg))
}

func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "CHAT_SERVICE_UNAVAILABLE", "chat service is unavailable")
		return
	}

	conversationID, ok := conversationIDFromRequest(r)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid conversation id")
		return
	}

	marked, err := h.service.MarkRead(r.Context(), identity.UserID, conversationID)
	if err != nil {
		handleChatError(w, err, "mark read")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.MarkReadResponse{MarkedRead: marked})
}

func (h *ChatHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.service == nil {
		writeInternal(w, "CHAT_SERVICE_UNAVAILABLE", "chat service is unavailable")
		return
	}

	conversationID, ok := conversationIDFromRequest(r)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid conversation id")
		return
	}
	messageID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "message_id")))
	if err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid message id")
		return
	}

	if err := h.service.DeleteMessage(r.Context(), identity.UserID, conversationID, messageID); err != nil {
		handleChatError(w, err, "delete message")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.OKResponse{OK: true})
}

func handleChatError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, chatsvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid "+action+" request")
	case errors.Is(err, chatsvc.ErrNotMatched):
		writeForbidden(w, "NOT_MATCHED", "users are not matched")
	case errors.Is(err, chatsvc.ErrForbidden):
		writeForbidden(w, "FORBIDDEN", "not a participant of this conversation")
	case errors.Is(err, chatsvc.ErrClosed):
		writeConflict(w, "CONVERSATION_CLOSED", "conversation is closed")
	case errors.Is(err, chatsvc.ErrNotFound):
		writeNotFound(w, "NOT_FOUND", "conversation or message not found")
	default:
		writeInternal(w, "INTERNAL_ERROR", "failed to "+action)
	}
}

func mapConversation(item chatsvc.ConversationPreview) dto.ConversationResponse {
	resp := dto.ConversationResponse{
		ID:                   item.ID,
		CounterpartID:        item.CounterpartID,
		CounterpartFirstName: item.CounterpartFirstName,
		CounterpartLastName:  item.CounterpartLastName,
		CounterpartPhotoURL:  item.CounterpartPhotoURL,
		IsActive:             item.IsActive,
		CreatedAt:            item.CreatedAt,
	}
	if item.LastMessage != nil {
		resp.LastMessage = &dto.LastMessageResponse{
			Content:  item.LastMessage.Content,
			SenderID: item.LastMessage.SenderID,
			SentAt:   item.LastMessage.SentAt,
		}
	}
	return resp
}

func mapMessage(msg chatsvc.Message) dto.MessageResponse {
	return dto.MessageResponse{
		ID:             msg.ID.String(),
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		Type:           msg.Type,
		CreatedAt:      msg.CreatedAt,
		ReadAt:         msg.ReadAt,
	}
}

func conversationIDFromRequest(r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "conversation_id"))
	if raw == "" {
		return 0, false
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return 0, false
	}
	return value, true
}

func parseIntOrDefault(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return value
}
