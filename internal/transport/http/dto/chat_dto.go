package dto

import "time"

type OpenConversationRequest struct {
	UserID int64 `json:"user_id"`
}

type LastMessageResponse struct {
	Content  string    `json:"content"`
	SenderID int64     `json:"sender_id"`
	SentAt   time.Time `json:"sent_at"`
}

type ConversationResponse struct {
	ID                   int64                `json:"id"`
	CounterpartID        int64                `json:"counterpart_id"`
	CounterpartFirstName string               `json:"counterpart_first_name,omitempty"`
	CounterpartLastName  string               `json:"counterpart_last_name,omitempty"`
	CounterpartPhotoURL  *string              `json:"counterpart_photo_url,omitempty"`
	IsActive             bool                 `json:"is_active"`
	LastMessage          *LastMessageResponse `json:"last_message"`
	CreatedAt            time.Time            `json:"created_at"`
}

type ConversationsResponse struct {
	Items []ConversationResponse `json:"items"`
}

type SendMessageRequest struct {
	Content string `json:"content"`
	Type    string `json:"type"`
}

type MessageResponse struct {
	ID             string     `json:"id"`
	ConversationID int64      `json:"conversation_id"`
	SenderID       int64      `json:"sender_id"`
	Content        string     `json:"content"`
	Type           string     `json:"type"`
	CreatedAt      time.Time  `json:"created_at"`
	ReadAt         *time.Time `json:"read_at"`
}

type MessagesResponse struct {
	Items    []MessageResponse `json:"items"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	Total    int               `json:"total"`
	HasMore  bool              `json:"has_more"`
}

type MarkReadResponse struct {
	MarkedRead int `json:"marked_read"`
}
