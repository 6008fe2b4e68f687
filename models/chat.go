package models

import "time"

const (
	ConversationOpen   = "open"
	ConversationClosed = "closed"
)

// Message sender types.
const (
	SenderUser  = "user"
	SenderAdmin = "admin"
	SenderAI    = "ai"
)

// Conversation is a support thread between one user and staff.
type Conversation struct {
	ConversationID string    `bson:"conversation_id" json:"conversation_id"`
	UserID         string    `bson:"user_id" json:"user_id"`
	StoreURL       string    `bson:"store_url" json:"store_url"`
	Status         string    `bson:"status" json:"status"`
	AIEnabled      bool      `bson:"ai_enabled" json:"ai_enabled"`
	HumanRequested bool      `bson:"human_requested" json:"human_requested"`
	LastMessage    string    `bson:"last_message" json:"last_message"`
	UnreadAdmin    int64     `bson:"unread_admin" json:"unread_admin"`
	UnreadUser     int64     `bson:"unread_user" json:"unread_user"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at" json:"updated_at"`
}

// Message is one entry of a conversation.
type Message struct {
	MessageID      string    `bson:"message_id" json:"message_id"`
	ConversationID string    `bson:"conversation_id" json:"conversation_id"`
	SenderType     string    `bson:"sender_type" json:"sender_type"`
	SenderID       string    `bson:"sender_id" json:"sender_id"`
	MessageText    string    `bson:"message_text" json:"message_text"`
	IsRead         bool      `bson:"is_read" json:"is_read"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}
