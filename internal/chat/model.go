package chat

import (
	"net/url"
	"strings"
	"time"
)

// Preview is the conversation list entry for one activity chat
type Preview struct {
	ChatID      string    `json:"chat_id"`
	ActivityID  string    `json:"activity_id"`
	Name        string    `json:"name"`
	Avatar      string    `json:"avatar"`
	LastMessage string    `json:"last_message"`
	Timestamp   time.Time `json:"timestamp"`
	// Unread is computed per viewer when the preview is read
	Unread      int  `json:"unread"`
	IsGroupChat bool `json:"is_group_chat"`
	// MessageCount doubles as the sequence number of the next message
	MessageCount int `json:"message_count"`
}

// Message is a single chat message
type Message struct {
	ID         string    `json:"id"`
	ChatID     string    `json:"chat_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Text       string    `json:"text"`
	ImageURI   string    `json:"image_uri,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Preview texts written when a chat first appears
const (
	CreatedMessage = "Activity created"
	joinedSuffix   = " joined the activity"
)

// JoinedMessage is the preview text for a chat first seen through a join
func JoinedMessage(name string) string {
	return name + joinedSuffix
}

// FallbackAvatar returns a generated avatar URL for name
func FallbackAvatar(name string) string {
	return "https://ui-avatars.com/api/?name=" + strings.ReplaceAll(url.QueryEscape(name), "+", "%20")
}
