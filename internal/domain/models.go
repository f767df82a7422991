package domain

import (
	"fmt"
	"time"
)

// User represents an application user.
type User struct {
	ID             int64     `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	HashedPassword string    `db:"hashed_password" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Conversation is a pairwise thread between exactly two users. The
// participant set is fixed at creation; PairKey is the canonical
// "minID:maxID" form of the pair and is unique across all conversations,
// so two racing creates for the same pair resolve to one row.
type Conversation struct {
	ID        int64     `db:"id"`
	PairKey   string    `db:"pair_key"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// PairKey returns the canonical key for an unordered user pair.
func PairKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// Message is a single immutable chat message. Exactly one of Content and
// ImageURL is non-nil: a message is either text or an image reference,
// never both, never neither.
type Message struct {
	ID             int64     `db:"id"`
	ConversationID int64     `db:"conversation_id"`
	SenderID       int64     `db:"sender_id"`
	Content        *string   `db:"content"`
	ImageURL       *string   `db:"image_url"`
	CreatedAt      time.Time `db:"created_at"`
}

// MessageView is the read projection of a message: what history queries
// return and what delivery events are built from.
type MessageView struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversationId"`
	Content        *string   `json:"content"`
	ImageURL       *string   `json:"imageUrl"`
	Sender         string    `json:"sender"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ConversationSummary is one inbox row: the other participant's username,
// a preview of the latest message, and the timestamp to sort by.
type ConversationSummary struct {
	ID            int64     `json:"id"`
	Participants  []string  `json:"participants"`
	LastMessage   *string   `json:"lastMessage"`
	LastTimestamp time.Time `json:"lastTimestamp"`
}
