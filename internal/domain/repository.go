package domain

import (
	"context"
	"time"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]*User, error)
}

// ConversationRepository defines persistence operations for conversations.
type ConversationRepository interface {
	// CreateOrGetPair atomically creates the conversation for the given
	// unordered user pair, or returns the existing one. The bool reports
	// whether a new row was created.
	CreateOrGetPair(ctx context.Context, userA, userB int64) (*Conversation, bool, error)
	GetByID(ctx context.Context, id int64) (*Conversation, error)
	ListForUser(ctx context.Context, userID int64) ([]*ConversationSummary, error)
	ListIDsForUser(ctx context.Context, userID int64) ([]int64, error)
	TouchUpdatedAt(ctx context.Context, id int64, at time.Time) error
}

// MessageRepository defines persistence operations for messages.
type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	ListForConversation(ctx context.Context, conversationID int64) ([]*MessageView, error)
}

// ParticipantRepository defines operations around conversation participants.
type ParticipantRepository interface {
	ListParticipantIDs(ctx context.Context, conversationID int64) ([]int64, error)
	IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error)
}

// Repositories bundles one store's repository implementations for wiring.
type Repositories struct {
	Users         UserRepository
	Conversations ConversationRepository
	Messages      MessageRepository
	Participants  ParticipantRepository
}
