package domain

import (
	"context"
)

// UserRepository defines read-only access to the user store.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	ListByIDs(ctx context.Context, ids []string) ([]*User, error)
	// CheckAccount verifies the account is usable: exists, active, not
	// deleted, verified. Returns a descriptive error otherwise.
	CheckAccount(ctx context.Context, id string) error
}

// ConversationRepository defines persistence operations for conversations.
type ConversationRepository interface {
	// GetOrCreate resolves the single conversation for the given participant
	// set, creating it if absent. Concurrent calls for the same set must
	// resolve to the same row; the loser of a creation race observes the
	// winner's row.
	GetOrCreate(ctx context.Context, participantIDs []string) (*Conversation, error)
	GetByID(ctx context.Context, id string) (*Conversation, error)
	FindByUser(ctx context.Context, userID string) ([]*Conversation, error)
	Delete(ctx context.Context, id string) error
}

// MessageRepository defines persistence operations for messages.
type MessageRepository interface {
	Append(ctx context.Context, m *Message) error
	// FindBetween returns all messages exchanged between the two users,
	// ordered by updated_at ascending.
	FindBetween(ctx context.Context, userA, userB string) ([]*Message, error)
	// LatestInConversation returns the most recently updated message in the
	// conversation, or nil if the conversation has no messages.
	LatestInConversation(ctx context.Context, conversationID string) (*Message, error)
	CountUnseen(ctx context.Context, conversationID, viewerID string) (int, error)
	// MarkSeenBulk flips seen=true on every unseen message in the
	// conversation not sent by the viewer and returns the number affected.
	MarkSeenBulk(ctx context.Context, conversationID, viewerID string) (int64, error)
}
