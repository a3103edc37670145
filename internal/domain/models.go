package domain

import "time"

// User is owned by the auth/profile subsystem; this service only reads it.
type User struct {
	ID             string    `db:"id" json:"_id"`
	Name           string    `db:"name" json:"name"`
	Email          string    `db:"email" json:"email"`
	Role           string    `db:"role" json:"role"`
	ProfilePicture *string   `db:"profile_picture" json:"profilePicture,omitempty"`
	Contact        *string   `db:"contact" json:"contact,omitempty"`
	PushToken      *string   `db:"push_token" json:"-"`
	IsActive       bool      `db:"is_active" json:"-"`
	IsDeleted      bool      `db:"is_deleted" json:"-"`
	IsVerified     bool      `db:"is_verified" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// Conversation identifies a unique set of participants sharing a thread.
// At most one conversation exists per distinct unordered participant set.
type Conversation struct {
	ID           string    `db:"id" json:"id"`
	Participants []string  `json:"participants"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// Message is immutable after creation except for the seen flag, which only
// ever transitions false -> true.
type Message struct {
	ID             string    `db:"id" json:"id"`
	ConversationID string    `db:"conversation_id" json:"conversation"`
	SenderID       string    `db:"sender_id" json:"sender"`
	ReceiverID     string    `db:"receiver_id" json:"receiver"`
	Text           *string   `db:"text" json:"text,omitempty"`
	File           *string   `db:"file" json:"file,omitempty"`
	Seen           bool      `db:"seen" json:"seen"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// ChatSummary is the derived per-viewer view of a conversation: its latest
// message and the viewer's unread count. Recomputed on demand, never stored.
type ChatSummary struct {
	ConversationID string   `json:"chatId"`
	Participants   []string `json:"participants"`
	LatestMessage  *Message `json:"latestMessage"`
	UnreadCount    int      `json:"unreadMessageCount"`
}
