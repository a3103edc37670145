package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"maternacare/internal/domain"
)

type ConversationRepo struct {
	db *sql.DB
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

var _ domain.ConversationRepository = (*ConversationRepo)(nil)

// canonicalParticipants canonicalizes a participant set: sorted, duplicates
// removed. Equal sets always canonicalize to the same slice.
func canonicalParticipants(participantIDs []string) []string {
	set := append([]string(nil), participantIDs...)
	slices.Sort(set)
	return slices.Compact(set)
}

func (r *ConversationRepo) GetOrCreate(ctx context.Context, participantIDs []string) (*domain.Conversation, error) {
	set := canonicalParticipants(participantIDs)
	if len(set) < 2 {
		return nil, fmt.Errorf("%w: conversation requires at least two distinct participants", domain.ErrInvalidInput)
	}
	// The UNIQUE constraint on this key enforces at most one conversation
	// per set.
	key := strings.Join(set, ",")

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (id, participant_key, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(participant_key) DO NOTHING
	`, uuid.NewString(), key, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	c := &domain.Conversation{}
	err = tx.QueryRowContext(ctx, `
		SELECT id, created_at FROM conversations WHERE participant_key = ?
	`, key).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("select conversation: %w", err)
	}

	// Only the creation winner inserts the participant rows.
	if n, _ := res.RowsAffected(); n > 0 {
		for _, uid := range set {
			if _, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO conversation_participants (user_id, conversation_id, joined_at)
				VALUES (?, ?, CURRENT_TIMESTAMP)
			`, uid, c.ID); err != nil {
				return nil, fmt.Errorf("insert participant: %w", err)
			}
		}
		c.Participants = set
	} else {
		participants, err := listParticipantsTx(ctx, tx, c.ID)
		if err != nil {
			return nil, err
		}
		c.Participants = participants
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return c, nil
}

func (r *ConversationRepo) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	c := &domain.Conversation{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, created_at FROM conversations WHERE id = ?
	`, id).Scan(&c.ID, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	participants, err := r.listParticipants(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Participants = participants
	return c, nil
}

func (r *ConversationRepo) FindByUser(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.created_at
		FROM conversations c
		JOIN conversation_participants cp ON cp.conversation_id = c.id
		WHERE cp.user_id = ?
		ORDER BY c.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("find conversations: %w", err)
	}
	defer rows.Close()

	var res []*domain.Conversation
	for rows.Next() {
		c := &domain.Conversation{}
		if err := rows.Scan(&c.ID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		res = append(res, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}

	for _, c := range res {
		participants, err := r.listParticipants(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		c.Participants = participants
	}
	return res, nil
}

// Delete hard-deletes the conversation row; participant and message rows
// follow via ON DELETE CASCADE.
func (r *ConversationRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ConversationRepo) listParticipants(ctx context.Context, conversationID string) ([]string, error) {
	return queryParticipants(ctx, r.db, conversationID)
}

func listParticipantsTx(ctx context.Context, tx *sql.Tx, conversationID string) ([]string, error) {
	return queryParticipants(ctx, tx, conversationID)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryParticipants(ctx context.Context, q querier, conversationID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT user_id FROM conversation_participants
		WHERE conversation_id = ?
		ORDER BY rowid ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}
	return ids, nil
}
