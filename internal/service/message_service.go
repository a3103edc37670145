package service

import (
	"context"
	"fmt"

	"maternacare/internal/domain"
)

type MessageService struct {
	conversations *ConversationService
	messages      domain.MessageRepository
}

func NewMessageService(
	conversations *ConversationService,
	messages domain.MessageRepository,
) *MessageService {
	return &MessageService{
		conversations: conversations,
		messages:      messages,
	}
}

type SendInput struct {
	SenderID   string
	ReceiverID string
	Text       *string
	File       *string
}

// Send resolves the conversation for the pair (creating it if needed) and
// appends the message with seen=false.
func (s *MessageService) Send(ctx context.Context, in SendInput) (*domain.Message, error) {
	if in.ReceiverID == "" {
		return nil, fmt.Errorf("%w: receiverId is required", domain.ErrInvalidInput)
	}
	hasText := in.Text != nil && *in.Text != ""
	hasFile := in.File != nil && *in.File != ""
	if !hasText && !hasFile {
		return nil, fmt.Errorf("%w: message requires text or file", domain.ErrInvalidInput)
	}

	conv, err := s.conversations.GetOrCreateDirect(ctx, in.SenderID, in.ReceiverID)
	if err != nil {
		return nil, fmt.Errorf("resolve conversation: %w", err)
	}

	msg := &domain.Message{
		ConversationID: conv.ID,
		SenderID:       in.SenderID,
		ReceiverID:     in.ReceiverID,
		Text:           in.Text,
		File:           in.File,
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// History returns the full ordered message history between two users,
// oldest first. Re-sent in full after every send; the delta strategy can be
// swapped in behind this method.
func (s *MessageService) History(ctx context.Context, userA, userB string) ([]*domain.Message, error) {
	return s.messages.FindBetween(ctx, userA, userB)
}

// MarkSeen flips every unseen message in the conversation not sent by the
// viewer and returns the conversation so callers can notify its participants.
func (s *MessageService) MarkSeen(ctx context.Context, conversationID, viewerID string) (*domain.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if _, err := s.messages.MarkSeenBulk(ctx, conversationID, viewerID); err != nil {
		return nil, err
	}
	return conv, nil
}
