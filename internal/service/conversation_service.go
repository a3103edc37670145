package service

import (
	"context"
	"fmt"

	"maternacare/internal/domain"
)

type ConversationService struct {
	conversations domain.ConversationRepository
}

func NewConversationService(conversations domain.ConversationRepository) *ConversationService {
	return &ConversationService{conversations: conversations}
}

// GetOrCreateDirect resolves the single conversation for the caller/receiver
// pair, creating it if absent. Idempotent under concurrent calls from either
// participant; the storage layer enforces uniqueness of the participant set.
func (s *ConversationService) GetOrCreateDirect(
	ctx context.Context,
	callerID, receiverID string,
) (*domain.Conversation, error) {
	if callerID == "" || receiverID == "" {
		return nil, fmt.Errorf("%w: caller and receiver are required", domain.ErrInvalidInput)
	}
	if callerID == receiverID {
		return nil, fmt.Errorf("%w: cannot open a conversation with yourself", domain.ErrInvalidInput)
	}
	return s.conversations.GetOrCreate(ctx, []string{callerID, receiverID})
}

func (s *ConversationService) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, fmt.Errorf("%w: chat id is not valid", domain.ErrNotFound)
	}
	return conv, nil
}

// Delete hard-deletes the conversation for all participants.
func (s *ConversationService) Delete(ctx context.Context, id string) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	return s.conversations.Delete(ctx, id)
}
