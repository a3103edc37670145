package service

import (
	"context"
	"fmt"
	"sort"

	"maternacare/internal/domain"
)

// ChatListService computes the per-user chat summary read model: one row per
// conversation with the latest message and the viewer's unread count.
// Pure read path, safe to call concurrently with writes.
type ChatListService struct {
	conversations domain.ConversationRepository
	messages      domain.MessageRepository
}

func NewChatListService(
	conversations domain.ConversationRepository,
	messages domain.MessageRepository,
) *ChatListService {
	return &ChatListService{
		conversations: conversations,
		messages:      messages,
	}
}

// Summaries assembles one ChatSummary per conversation containing the user,
// sorted by the latest message's creation time descending. Conversations with
// no messages yet sort last.
func (s *ChatListService) Summaries(ctx context.Context, userID string) ([]*domain.ChatSummary, error) {
	convs, err := s.conversations.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	summaries := make([]*domain.ChatSummary, 0, len(convs))
	for _, conv := range convs {
		latest, err := s.messages.LatestInConversation(ctx, conv.ID)
		if err != nil {
			return nil, fmt.Errorf("latest message for %s: %w", conv.ID, err)
		}
		unread, err := s.messages.CountUnseen(ctx, conv.ID, userID)
		if err != nil {
			return nil, fmt.Errorf("unread count for %s: %w", conv.ID, err)
		}
		summaries = append(summaries, &domain.ChatSummary{
			ConversationID: conv.ID,
			Participants:   conv.Participants,
			LatestMessage:  latest,
			UnreadCount:    unread,
		})
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i].LatestMessage, summaries[j].LatestMessage
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	return summaries, nil
}
