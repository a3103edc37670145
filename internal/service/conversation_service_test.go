package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"maternacare/internal/domain"
	"maternacare/internal/service"
)

func TestGetOrCreateDirect(t *testing.T) {
	convRepo := new(MockConversationRepo)
	svc := service.NewConversationService(convRepo)

	conv := &domain.Conversation{ID: "c1", Participants: []string{"u1", "u2"}}
	convRepo.On("GetOrCreate", mock.Anything, []string{"u1", "u2"}).Return(conv, nil)

	got, err := svc.GetOrCreateDirect(context.Background(), "u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ID)
	convRepo.AssertExpectations(t)
}

func TestGetOrCreateDirectValidation(t *testing.T) {
	convRepo := new(MockConversationRepo)
	svc := service.NewConversationService(convRepo)

	_, err := svc.GetOrCreateDirect(context.Background(), "", "u2")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.GetOrCreateDirect(context.Background(), "u1", "u1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	convRepo.AssertNotCalled(t, "GetOrCreate")
}

func TestDeleteUnknownConversation(t *testing.T) {
	convRepo := new(MockConversationRepo)
	svc := service.NewConversationService(convRepo)

	convRepo.On("GetByID", mock.Anything, "missing").Return(nil, nil)

	err := svc.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	convRepo.AssertNotCalled(t, "Delete")
}
