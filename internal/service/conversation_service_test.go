package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"pairchat/internal/domain"
	"pairchat/internal/service"
)

func TestStartConversationRejectsSelf(t *testing.T) {
	convs := new(MockConversationRepo)
	users := new(MockUserRepo)
	svc := service.NewConversationService(convs, new(MockParticipantRepo), users)

	_, err := svc.StartConversation(context.Background(), 1, 1)

	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
	convs.AssertNotCalled(t, "CreateOrGetPair", mock.Anything, mock.Anything, mock.Anything)
}

func TestStartConversationUnknownParticipant(t *testing.T) {
	convs := new(MockConversationRepo)
	users := new(MockUserRepo)
	svc := service.NewConversationService(convs, new(MockParticipantRepo), users)

	users.On("GetByID", mock.Anything, int64(7)).Return(nil, nil)

	_, err := svc.StartConversation(context.Background(), 1, 7)

	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
	convs.AssertNotCalled(t, "CreateOrGetPair", mock.Anything, mock.Anything, mock.Anything)
}

func TestStartConversationReturnsExistingPair(t *testing.T) {
	convs := new(MockConversationRepo)
	users := new(MockUserRepo)
	svc := service.NewConversationService(convs, new(MockParticipantRepo), users)

	users.On("GetByID", mock.Anything, int64(2)).Return(&domain.User{ID: 2, Username: "bob"}, nil)
	convs.On("CreateOrGetPair", mock.Anything, int64(1), int64(2)).
		Return(&domain.Conversation{ID: 42, PairKey: domain.PairKey(1, 2)}, false, nil)

	conv, err := svc.StartConversation(context.Background(), 1, 2)

	assert.NoError(t, err)
	assert.Equal(t, int64(42), conv.ID)
}
