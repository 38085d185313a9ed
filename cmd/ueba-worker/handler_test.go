package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fincore-agent-api/internal/domain/entity"
	"fincore-agent-api/internal/infrastructure/messaging"
)

type MockInteractionRepository struct {
	mock.Mock
}

func (m *MockInteractionRepository) Create(ctx context.Context, in *entity.Interaction) error {
	return m.Called(ctx, in).Error(0)
}

func (m *MockInteractionRepository) ListSince(ctx context.Context, since time.Time, limit int) ([]*entity.Interaction, error) {
	args := m.Called(ctx, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.Interaction), args.Error(1)
}

func interactionMessage(t *testing.T, in *entity.Interaction) *messaging.Message {
	t.Helper()
	msg, err := messaging.NewMessage(in.ID, messaging.TypeInteraction, in.RequestID, in)
	require.NoError(t, err)
	return msg
}

func TestPersistInteraction_StoresDecodedEvent(t *testing.T) {
	longLabel := "agent-partner-desk-escalation-with-a-very-long-label"
	in := &entity.Interaction{
		ID:          "7f1c9a52-2c1e-4d5e-9a43-0d1a2f6b8e11",
		RequestID:   "req-1",
		Modalities:  []string{"text"},
		AIText:      "Routing you.",
		ActiveAgent: longLabel,
		Calls:       entity.CallStatuses{entity.IntegrationGeneration: entity.CallSuccess},
		OccurredAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	repo := new(MockInteractionRepository)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(got *entity.Interaction) bool {
		return got.ID == in.ID && got.ActiveAgent == longLabel &&
			got.Calls.Get(entity.IntegrationGeneration) == entity.CallSuccess
	})).Return(nil)

	err := persistInteraction(repo)(context.Background(), interactionMessage(t, in))

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestPersistInteraction_StoreErrorIsReturned(t *testing.T) {
	repo := new(MockInteractionRepository)
	repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

	err := persistInteraction(repo)(context.Background(), interactionMessage(t, &entity.Interaction{ID: "id-1"}))

	assert.EqualError(t, err, "connection reset")
}

func TestPersistInteraction_UndecodablePayload(t *testing.T) {
	repo := new(MockInteractionRepository)
	msg := &messaging.Message{ID: "m-1", Type: messaging.TypeInteraction, Payload: []byte(`"not an object"`)}

	err := persistInteraction(repo)(context.Background(), msg)

	assert.ErrorContains(t, err, "decode interaction")
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestReportRecent(t *testing.T) {
	repo := new(MockInteractionRepository)
	repo.On("ListSince", mock.Anything, mock.MatchedBy(func(since time.Time) bool {
		return time.Since(since) >= time.Hour && time.Since(since) < time.Hour+time.Minute
	}), 50).Return([]*entity.Interaction{
		{ID: "b", OccurredAt: time.Now()},
		{ID: "a", OccurredAt: time.Now().Add(-time.Minute)},
	}, nil)

	n, err := reportRecent(context.Background(), repo, time.Hour, 50)

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	repo.AssertExpectations(t)
}

func TestReportRecent_Error(t *testing.T) {
	repo := new(MockInteractionRepository)
	repo.On("ListSince", mock.Anything, mock.Anything, 10).Return(nil, errors.New("db down"))

	_, err := reportRecent(context.Background(), repo, time.Hour, 10)

	assert.EqualError(t, err, "db down")
}
