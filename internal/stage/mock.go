package stage

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockClient struct {
	mock.Mock
}

func (m *MockClient) CreateStage(ctx context.Context) (Stage, error) {
	args := m.Called(ctx)
	return args.Get(0).(Stage), args.Error(1)
}

func (m *MockClient) CreateParticipantToken(ctx context.Context, stageArn string, userData UserData) (ParticipantToken, error) {
	args := m.Called(ctx, stageArn, userData)
	return args.Get(0).(ParticipantToken), args.Error(1)
}

func (m *MockClient) ListParticipants(ctx context.Context, stageArn, sessionId string, state ParticipantState) ([]Participant, error) {
	args := m.Called(ctx, stageArn, sessionId, state)
	if participants, ok := args.Get(0).([]Participant); ok {
		return participants, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClient) ListStages(ctx context.Context) ([]StageSummary, error) {
	args := m.Called(ctx)
	if stages, ok := args.Get(0).([]StageSummary); ok {
		return stages, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClient) DeleteStage(ctx context.Context, stageArn string) error {
	args := m.Called(ctx, stageArn)
	return args.Error(0)
}
