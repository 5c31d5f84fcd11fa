package queue

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) Enqueue(ctx context.Context, entries []Entry) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}

func (m *MockQueue) Receive(ctx context.Context, max int) ([]Entry, error) {
	args := m.Called(ctx, max)
	if entries, ok := args.Get(0).([]Entry); ok {
		return entries, args.Error(1)
	}
	return nil, args.Error(1)
}
