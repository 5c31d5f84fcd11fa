package database

import (
	"github.com/stretchr/testify/mock"
)

type MockRoomRepository struct {
	mock.Mock
}

func (m *MockRoomRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRoomRepository) CreateRoomRecord(params CreateRoomRecordParams) (RoomRecord, error) {
	args := m.Called(params)
	return args.Get(0).(RoomRecord), args.Error(1)
}

func (m *MockRoomRepository) GetRoomRecord(id string) (RoomRecord, error) {
	args := m.Called(id)
	return args.Get(0).(RoomRecord), args.Error(1)
}

func (m *MockRoomRepository) ListRoomRecords(fields []string, filters map[string]string) ([]RoomRecord, error) {
	args := m.Called(fields, filters)
	if records, ok := args.Get(0).([]RoomRecord); ok {
		return records, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRoomRepository) ListActiveRoomRecords() ([]ActiveRoomRecord, error) {
	args := m.Called()
	if records, ok := args.Get(0).([]ActiveRoomRecord); ok {
		return records, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRoomRepository) UpdateRoomParticipant(params UpdateRoomParticipantParams) (RoomRecord, error) {
	args := m.Called(params)
	return args.Get(0).(RoomRecord), args.Error(1)
}

func (m *MockRoomRepository) UpdateRoomRecord(id string, muts []Mutation, onlyIfActive bool) error {
	args := m.Called(id, muts, onlyIfActive)
	return args.Error(0)
}

func (m *MockRoomRepository) Touch(id string, onlyIfActive bool) error {
	args := m.Called(id, onlyIfActive)
	return args.Error(0)
}

func (m *MockRoomRepository) DeleteRoomRecord(id string) error {
	args := m.Called(id)
	return args.Error(0)
}
