package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/npezzotti/go-audiorooms/internal/database"
	"github.com/npezzotti/go-audiorooms/internal/queue"
	"github.com/npezzotti/go-audiorooms/internal/stage"
	"github.com/npezzotti/go-audiorooms/internal/stats"
	"github.com/npezzotti/go-audiorooms/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestWorker(t *testing.T) (*Worker, *database.MockRoomRepository, *stage.MockClient, *queue.MockQueue, *stats.MockStatsUpdater) {
	mockRepo := &database.MockRoomRepository{}
	mockStage := &stage.MockClient{}
	mockQueue := &queue.MockQueue{}
	mockStats := &stats.MockStatsUpdater{}
	t.Cleanup(func() {
		mockRepo.AssertExpectations(t)
		mockStage.AssertExpectations(t)
		mockQueue.AssertExpectations(t)
		mockStats.AssertExpectations(t)
	})

	w := NewWorker(testutil.TestLogger(t), mockRepo, mockStage, mockQueue, mockStats)
	return w, mockRepo, mockStage, mockQueue, mockStats
}

func roomEntry(t *testing.T, room database.ActiveRoomRecord) queue.Entry {
	body, err := json.Marshal(room)
	require.NoError(t, err)
	return queue.Entry{Id: room.Id, GroupId: activeRoomsGroup, Body: body}
}

func TestProcessBatchUpdatesSubscribers(t *testing.T) {
	w, mockRepo, mockStage, mockQueue, mockStats := newTestWorker(t)

	room := database.ActiveRoomRecord{
		Id:              "room1",
		StageArn:        "arn:aws:ivs:us-east-1:123456789012:stage/room1",
		ActiveSessionId: "sess1",
		UpdatedAt:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	mockQueue.On("Receive", mock.Anything, w.batchSize).
		Return([]queue.Entry{roomEntry(t, room)}, nil).Once()
	mockStage.On("ListParticipants", mock.Anything, room.StageArn, room.ActiveSessionId, stage.ParticipantStateConnected).
		Return([]stage.Participant{
			{ParticipantId: "p1", State: stage.ParticipantStateConnected},
			{ParticipantId: "p2", State: stage.ParticipantStateConnected},
		}, nil).Once()
	mockRepo.On("UpdateRoomRecord", "room1", []database.Mutation{
		database.SetAttribute{Name: database.AttrSubscribers, Value: []string{"p1", "p2"}},
	}, true).Return(nil).Once()
	mockStats.On("Incr", stats.ReconcilePasses).Once()

	report, err := w.ProcessBatch(context.Background())
	assert.NoError(t, err, "expected no batch-level error")
	assert.Len(t, report.Results, 1, "expected one result")
	assert.Equal(t, OutcomeUpdated, report.Results[0].Outcome, "expected the room to be updated")
}

func TestProcessBatchHeartbeatOnStageFailure(t *testing.T) {
	w, mockRepo, mockStage, mockQueue, mockStats := newTestWorker(t)

	room := database.ActiveRoomRecord{
		Id:              "room1",
		StageArn:        "arn:aws:ivs:us-east-1:123456789012:stage/room1",
		ActiveSessionId: "sess1",
	}

	mockQueue.On("Receive", mock.Anything, w.batchSize).
		Return([]queue.Entry{roomEntry(t, room)}, nil).Once()
	mockStage.On("ListParticipants", mock.Anything, room.StageArn, room.ActiveSessionId, stage.ParticipantStateConnected).
		Return(nil, stage.ErrUnavailable).Once()
	mockRepo.On("Touch", "room1", true).Return(nil).Once()
	mockStats.On("Incr", stats.ReconcilePasses).Once()

	report, err := w.ProcessBatch(context.Background())
	assert.NoError(t, err, "expected no batch-level error")
	assert.Equal(t, OutcomeHeartbeat, report.Results[0].Outcome,
		"expected an unreachable stage to fall back to a heartbeat")
	mockRepo.AssertNotCalled(t, "UpdateRoomRecord", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessBatchSkipsInactiveRoom(t *testing.T) {
	w, mockRepo, mockStage, mockQueue, _ := newTestWorker(t)

	room := database.ActiveRoomRecord{
		Id:              "room1",
		StageArn:        "arn:aws:ivs:us-east-1:123456789012:stage/room1",
		ActiveSessionId: "sess1",
	}

	mockQueue.On("Receive", mock.Anything, w.batchSize).
		Return([]queue.Entry{roomEntry(t, room)}, nil).Once()
	mockStage.On("ListParticipants", mock.Anything, room.StageArn, room.ActiveSessionId, stage.ParticipantStateConnected).
		Return([]stage.Participant{}, nil).Once()
	mockRepo.On("UpdateRoomRecord", "room1", mock.Anything, true).
		Return(database.ErrPreconditionFailed).Once()

	report, err := w.ProcessBatch(context.Background())
	assert.NoError(t, err, "expected no batch-level error")
	assert.Equal(t, OutcomeSkipped, report.Results[0].Outcome,
		"expected a room that went inactive mid-flight to be skipped")
}

func TestProcessBatchFailedSnapshot(t *testing.T) {
	w, _, _, mockQueue, mockStats := newTestWorker(t)

	mockQueue.On("Receive", mock.Anything, w.batchSize).
		Return([]queue.Entry{{Id: "room1", Body: []byte("not json")}}, nil).Once()
	mockStats.On("Incr", stats.ReconcileFailures).Once()

	report, err := w.ProcessBatch(context.Background())
	assert.NoError(t, err, "expected no batch-level error")
	assert.Equal(t, OutcomeFailed, report.Results[0].Outcome, "expected a malformed snapshot to fail")
	assert.Error(t, report.Results[0].Err, "expected the decode error to be recorded")
}

func TestProcessBatchIsolatesRoomFailures(t *testing.T) {
	w, mockRepo, mockStage, mockQueue, mockStats := newTestWorker(t)

	room1 := database.ActiveRoomRecord{
		Id:              "room1",
		StageArn:        "arn:aws:ivs:us-east-1:123456789012:stage/room1",
		ActiveSessionId: "sess1",
	}
	room2 := database.ActiveRoomRecord{
		Id:              "room2",
		StageArn:        "arn:aws:ivs:us-east-1:123456789012:stage/room2",
		ActiveSessionId: "sess2",
	}

	mockQueue.On("Receive", mock.Anything, w.batchSize).
		Return([]queue.Entry{roomEntry(t, room1), roomEntry(t, room2)}, nil).Once()

	mockStage.On("ListParticipants", mock.Anything, room1.StageArn, room1.ActiveSessionId, stage.ParticipantStateConnected).
		Return([]stage.Participant{{ParticipantId: "p1"}}, nil).Once()
	mockRepo.On("UpdateRoomRecord", "room1", mock.Anything, true).
		Return(errors.New("db error")).Once()
	mockStats.On("Incr", stats.ReconcileFailures).Once()

	mockStage.On("ListParticipants", mock.Anything, room2.StageArn, room2.ActiveSessionId, stage.ParticipantStateConnected).
		Return([]stage.Participant{{ParticipantId: "p2"}}, nil).Once()
	mockRepo.On("UpdateRoomRecord", "room2", mock.Anything, true).Return(nil).Once()
	mockStats.On("Incr", stats.ReconcilePasses).Once()

	report, err := w.ProcessBatch(context.Background())
	assert.NoError(t, err, "expected no batch-level error")
	assert.Equal(t, 1, report.Count(OutcomeFailed), "expected one failed room")
	assert.Equal(t, 1, report.Count(OutcomeUpdated), "expected the other room to still be updated")
}

func TestProcessBatchQueueFailure(t *testing.T) {
	w, _, _, mockQueue, _ := newTestWorker(t)

	mockQueue.On("Receive", mock.Anything, w.batchSize).
		Return(nil, errors.New("redis error")).Once()

	_, err := w.ProcessBatch(context.Background())
	assert.Error(t, err, "expected queue failure to surface")
}

func TestReportCount(t *testing.T) {
	report := Report{Results: []Result{
		{RoomId: "room1", Outcome: OutcomeUpdated},
		{RoomId: "room2", Outcome: OutcomeUpdated},
		{RoomId: "room3", Outcome: OutcomeHeartbeat},
	}}

	assert.Equal(t, 2, report.Count(OutcomeUpdated), "expected two updated rooms")
	assert.Equal(t, 1, report.Count(OutcomeHeartbeat), "expected one heartbeat")
	assert.Equal(t, 0, report.Count(OutcomeFailed), "expected no failures")
}
