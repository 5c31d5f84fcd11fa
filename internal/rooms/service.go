package rooms

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/npezzotti/go-audiorooms/internal/database"
	"github.com/npezzotti/go-audiorooms/internal/stage"
	"github.com/npezzotti/go-audiorooms/internal/stats"
)

var (
	// ErrRoomNotFound is returned when a caller references a room id with no
	// record behind it.
	ErrRoomNotFound = errors.New("room not found")
	// ErrJoinFailed is the single opaque failure surfaced to join callers.
	// An orphaned record behind it is acceptable: an unconsumed empty room
	// is cheaply reaped.
	ErrJoinFailed = errors.New("failed to join room")
)

// StageConfig is what a client needs to connect to the stage.
type StageConfig struct {
	Token         string `json:"token"`
	ParticipantId string `json:"participantId"`
}

type JoinResult struct {
	RoomId      string      `json:"roomId"`
	StageArn    string      `json:"stageArn"`
	StageConfig StageConfig `json:"stageConfig"`
}

type RoomParticipant struct {
	Id           string                         `json:"id"`
	IsPublishing bool                           `json:"isPublishing"`
	Attributes   database.ParticipantAttributes `json:"attributes"`
}

type RoomView struct {
	Id           string                     `json:"id"`
	StageArn     string                     `json:"stageArn"`
	CreatedAt    time.Time                  `json:"createdAt"`
	IsActive     bool                       `json:"isActive"`
	Participants map[string]RoomParticipant `json:"participants"`
}

// RoomService creates media stages and room records as a pair, attaches
// joining participants, and builds read views of rooms.
type RoomService struct {
	log   *log.Logger
	db    database.RoomRepository
	stage stage.Client
	stats stats.StatsProvider
}

func NewRoomService(logger *log.Logger, db database.RoomRepository, stageClient stage.Client, statsProvider stats.StatsProvider) *RoomService {
	return &RoomService{
		log:   logger,
		db:    db,
		stage: stageClient,
		stats: statsProvider,
	}
}

// CreateRoom requests a new stage from the provider and persists the room
// record pair. The room id is derived from the stage ARN, never generated.
func (s *RoomService) CreateRoom(ctx context.Context) (database.RoomRecord, error) {
	st, err := s.stage.CreateStage(ctx)
	if err != nil {
		return database.RoomRecord{}, fmt.Errorf("create stage: %w", err)
	}

	roomId, err := RoomIdFromStageArn(st.Arn)
	if err != nil {
		return database.RoomRecord{}, err
	}

	rec, err := s.db.CreateRoomRecord(database.CreateRoomRecordParams{
		Id:             roomId,
		StageArn:       st.Arn,
		StageEndpoints: st.Endpoints,
	})
	if err != nil {
		return database.RoomRecord{}, fmt.Errorf("create room record: %w", err)
	}

	s.log.Printf("created room %q backed by stage %q", rec.Id, rec.StageArn)
	s.stats.Incr(stats.RoomsCreated)

	return rec, nil
}

// JoinRoom attaches a participant to an existing room, or creates a new
// room when no id is given. Any failure surfaces as ErrJoinFailed; callers
// get no partially-joined room.
func (s *RoomService) JoinRoom(ctx context.Context, username, roomId string) (JoinResult, error) {
	var (
		rec database.RoomRecord
		err error
	)

	if roomId != "" {
		rec, err = s.db.GetRoomRecord(roomId)
		if err != nil {
			if errors.Is(err, database.ErrRecordNotFound) {
				return JoinResult{}, ErrRoomNotFound
			}
			s.log.Printf("get room record %q: %v", roomId, err)
			return JoinResult{}, ErrJoinFailed
		}
	} else {
		rec, err = s.CreateRoom(ctx)
		if err != nil {
			s.log.Printf("create room: %v", err)
			return JoinResult{}, ErrJoinFailed
		}
	}

	token, err := s.stage.CreateParticipantToken(ctx, rec.StageArn, stage.UserData{Name: username})
	if err != nil {
		s.log.Printf("create participant token for room %q: %v", rec.Id, err)
		return JoinResult{}, ErrJoinFailed
	}

	// Register the participant's identity on the record. The stage remains
	// authoritative for membership; this write only seeds the attribute bag.
	_, err = s.db.UpdateRoomParticipant(database.UpdateRoomParticipantParams{
		RoomId:        rec.Id,
		ParticipantId: token.ParticipantId,
		Attributes:    token.Attributes,
	})
	if err != nil {
		s.log.Printf("register participant %q in room %q: %v", token.ParticipantId, rec.Id, err)
		return JoinResult{}, ErrJoinFailed
	}

	s.stats.Incr(stats.RoomsJoined)

	return JoinResult{
		RoomId:   rec.Id,
		StageArn: rec.StageArn,
		StageConfig: StageConfig{
			Token:         token.Token,
			ParticipantId: token.ParticipantId,
		},
	}, nil
}

// GetRoom builds the client-facing view of a room from its record. The
// participant map is keyed off the subscriber set; publishers not currently
// subscribed are intentionally omitted.
func (s *RoomService) GetRoom(id string) (RoomView, error) {
	rec, err := s.db.GetRoomRecord(id)
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return RoomView{}, ErrRoomNotFound
		}
		return RoomView{}, err
	}

	publishers := make(map[string]bool, len(rec.Publishers))
	for _, p := range rec.Publishers {
		publishers[p] = true
	}

	participants := make(map[string]RoomParticipant, len(rec.Subscribers))
	for _, participantId := range rec.Subscribers {
		participants[participantId] = RoomParticipant{
			Id:           participantId,
			IsPublishing: publishers[participantId],
			Attributes:   rec.ParticipantAttributes[participantId],
		}
	}

	return RoomView{
		Id:           rec.Id,
		StageArn:     rec.StageArn,
		CreatedAt:    rec.CreatedAt,
		IsActive:     rec.IsActive(),
		Participants: participants,
	}, nil
}
