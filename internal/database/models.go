package database

import (
	"time"
)

// StageEndpoints are the connection endpoints clients need to reach the
// media stage backing a room. Immutable after the record is created.
type StageEndpoints struct {
	Events string `json:"events,omitempty"`
	WHIP   string `json:"whip,omitempty"`
}

type ParticipantAttributes map[string]string

// RoomRecord is the durable record for a single room. The record is the
// source of truth for persisted state; the media stage is the source of
// truth for live membership.
type RoomRecord struct {
	Id                    string                           `json:"id"`
	CreatedAt             time.Time                        `json:"created_at"`
	UpdatedAt             time.Time                        `json:"updated_at"`
	StageArn              string                           `json:"stage_arn"`
	StageEndpoints        StageEndpoints                   `json:"stage_endpoints"`
	ParticipantAttributes map[string]ParticipantAttributes `json:"participant_attributes"`
	Publishers            []string                         `json:"publishers"`
	Subscribers           []string                         `json:"subscribers"`
	// ActiveSessionId is set only while the stage has a live session. Its
	// presence is the "is active" predicate used by the scheduler and reaper.
	ActiveSessionId string `json:"active_session_id,omitempty"`
}

func (r *RoomRecord) IsActive() bool {
	return r.ActiveSessionId != ""
}

// ActiveRoomRecord is the projection of an active room enqueued for
// subscriber reconciliation. UpdatedAt is part of the message body on
// purpose: it is what makes two snapshots of an unchanged room identical
// for queue deduplication.
type ActiveRoomRecord struct {
	Id              string    `json:"id"`
	StageArn        string    `json:"stageArn"`
	ActiveSessionId string    `json:"activeSessionId"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type CreateRoomRecordParams struct {
	Id             string
	StageArn       string
	StageEndpoints StageEndpoints
}

// UpdateRoomParticipantParams describes one participant-driven mutation.
// Attributes, Publish and Connected are independent clause groups applied
// in a single atomic write; a nil field leaves its group out entirely.
type UpdateRoomParticipantParams struct {
	RoomId        string
	ParticipantId string
	Attributes    ParticipantAttributes
	Publish       *bool
	Connected     *bool
}
