// Package events consumes participant and session notifications pushed by
// the media provider and applies them to room records. Publisher
// membership is only ever changed here; subscriber membership is refreshed
// authoritatively by the reconciliation pipeline.
package events

import (
	"github.com/npezzotti/go-audiorooms/internal/database"
)

const (
	EventParticipantPublished    = "Participant Published"
	EventParticipantUnpublished  = "Participant Unpublished"
	EventParticipantConnected    = "Participant Connected"
	EventParticipantDisconnected = "Participant Disconnected"
	EventSessionCreated          = "Session Created"
	EventSessionEnded            = "Session Ended"
)

// StageUpdateEvent is one notification from the provider's event feed.
type StageUpdateEvent struct {
	EventName     string `json:"event_name"`
	StageArn      string `json:"stage_arn"`
	SessionId     string `json:"session_id"`
	ParticipantId string `json:"participant_id,omitempty"`
	UserId        string `json:"user_id,omitempty"`
}

func boolPtr(b bool) *bool { return &b }

// mutationsFor translates a session lifecycle event into record mutations.
// Returns nil for participant-level events, which go through
// UpdateRoomParticipant instead.
func mutationsFor(ev StageUpdateEvent) []database.Mutation {
	switch ev.EventName {
	case EventSessionCreated:
		return []database.Mutation{
			database.SetAttribute{Name: database.AttrActiveSessionId, Value: ev.SessionId},
		}
	case EventSessionEnded:
		return []database.Mutation{
			database.RemoveAttribute{Name: database.AttrActiveSessionId},
		}
	default:
		return nil
	}
}
