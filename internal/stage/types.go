package stage

import (
	"github.com/npezzotti/go-audiorooms/internal/database"
)

type ParticipantState string

const (
	ParticipantStateConnected    ParticipantState = "CONNECTED"
	ParticipantStateDisconnected ParticipantState = "DISCONNECTED"
)

// Stage is an ephemeral media session managed by the external provider. It
// has no durable storage of its own; the room record carries everything
// that must survive it.
type Stage struct {
	Arn       string                  `json:"arn"`
	Endpoints database.StageEndpoints `json:"endpoints"`
}

type UserData struct {
	Name string `json:"name"`
}

// ParticipantToken is the credential a client presents to join a stage.
type ParticipantToken struct {
	Token         string            `json:"token"`
	ParticipantId string            `json:"participantId"`
	Attributes    map[string]string `json:"attributes"`
}

type Participant struct {
	ParticipantId string            `json:"participantId"`
	State         ParticipantState  `json:"state"`
	Published     bool              `json:"published"`
	Attributes    map[string]string `json:"attributes"`
}

// StageSummary is the provider's view of a stage used by the reaper.
// ActiveSessionId is empty when no session is live.
type StageSummary struct {
	Arn             string            `json:"arn"`
	ActiveSessionId string            `json:"activeSessionId,omitempty"`
	Tags            map[string]string `json:"tags,omitempty"`
}

// Retained reports whether the stage carries the explicit retention tag
// that exempts its room from reaping.
func (s StageSummary) Retained() bool {
	return s.Tags["retain"] == "Y"
}
