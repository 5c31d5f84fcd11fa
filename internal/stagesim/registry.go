// Package stagesim is an in-memory stand-in for the external media-session
// provider, used for local development and end-to-end tests. It implements
// the same wire contract the stage.HTTPClient speaks and pushes the same
// event feed the events.Listener consumes.
package stagesim

import (
	"fmt"
	"sync"

	"github.com/npezzotti/go-audiorooms/internal/database"
	"github.com/npezzotti/go-audiorooms/internal/events"
	"github.com/npezzotti/go-audiorooms/internal/stage"
	"github.com/teris-io/shortid"
)

const arnPrefix = "arn:sim:audiorooms:local:000000000000:stage/"

var ErrStageNotFound = fmt.Errorf("stage not found")

type simParticipant struct {
	id         string
	state      stage.ParticipantState
	published  bool
	attributes map[string]string
}

type simStage struct {
	arn             string
	endpoints       database.StageEndpoints
	activeSessionId string
	tags            map[string]string
	participants    map[string]*simParticipant
}

// Registry holds every simulated stage. It is created explicitly and
// passed to whatever needs it; there is no package-level registry.
type Registry struct {
	mu       sync.RWMutex
	stages   map[string]*simStage
	eventsCh chan events.StageUpdateEvent
}

func NewRegistry() *Registry {
	return &Registry{
		stages:   make(map[string]*simStage),
		eventsCh: make(chan events.StageUpdateEvent, 64),
	}
}

// Events is the feed of simulated stage notifications.
func (r *Registry) Events() <-chan events.StageUpdateEvent {
	return r.eventsCh
}

func (r *Registry) emit(ev events.StageUpdateEvent) {
	select {
	case r.eventsCh <- ev:
	default:
		// a slow consumer loses events, just like the real provider
	}
}

func (r *Registry) CreateStage() (stage.Stage, error) {
	sid, err := shortid.Generate()
	if err != nil {
		return stage.Stage{}, fmt.Errorf("generate stage id: %w", err)
	}

	arn := arnPrefix + sid
	endpoints := database.StageEndpoints{
		Events: "wss://events.sim.local/" + sid,
		WHIP:   "https://whip.sim.local/" + sid,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages[arn] = &simStage{
		arn:          arn,
		endpoints:    endpoints,
		tags:         make(map[string]string),
		participants: make(map[string]*simParticipant),
	}

	return stage.Stage{Arn: arn, Endpoints: endpoints}, nil
}

func (r *Registry) DeleteStage(arn string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stages[arn]; !ok {
		return ErrStageNotFound
	}
	delete(r.stages, arn)
	return nil
}

func (r *Registry) ListStages() []stage.StageSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summaries := make([]stage.StageSummary, 0, len(r.stages))
	for _, st := range r.stages {
		tags := make(map[string]string, len(st.tags))
		for k, v := range st.tags {
			tags[k] = v
		}
		summaries = append(summaries, stage.StageSummary{
			Arn:             st.arn,
			ActiveSessionId: st.activeSessionId,
			Tags:            tags,
		})
	}

	return summaries
}

func (r *Registry) ListParticipants(arn, sessionId string, state stage.ParticipantState) ([]stage.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st, ok := r.stages[arn]
	if !ok {
		return nil, ErrStageNotFound
	}
	if sessionId != "" && sessionId != st.activeSessionId {
		return nil, nil
	}

	var participants []stage.Participant
	for _, p := range st.participants {
		if state != "" && p.state != state {
			continue
		}
		participants = append(participants, stage.Participant{
			ParticipantId: p.id,
			State:         p.state,
			Published:     p.published,
			Attributes:    p.attributes,
		})
	}

	return participants, nil
}

// AddParticipant registers a connected participant, starting a session if
// none is live. It emits the same Session Created / Participant Connected
// notifications the real provider would.
func (r *Registry) AddParticipant(arn string, attributes map[string]string) (string, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.stages[arn]
	if !ok {
		return "", "", ErrStageNotFound
	}

	participantId, err := shortid.Generate()
	if err != nil {
		return "", "", fmt.Errorf("generate participant id: %w", err)
	}

	if st.activeSessionId == "" {
		sessionId, err := shortid.Generate()
		if err != nil {
			return "", "", fmt.Errorf("generate session id: %w", err)
		}
		st.activeSessionId = sessionId
		r.emit(events.StageUpdateEvent{
			EventName: events.EventSessionCreated,
			StageArn:  arn,
			SessionId: sessionId,
		})
	}

	st.participants[participantId] = &simParticipant{
		id:         participantId,
		state:      stage.ParticipantStateConnected,
		attributes: attributes,
	}

	r.emit(events.StageUpdateEvent{
		EventName:     events.EventParticipantConnected,
		StageArn:      arn,
		SessionId:     st.activeSessionId,
		ParticipantId: participantId,
	})

	return participantId, st.activeSessionId, nil
}

// SetPublished flips a participant's publish state and emits the matching
// notification.
func (r *Registry) SetPublished(arn, participantId string, published bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.stages[arn]
	if !ok {
		return ErrStageNotFound
	}
	p, ok := st.participants[participantId]
	if !ok {
		return fmt.Errorf("participant %q not found", participantId)
	}

	p.published = published

	eventName := events.EventParticipantPublished
	if !published {
		eventName = events.EventParticipantUnpublished
	}
	r.emit(events.StageUpdateEvent{
		EventName:     eventName,
		StageArn:      arn,
		SessionId:     st.activeSessionId,
		ParticipantId: participantId,
	})

	return nil
}

// Disconnect marks a participant disconnected. When the last connected
// participant leaves, the session ends.
func (r *Registry) Disconnect(arn, participantId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.stages[arn]
	if !ok {
		return ErrStageNotFound
	}
	p, ok := st.participants[participantId]
	if !ok {
		return fmt.Errorf("participant %q not found", participantId)
	}

	p.state = stage.ParticipantStateDisconnected
	r.emit(events.StageUpdateEvent{
		EventName:     events.EventParticipantDisconnected,
		StageArn:      arn,
		SessionId:     st.activeSessionId,
		ParticipantId: participantId,
	})

	for _, other := range st.participants {
		if other.state == stage.ParticipantStateConnected {
			return nil
		}
	}

	sessionId := st.activeSessionId
	st.activeSessionId = ""
	r.emit(events.StageUpdateEvent{
		EventName: events.EventSessionEnded,
		StageArn:  arn,
		SessionId: sessionId,
	})

	return nil
}

// SetTags replaces a stage's tags, e.g. retain=Y to exempt it from reaping.
func (r *Registry) SetTags(arn string, tags map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.stages[arn]
	if !ok {
		return ErrStageNotFound
	}

	st.tags = tags
	return nil
}
