package stagesim

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-audiorooms/internal/stage"
)

const tokenExp = 12 * time.Hour

// Server exposes the registry over the provider wire contract, plus a
// websocket event feed and a couple of /sim endpoints for driving the
// simulation by hand.
type Server struct {
	log        *log.Logger
	registry   *Registry
	signingKey []byte
	upgrader   websocket.Upgrader

	// every rateLimitEvery-th request is answered with a 429 to exercise
	// client retry behavior; zero disables the injection
	rateLimitEvery int64
	requests       int64

	mu    sync.Mutex
	feeds map[*websocket.Conn]struct{}
}

func NewServer(logger *log.Logger, registry *Registry, signingKey []byte, rateLimitEvery int64) *Server {
	return &Server{
		log:            logger,
		registry:       registry,
		signingKey:     signingKey,
		rateLimitEvery: rateLimitEvery,
		upgrader:       websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		feeds:          make(map[*websocket.Conn]struct{}),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/stages", s.rateLimited(s.createStage))
	mux.HandleFunc("GET /v1/stages", s.rateLimited(s.listStages))
	mux.HandleFunc("DELETE /v1/stages", s.rateLimited(s.deleteStage))
	mux.HandleFunc("POST /v1/participant-tokens", s.rateLimited(s.createParticipantToken))
	mux.HandleFunc("GET /v1/participants", s.rateLimited(s.listParticipants))
	mux.HandleFunc("GET /v1/events", s.serveEvents)
	mux.HandleFunc("POST /sim/publish", s.simPublish)
	mux.HandleFunc("POST /sim/disconnect", s.simDisconnect)
	mux.HandleFunc("POST /sim/tags", s.simTags)

	return mux
}

// Run broadcasts registry events to every connected feed until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.registry.Events():
			data, err := json.Marshal(ev)
			if err != nil {
				s.log.Printf("marshal event: %v", err)
				continue
			}

			s.mu.Lock()
			for conn := range s.feeds {
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					conn.Close()
					delete(s.feeds, conn)
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *Server) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.rateLimitEvery > 0 {
			n := atomic.AddInt64(&s.requests, 1)
			if n%s.rateLimitEvery == 0 {
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
		}

		next(w, r)
	}
}

func (s *Server) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *Server) createStage(w http.ResponseWriter, _ *http.Request) {
	st, err := s.registry.CreateStage()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.writeJson(w, http.StatusCreated, st)
}

func (s *Server) listStages(w http.ResponseWriter, _ *http.Request) {
	s.writeJson(w, http.StatusOK, map[string]interface{}{
		"stages": s.registry.ListStages(),
	})
}

func (s *Server) deleteStage(w http.ResponseWriter, r *http.Request) {
	arn := r.URL.Query().Get("arn")
	if err := s.registry.DeleteStage(arn); err != nil {
		if errors.Is(err, ErrStageNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type tokenRequest struct {
	StageArn string         `json:"stageArn"`
	UserData stage.UserData `json:"userData"`
}

func (s *Server) createParticipantToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	attributes := map[string]string{"name": req.UserData.Name}
	participantId, sessionId, err := s.registry.AddParticipant(req.StageArn, attributes)
	if err != nil {
		if errors.Is(err, ErrStageNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	token, err := s.mintToken(req.StageArn, sessionId, participantId)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.writeJson(w, http.StatusCreated, stage.ParticipantToken{
		Token:         token,
		ParticipantId: participantId,
		Attributes:    attributes,
	})
}

func (s *Server) mintToken(stageArn, sessionId, participantId string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"stage_arn":      stageArn,
		"session_id":     sessionId,
		"participant_id": participantId,
		"exp":            time.Now().Add(tokenExp).Unix(),
	})

	return token.SignedString(s.signingKey)
}

func (s *Server) listParticipants(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	participants, err := s.registry.ListParticipants(
		q.Get("stageArn"),
		q.Get("sessionId"),
		stage.ParticipantState(q.Get("state")),
	)
	if err != nil {
		if errors.Is(err, ErrStageNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]interface{}{
		"participants": participants,
	})
}

func (s *Server) serveEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Printf("upgrade event feed: %v", err)
		return
	}

	s.mu.Lock()
	s.feeds[conn] = struct{}{}
	s.mu.Unlock()
}

type simParticipantRequest struct {
	StageArn      string `json:"stageArn"`
	ParticipantId string `json:"participantId"`
	Published     bool   `json:"published"`
}

func (s *Server) simPublish(w http.ResponseWriter, r *http.Request) {
	var req simParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.registry.SetPublished(req.StageArn, req.ParticipantId, req.Published); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) simDisconnect(w http.ResponseWriter, r *http.Request) {
	var req simParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.registry.Disconnect(req.StageArn, req.ParticipantId); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type simTagsRequest struct {
	StageArn string            `json:"stageArn"`
	Tags     map[string]string `json:"tags"`
}

func (s *Server) simTags(w http.ResponseWriter, r *http.Request) {
	var req simTagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.registry.SetTags(req.StageArn, req.Tags); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
