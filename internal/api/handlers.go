package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/npezzotti/go-audiorooms/internal/rooms"
)

type JoinRoomRequest struct {
	Username string `json:"username"`
	RoomId   string `json:"roomId,omitempty"`
}

func (s *RoomsApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *RoomsApp) joinRoom(w http.ResponseWriter, r *http.Request) {
	var req JoinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.Username == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	result, err := s.rooms.JoinRoom(r.Context(), req.Username, req.RoomId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, rooms.ErrRoomNotFound) {
			errResp = NewRoomNotFoundError(req.RoomId)
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, result)
}

func (s *RoomsApp) getRoom(w http.ResponseWriter, r *http.Request) {
	roomId := r.PathValue("id")
	if roomId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	view, err := s.rooms.GetRoom(roomId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, rooms.ErrRoomNotFound) {
			errResp = NewRoomNotFoundError(roomId)
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, view)
}

func (s *RoomsApp) healthCheck(w http.ResponseWriter, _ *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Printf("health check: %v", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
