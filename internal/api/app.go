package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-audiorooms/internal/config"
	"github.com/npezzotti/go-audiorooms/internal/database"
	"github.com/npezzotti/go-audiorooms/internal/rooms"
)

type RoomsApp struct {
	log        *log.Logger
	db         database.RoomRepository
	rooms      *rooms.RoomService
	mux        *http.Server
	signingKey []byte
}

func NewRoomsApp(mux *http.ServeMux, logger *log.Logger, roomService *rooms.RoomService, db database.RoomRepository, cfg *config.Config) *RoomsApp {
	s := &RoomsApp{
		log:        logger,
		db:         db,
		rooms:      roomService,
		signingKey: cfg.SigningKey,
	}

	mux.HandleFunc("POST /api/rooms/join", s.joinRoom)
	mux.Handle("GET /api/rooms/{id}", s.authMiddleware(s.getRoom))
	mux.HandleFunc("GET /healthz", s.healthCheck)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *RoomsApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *RoomsApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
