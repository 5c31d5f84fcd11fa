// Package syncer keeps persisted subscriber membership converging toward
// the live stage. A scheduler tick snapshots every active room into the
// dedup queue; a worker re-derives each room's subscriber set from the
// stage and writes it back.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/npezzotti/go-audiorooms/internal/database"
	"github.com/npezzotti/go-audiorooms/internal/queue"
)

const activeRoomsGroup = "active-rooms"

// Scheduler enqueues one message per active room per tick. The message body
// includes updatedAt, so a room whose state has not changed since the last
// tick produces an identical body and is collapsed by the queue's dedup
// window. Work is therefore bounded by rooms that changed, not rooms times
// ticks.
type Scheduler struct {
	log *log.Logger
	db  database.RoomRepository
	q   queue.Queue
}

func NewScheduler(logger *log.Logger, db database.RoomRepository, q queue.Queue) *Scheduler {
	return &Scheduler{log: logger, db: db, q: q}
}

func (s *Scheduler) Tick(ctx context.Context) error {
	activeRooms, err := s.db.ListActiveRoomRecords()
	if err != nil {
		return fmt.Errorf("list active rooms: %w", err)
	}

	if len(activeRooms) == 0 {
		return nil
	}

	entries := make([]queue.Entry, 0, len(activeRooms))
	for _, room := range activeRooms {
		body, err := json.Marshal(room)
		if err != nil {
			return fmt.Errorf("marshal active room %q: %w", room.Id, err)
		}

		entries = append(entries, queue.Entry{
			Id:      room.Id,
			GroupId: activeRoomsGroup,
			Body:    body,
		})
	}

	if err := s.q.Enqueue(ctx, entries); err != nil {
		return fmt.Errorf("enqueue active rooms: %w", err)
	}

	return nil
}
