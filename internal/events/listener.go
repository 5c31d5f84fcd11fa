package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-audiorooms/internal/database"
	"github.com/npezzotti/go-audiorooms/internal/rooms"
	"github.com/npezzotti/go-audiorooms/internal/stats"
)

const (
	initialReconnectWait = time.Second
	maxReconnectWait     = 30 * time.Second
)

// Listener subscribes to the provider's websocket event feed and applies
// each event to the matching room record. Losing an event is tolerated;
// the reconciliation pipeline heals subscriber drift and publisher drift
// resolves on the next explicit publish/unpublish.
type Listener struct {
	log     *log.Logger
	db      database.RoomRepository
	stats   stats.StatsProvider
	feedURL string
}

func NewListener(logger *log.Logger, db database.RoomRepository, statsProvider stats.StatsProvider, feedURL string) *Listener {
	return &Listener{
		log:     logger,
		db:      db,
		stats:   statsProvider,
		feedURL: feedURL,
	}
}

// Run connects to the event feed and dispatches events until ctx is
// cancelled, reconnecting with capped exponential backoff.
func (l *Listener) Run(ctx context.Context) {
	wait := initialReconnectWait

	for {
		if err := l.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			l.log.Printf("event feed: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		wait *= 2
		if wait > maxReconnectWait {
			wait = maxReconnectWait
		}
	}
}

func (l *Listener) consume(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, l.feedURL, nil)
	if err != nil {
		return fmt.Errorf("dial event feed: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	l.log.Printf("connected to event feed at %s", l.feedURL)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read event: %w", err)
		}

		var ev StageUpdateEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			l.log.Printf("decode event: %v", err)
			continue
		}

		if err := l.HandleEvent(ev); err != nil {
			l.log.Printf("handle %q event for stage %q: %v", ev.EventName, ev.StageArn, err)
		}
	}
}

// HandleEvent applies a single event to its room record. A missing or
// concurrently deleted record is not an error: the update is simply
// dropped.
func (l *Listener) HandleEvent(ev StageUpdateEvent) error {
	roomId, err := rooms.RoomIdFromStageArn(ev.StageArn)
	if err != nil {
		return err
	}

	l.stats.Incr(stats.StageEvents)

	if muts := mutationsFor(ev); muts != nil {
		err := l.db.UpdateRoomRecord(roomId, muts, false)
		if errors.Is(err, database.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	params := database.UpdateRoomParticipantParams{
		RoomId:        roomId,
		ParticipantId: ev.ParticipantId,
	}

	switch ev.EventName {
	case EventParticipantPublished:
		params.Publish = boolPtr(true)
	case EventParticipantUnpublished:
		params.Publish = boolPtr(false)
	case EventParticipantConnected:
		params.Connected = boolPtr(true)
	case EventParticipantDisconnected:
		params.Connected = boolPtr(false)
	default:
		// unknown event types are ignored, not failed
		return nil
	}

	_, err = l.db.UpdateRoomParticipant(params)
	if errors.Is(err, database.ErrRecordNotFound) || errors.Is(err, database.ErrPreconditionFailed) {
		return nil
	}

	return err
}
