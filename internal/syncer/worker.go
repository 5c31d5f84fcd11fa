package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/npezzotti/go-audiorooms/internal/database"
	"github.com/npezzotti/go-audiorooms/internal/queue"
	"github.com/npezzotti/go-audiorooms/internal/stage"
	"github.com/npezzotti/go-audiorooms/internal/stats"
)

const (
	defaultConcurrency = 10
	defaultBatchSize   = 10
	idlePollInterval   = time.Second
)

type Outcome string

const (
	// OutcomeUpdated means the subscriber set was replaced from a live
	// snapshot.
	OutcomeUpdated Outcome = "updated"
	// OutcomeHeartbeat means the stage was unreachable and only updated_at
	// advanced, queueing the room for another pass.
	OutcomeHeartbeat Outcome = "heartbeat"
	// OutcomeSkipped means the room went inactive or was deleted mid-flight
	// and the write no-oped.
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

type Result struct {
	RoomId  string
	Outcome Outcome
	Err     error
}

type Report struct {
	Results []Result
}

func (r Report) Count(outcome Outcome) int {
	var n int
	for _, res := range r.Results {
		if res.Outcome == outcome {
			n++
		}
	}
	return n
}

// Worker consumes room snapshots and reconciles each room independently
// with bounded concurrency. One room's failure never blocks another's.
type Worker struct {
	log         *log.Logger
	db          database.RoomRepository
	stage       stage.Client
	q           queue.Queue
	stats       stats.StatsProvider
	concurrency int
	batchSize   int
}

func NewWorker(logger *log.Logger, db database.RoomRepository, stageClient stage.Client, q queue.Queue, statsProvider stats.StatsProvider) *Worker {
	return &Worker{
		log:         logger,
		db:          db,
		stage:       stageClient,
		q:           q,
		stats:       statsProvider,
		concurrency: defaultConcurrency,
		batchSize:   defaultBatchSize,
	}
}

// Run polls the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		report, err := w.ProcessBatch(ctx)
		if err != nil {
			w.log.Printf("process batch: %v", err)
		}

		if err != nil || len(report.Results) == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(idlePollInterval):
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// ProcessBatch receives up to one batch of room snapshots and reconciles
// them. The returned report carries a per-room result; only queue-level
// failures surface as an error.
func (w *Worker) ProcessBatch(ctx context.Context) (Report, error) {
	entries, err := w.q.Receive(ctx, w.batchSize)
	if err != nil {
		return Report{}, err
	}

	results := make([]Result, len(entries))
	sem := make(chan struct{}, w.concurrency)
	var wg sync.WaitGroup

	for i, entry := range entries {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, entry queue.Entry) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = w.reconcile(ctx, entry)
		}(i, entry)
	}
	wg.Wait()

	for _, res := range results {
		switch res.Outcome {
		case OutcomeUpdated, OutcomeHeartbeat:
			w.stats.Incr(stats.ReconcilePasses)
		case OutcomeFailed:
			w.stats.Incr(stats.ReconcileFailures)
			w.log.Printf("reconcile room %q: %v", res.RoomId, res.Err)
		}
	}

	return Report{Results: results}, nil
}

func (w *Worker) reconcile(ctx context.Context, entry queue.Entry) Result {
	var room database.ActiveRoomRecord
	if err := json.Unmarshal(entry.Body, &room); err != nil {
		return Result{RoomId: entry.Id, Outcome: OutcomeFailed, Err: err}
	}

	participants, err := w.stage.ListParticipants(ctx, room.StageArn, room.ActiveSessionId, stage.ParticipantStateConnected)
	if err != nil {
		// The stage is unreachable, so leave membership alone but bump
		// updated_at. The changed heartbeat gives the next scheduler tick a
		// distinct message body, which is this pipeline's retry path.
		w.log.Printf("list participants for room %q: %v", room.Id, err)
		return w.touch(room)
	}

	subscribers := make([]string, 0, len(participants))
	for _, p := range participants {
		subscribers = append(subscribers, p.ParticipantId)
	}

	err = w.db.UpdateRoomRecord(room.Id, []database.Mutation{
		database.SetAttribute{Name: database.AttrSubscribers, Value: subscribers},
	}, true)
	if err != nil {
		if errors.Is(err, database.ErrPreconditionFailed) || errors.Is(err, database.ErrRecordNotFound) {
			return Result{RoomId: room.Id, Outcome: OutcomeSkipped}
		}
		return Result{RoomId: room.Id, Outcome: OutcomeFailed, Err: err}
	}

	return Result{RoomId: room.Id, Outcome: OutcomeUpdated}
}

func (w *Worker) touch(room database.ActiveRoomRecord) Result {
	err := w.db.Touch(room.Id, true)
	if err != nil {
		if errors.Is(err, database.ErrPreconditionFailed) || errors.Is(err, database.ErrRecordNotFound) {
			return Result{RoomId: room.Id, Outcome: OutcomeSkipped}
		}
		return Result{RoomId: room.Id, Outcome: OutcomeFailed, Err: err}
	}

	return Result{RoomId: room.Id, Outcome: OutcomeHeartbeat}
}
