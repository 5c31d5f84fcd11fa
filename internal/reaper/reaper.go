// Package reaper deletes abandoned rooms. A room has no explicit close
// operation; closure is inferred from staleness, and both halves of the
// stage/record pair are removed together.
package reaper

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/npezzotti/go-audiorooms/internal/database"
	"github.com/npezzotti/go-audiorooms/internal/stage"
	"github.com/npezzotti/go-audiorooms/internal/stats"
)

// DefaultStaleAfter is how long a room's updated_at may lag before the room
// counts as stale.
const DefaultStaleAfter = 24 * time.Hour

type Outcome string

const (
	OutcomeDeleted Outcome = "deleted"
	OutcomeKept    Outcome = "kept"
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

type Reaper struct {
	log        *log.Logger
	db         database.RoomRepository
	stage      stage.Client
	stats      stats.StatsProvider
	staleAfter time.Duration
	now        func() time.Time
}

func NewReaper(logger *log.Logger, db database.RoomRepository, stageClient stage.Client, statsProvider stats.StatsProvider, staleAfter time.Duration) *Reaper {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}

	return &Reaper{
		log:        logger,
		db:         db,
		stage:      stageClient,
		stats:      statsProvider,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Run cross-references room records against live stage summaries and
// deletes the stage/record pair for every room that is inactive, stale and
// not explicitly retained. Each room's deletion is isolated; a failure is
// recorded in the report and the sweep continues.
func (r *Reaper) Run(ctx context.Context) (Report, error) {
	var (
		records    []database.RoomRecord
		summaries  []stage.StageSummary
		recordsErr error
		stagesErr  error
		wg         sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		records, recordsErr = r.db.ListRoomRecords(
			[]string{database.AttrId, database.AttrStageArn, database.AttrUpdatedAt},
			nil,
		)
	}()
	go func() {
		defer wg.Done()
		summaries, stagesErr = r.stage.ListStages(ctx)
	}()
	wg.Wait()

	if recordsErr != nil {
		return Report{}, fmt.Errorf("list room records: %w", recordsErr)
	}
	if stagesErr != nil {
		return Report{}, fmt.Errorf("list stages: %w", stagesErr)
	}

	summaryByArn := make(map[string]stage.StageSummary, len(summaries))
	for _, summary := range summaries {
		summaryByArn[summary.Arn] = summary
	}

	results := make([]Result, 0, len(records))
	for _, rec := range records {
		results = append(results, r.reapRoom(ctx, rec, summaryByArn))
	}

	report := Report{Results: results}
	if deleted := report.Count(OutcomeDeleted); deleted > 0 {
		r.log.Printf("reaped %d stale rooms", deleted)
	}

	return report, nil
}

func (r *Reaper) reapRoom(ctx context.Context, rec database.RoomRecord, summaryByArn map[string]stage.StageSummary) Result {
	summary, known := summaryByArn[rec.StageArn]

	isActive := known && summary.ActiveSessionId != ""
	isStale := r.now().Sub(rec.UpdatedAt) > r.staleAfter
	retain := known && summary.Retained()

	if isActive || !isStale || retain {
		return Result{RoomId: rec.Id, Outcome: OutcomeKept}
	}

	// Best-effort parallel delete of the pair. Losing one half is fine:
	// an orphaned stage or record is picked up again on the next sweep.
	var (
		stageErr  error
		recordErr error
		wg        sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		stageErr = r.stage.DeleteStage(ctx, rec.StageArn)
	}()
	go func() {
		defer wg.Done()
		recordErr = r.db.DeleteRoomRecord(rec.Id)
	}()
	wg.Wait()

	if stageErr != nil || recordErr != nil {
		err := stageErr
		if err == nil {
			err = recordErr
		}
		r.log.Printf("reap room %q: %v", rec.Id, err)
		return Result{RoomId: rec.Id, Outcome: OutcomeFailed, Err: err}
	}

	r.stats.Incr(stats.RoomsReaped)

	return Result{RoomId: rec.Id, Outcome: OutcomeDeleted}
}
