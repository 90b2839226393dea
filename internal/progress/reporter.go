package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lumenlearn/lumen-api/internal/domain"
	"github.com/lumenlearn/lumen-api/internal/events"
)

// StageWeights maps each pipeline stage to its share of the job-level
// percent. Weights reflect relative cost and must sum to 100.
type StageWeights map[domain.Stage]int

// DefaultStageWeights reflects the observed cost split: visual
// generation dominates, narration is next, script and composition are
// cheap bookends.
func DefaultStageWeights() StageWeights {
	return StageWeights{
		domain.StageScript:      15,
		domain.StageVisuals:     40,
		domain.StageNarration:   30,
		domain.StageComposition: 15,
	}
}

// Reporter aggregates per-unit completions into a monotonic job-level
// percent and forwards one event per unit completion to the publisher.
// A late-arriving duplicate or out-of-order completion signal never
// lowers the reported percent.
type Reporter struct {
	mu        sync.Mutex
	weights   StageWeights
	publisher events.Publisher
	logger    *slog.Logger
	jobs      map[uuid.UUID]*jobProgress
}

type jobProgress struct {
	topics  []string
	totals  map[domain.Stage]int
	done    map[domain.Stage]map[int]struct{}
	percent int
	stage   domain.Stage
}

// NewReporter creates a Reporter with the default stage weights.
func NewReporter(publisher events.Publisher, logger *slog.Logger) *Reporter {
	return &Reporter{
		weights:   DefaultStageWeights(),
		publisher: publisher,
		logger:    logger.With("component", "progress_reporter"),
		jobs:      make(map[uuid.UUID]*jobProgress),
	}
}

// Track registers a job with its per-stage unit totals and the topics
// its events are published to. An initial snapshot event is published so
// subscribers see the job as soon as it starts.
func (r *Reporter) Track(ctx context.Context, jobID uuid.UUID, topics []string, unitTotals map[domain.Stage]int) {
	r.mu.Lock()
	jp := &jobProgress{
		topics: topics,
		totals: unitTotals,
		done:   make(map[domain.Stage]map[int]struct{}),
		stage:  domain.StageScript,
	}
	r.jobs[jobID] = jp
	ev := r.snapshotLocked(jobID, jp, events.TypeSnapshot)
	r.mu.Unlock()

	r.publisher.Publish(ctx, topics, ev)
}

// UnitCompleted records one finished unit and, if the aggregate percent
// advanced, publishes a progress event. Returns the current percent.
// Duplicate completions for the same unit are idempotent.
func (r *Reporter) UnitCompleted(ctx context.Context, jobID uuid.UUID, stage domain.Stage, unitIndex int) int {
	r.mu.Lock()
	jp, ok := r.jobs[jobID]
	if !ok {
		r.mu.Unlock()
		r.logger.Warn("unit completion for untracked job", "job_id", jobID, "stage", stage)
		return 0
	}

	units, ok := jp.done[stage]
	if !ok {
		units = make(map[int]struct{})
		jp.done[stage] = units
	}
	if _, dup := units[unitIndex]; dup {
		percent := jp.percent
		r.mu.Unlock()
		return percent
	}
	units[unitIndex] = struct{}{}

	computed := r.computeLocked(jp)
	advanced := computed > jp.percent
	if advanced {
		jp.percent = computed
	}
	jp.stage = r.currentStageLocked(jp)

	var ev events.Event
	var topics []string
	if advanced {
		ev = r.snapshotLocked(jobID, jp, events.TypeProgress)
		topics = jp.topics
	}
	percent := jp.percent
	r.mu.Unlock()

	if advanced {
		r.publisher.Publish(ctx, topics, ev)
	}
	return percent
}

// Snapshot returns the latest known progress for a job, for replay to
// late subscribers and for status queries.
func (r *Reporter) Snapshot(jobID uuid.UUID) (events.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	jp, ok := r.jobs[jobID]
	if !ok {
		return events.Event{}, false
	}
	return r.snapshotLocked(jobID, jp, events.TypeSnapshot), true
}

// Completed publishes the terminal completion event at 100 percent and
// stops tracking the job.
func (r *Reporter) Completed(ctx context.Context, jobID uuid.UUID, resultKey string) {
	r.mu.Lock()
	jp, ok := r.jobs[jobID]
	if !ok {
		r.mu.Unlock()
		return
	}
	topics := jp.topics
	delete(r.jobs, jobID)
	r.mu.Unlock()

	r.publisher.Publish(ctx, topics, events.Event{
		Type:      events.TypeCompleted,
		JobID:     jobID,
		Percent:   100,
		Stage:     string(domain.StageComposition),
		ResultKey: resultKey,
		At:        time.Now().UTC(),
	})
}

// Failed publishes the terminal failure event and stops tracking the
// job. Cancellations use errorKind "cancelled"; they share the failure
// event shape but are not counted as failures anywhere else.
func (r *Reporter) Failed(ctx context.Context, jobID uuid.UUID, errorKind, message string) {
	r.mu.Lock()
	jp, ok := r.jobs[jobID]
	if !ok {
		r.mu.Unlock()
		return
	}
	topics := jp.topics
	percent := jp.percent
	stage := jp.stage
	delete(r.jobs, jobID)
	r.mu.Unlock()

	r.publisher.Publish(ctx, topics, events.Event{
		Type:      events.TypeFailed,
		JobID:     jobID,
		Percent:   percent,
		Stage:     string(stage),
		ErrorKind: errorKind,
		Message:   message,
		At:        time.Now().UTC(),
	})
}

// Discard stops tracking a job without publishing anything. Used when a
// worker loses its lease: the job lives on elsewhere and the new holder
// owns its events.
func (r *Reporter) Discard(jobID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, jobID)
}

// computeLocked derives the aggregate percent from per-stage fractional
// completion weighted by stage cost.
func (r *Reporter) computeLocked(jp *jobProgress) int {
	percent := 0
	for _, stage := range domain.StageOrder {
		total := jp.totals[stage]
		if total <= 0 {
			continue
		}
		done := len(jp.done[stage])
		if done > total {
			done = total
		}
		percent += r.weights[stage] * done / total
	}
	if percent > 100 {
		percent = 100
	}
	return percent
}

// currentStageLocked returns the first stage with incomplete units.
func (r *Reporter) currentStageLocked(jp *jobProgress) domain.Stage {
	for _, stage := range domain.StageOrder {
		if len(jp.done[stage]) < jp.totals[stage] {
			return stage
		}
	}
	return domain.StageComposition
}

func (r *Reporter) snapshotLocked(jobID uuid.UUID, jp *jobProgress, t events.Type) events.Event {
	return events.Event{
		Type:    t,
		JobID:   jobID,
		Percent: jp.percent,
		Stage:   string(jp.stage),
		At:      time.Now().UTC(),
	}
}
