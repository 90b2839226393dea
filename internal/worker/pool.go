package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lumenlearn/lumen-api/internal/config"
	"github.com/lumenlearn/lumen-api/internal/domain"
	"github.com/lumenlearn/lumen-api/internal/platform/metrics"
	"github.com/lumenlearn/lumen-api/internal/store"
)

// Pool claims queued jobs and runs them through the pipeline, at most
// Concurrency at a time. Each held job gets a heartbeat goroutine that
// keeps the lease fresh and watches for cancellation requests; a
// reclaim ticker returns crashed workers' jobs to the queue.
type Pool struct {
	id       string
	jobs     store.JobStore
	pipeline *Pipeline
	cfg      config.WorkerConfig
	logger   *slog.Logger

	stopOnce sync.Once
	stop     chan struct{}
	loops    sync.WaitGroup
	inflight sync.WaitGroup

	mu      sync.Mutex
	cancels map[uuid.UUID]context.CancelCauseFunc
}

// NewPool creates a Pool with a unique worker identity.
func NewPool(jobs store.JobStore, pipeline *Pipeline, cfg config.WorkerConfig, logger *slog.Logger) *Pool {
	hostname, _ := os.Hostname()
	id := fmt.Sprintf("%s-%s", hostname, uuid.New().String()[:8])
	return &Pool{
		id:       id,
		jobs:     jobs,
		pipeline: pipeline,
		cfg:      cfg,
		logger:   logger.With("component", "worker_pool", "worker_id", id),
		stop:     make(chan struct{}),
		cancels:  make(map[uuid.UUID]context.CancelCauseFunc),
	}
}

// ID returns the worker identity used for leases.
func (p *Pool) ID() string { return p.id }

// Start launches the claim and reclaim loops. It returns immediately;
// call Stop to drain.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("worker pool starting",
		"concurrency", p.cfg.Concurrency, "poll_interval", p.cfg.PollInterval)

	p.loops.Add(2)
	go p.claimLoop(ctx)
	go p.reclaimLoop(ctx)
}

// Stop halts claiming and waits up to DrainTimeout for in-flight jobs.
// Jobs still running after the drain window are cancelled; their leases
// lapse and another instance reclaims them.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.loops.Wait()

	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool drained")
	case <-time.After(p.cfg.DrainTimeout):
		p.logger.Warn("drain timeout reached, releasing remaining jobs")
		p.mu.Lock()
		for id, cancel := range p.cancels {
			cancel(errLeaseLost)
			p.logger.Warn("released job at shutdown", "job_id", id)
		}
		p.mu.Unlock()
		p.inflight.Wait()
	}
}

func (p *Pool) claimLoop(ctx context.Context) {
	defer p.loops.Done()

	slots := make(chan struct{}, p.cfg.Concurrency)
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		p.claimBatch(ctx, slots)
	}
}

// claimBatch claims jobs until the queue is empty or every slot is
// busy.
func (p *Pool) claimBatch(ctx context.Context, slots chan struct{}) {
	for {
		select {
		case <-p.stop:
			return
		default:
		}

		select {
		case slots <- struct{}{}:
		default:
			return // all slots busy
		}

		job, err := p.jobs.ClaimNext(ctx, p.id)
		if err != nil {
			<-slots
			if !errors.Is(err, store.ErrNoJobAvailable) {
				p.logger.Error("failed to claim job", "error", err)
			}
			return
		}

		p.inflight.Add(1)
		metrics.JobStarted()
		go func(job *domain.Job) {
			defer p.inflight.Done()
			defer metrics.JobFinished()
			defer func() { <-slots }()
			p.runJob(ctx, job)
		}(job)
	}
}

// runJob executes one claimed job with its heartbeat attached.
func (p *Pool) runJob(ctx context.Context, job *domain.Job) {
	// The job's context is detached from the claim loop's: shutdown stops
	// claiming but lets held jobs drain.
	jobCtx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	defer cancel(nil)

	p.mu.Lock()
	p.cancels[job.ID] = cancel
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.cancels, job.ID)
		p.mu.Unlock()
	}()

	hbDone := make(chan struct{})
	go p.heartbeatLoop(jobCtx, job.ID, cancel, hbDone)
	defer close(hbDone)

	p.logger.Info("job claimed",
		"job_id", job.ID, "lesson_id", job.LessonID, "slide_count", job.Options.SlideCount)
	p.pipeline.Run(jobCtx, job)
}

// heartbeatLoop keeps the lease fresh and converts an observed
// cancellation request or lease loss into context cancellation with the
// matching cause.
func (p *Pool) heartbeatLoop(ctx context.Context, jobID uuid.UUID, cancel context.CancelCauseFunc, done <-chan struct{}) {
	ticker := time.NewTicker(p.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		state, err := p.jobs.Heartbeat(ctx, jobID, p.id)
		if err != nil {
			if errors.Is(err, store.ErrJobNotFound) {
				cancel(errLeaseLost)
				return
			}
			p.logger.Warn("heartbeat failed", "job_id", jobID, "error", err)
			continue
		}

		switch state {
		case domain.JobStateActive:
			// Lease held, keep going.
		case domain.JobStateCancelling:
			p.logger.Info("cancellation observed", "job_id", jobID)
			cancel(domain.ErrCancelled)
			return
		default:
			// Reclaimed or terminated by someone else.
			cancel(errLeaseLost)
			return
		}
	}
}

func (p *Pool) reclaimLoop(ctx context.Context) {
	defer p.loops.Done()

	ticker := time.NewTicker(p.cfg.LeaseTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if _, err := p.jobs.ReclaimStale(ctx, p.cfg.LeaseTimeout); err != nil {
			p.logger.Error("failed to reclaim stale jobs", "error", err)
		}
	}
}
