package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lumenlearn/lumen-api/internal/config"
	"github.com/lumenlearn/lumen-api/internal/domain"
	"github.com/lumenlearn/lumen-api/internal/events"
	"github.com/lumenlearn/lumen-api/internal/generation"
	"github.com/lumenlearn/lumen-api/internal/platform/metrics"
	"github.com/lumenlearn/lumen-api/internal/progress"
	"github.com/lumenlearn/lumen-api/internal/store"
	"github.com/sethvargo/go-retry"
)

// errLeaseLost marks a job another worker now owns. The pipeline
// abandons it without touching the record or publishing events.
var errLeaseLost = errors.New("job lease lost")

// Pipeline runs one generation job through its four stages: script,
// per-slide visuals, per-slide narration, and composition. Stages run
// strictly in order; units within the visual and narration stages fan
// out up to the configured sub-concurrency. Cancellation is observed at
// stage boundaries and between unit dispatches.
type Pipeline struct {
	caps      generation.Capabilities
	jobs      store.JobStore
	cache     store.ResultCache
	reporter  *progress.Reporter
	budget    Budget
	cfg       config.WorkerConfig
	resultTTL time.Duration
	logger    *slog.Logger
}

// NewPipeline creates a Pipeline with the given capabilities and
// supporting infrastructure.
func NewPipeline(
	caps generation.Capabilities,
	jobs store.JobStore,
	cache store.ResultCache,
	reporter *progress.Reporter,
	budget Budget,
	cfg config.WorkerConfig,
	resultTTL time.Duration,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		caps:      caps,
		jobs:      jobs,
		cache:     cache,
		reporter:  reporter,
		budget:    budget,
		cfg:       cfg,
		resultTTL: resultTTL,
		logger:    logger.With("component", "pipeline"),
	}
}

// Run executes the job to a terminal state. ctx carries the lease: the
// pool cancels it with domain.ErrCancelled when cancellation is
// requested, or errLeaseLost when another worker takes over.
func (p *Pipeline) Run(ctx context.Context, job *domain.Job) {
	topics := []string{events.JobTopic(job.ID), events.ContentTopic(job.ContentKey)}
	p.reporter.Track(ctx, job.ID, topics, map[domain.Stage]int{
		domain.StageScript:      1,
		domain.StageVisuals:     job.Options.SlideCount,
		domain.StageNarration:   job.Options.SlideCount,
		domain.StageComposition: 1,
	})

	runCtx, cancel := context.WithTimeoutCause(ctx, p.cfg.JobTimeout, domain.ErrJobTimeout)
	defer cancel()

	bundle, err := p.execute(runCtx, job)

	// Terminal writes use a detached context so a cancelled or timed-out
	// job still gets its record and events finalized.
	finalCtx, finalCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer finalCancel()

	if err != nil {
		p.finalizeError(finalCtx, job, err)
		return
	}
	p.finalizeSuccess(finalCtx, job, bundle)
}

// execute runs the stages under a recover guard: a panic in stage or
// adapter code fails the one job instead of killing the worker
// goroutine.
func (p *Pipeline) execute(ctx context.Context, job *domain.Job) (bundle *domain.ArtifactBundle, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.ErrorContext(ctx, "pipeline panic", "job_id", job.ID, "panic", r)
			bundle = nil
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()

	script, err := p.runScriptStage(ctx, job)
	if err != nil {
		return nil, err
	}
	if err := stageCheckpoint(ctx); err != nil {
		return nil, err
	}

	visuals, err := p.runVisualStage(ctx, job, script)
	if err != nil {
		return nil, err
	}
	if err := stageCheckpoint(ctx); err != nil {
		return nil, err
	}

	narration, err := p.runNarrationStage(ctx, job, script)
	if err != nil {
		return nil, err
	}
	if err := stageCheckpoint(ctx); err != nil {
		return nil, err
	}

	composition, err := p.runCompositionStage(ctx, job, script, visuals, narration)
	if err != nil {
		return nil, err
	}

	return &domain.ArtifactBundle{
		JobID:       job.ID,
		LessonID:    job.LessonID,
		ContentKey:  job.ContentKey,
		Script:      *script,
		Visuals:     visuals,
		Narration:   narration,
		Composition: *composition,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func (p *Pipeline) runScriptStage(ctx context.Context, job *domain.Job) (*domain.LessonScript, error) {
	defer p.observeStage(domain.StageScript)()

	var script *domain.LessonScript
	err := p.runUnit(ctx, job, domain.StageScript, func(ctx context.Context) error {
		out, err := p.caps.Script.GenerateScript(ctx, generation.ScriptRequest{
			LessonID:   job.LessonID,
			SlideCount: job.Options.SlideCount,
			Style:      job.Options.Style,
			Language:   job.Options.Language,
		})
		if err != nil {
			return err
		}
		script = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.recordProgress(ctx, job, domain.StageScript, 0)
	return script, nil
}

func (p *Pipeline) runVisualStage(ctx context.Context, job *domain.Job, script *domain.LessonScript) ([]domain.SlideVisual, error) {
	defer p.observeStage(domain.StageVisuals)()

	results := make([]domain.SlideVisual, len(script.Slides))
	err := p.fanOut(ctx, job, domain.StageVisuals, len(script.Slides), func(ctx context.Context, i int) error {
		out, err := p.caps.Visuals.GenerateVisual(ctx, generation.VisualRequest{
			LessonID:   job.LessonID,
			SlideIndex: i,
			Script:     script.Slides[i],
			Style:      job.Options.Style,
		})
		if err != nil {
			return err
		}
		results[i] = *out
		p.recordProgress(ctx, job, domain.StageVisuals, i)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Pipeline) runNarrationStage(ctx context.Context, job *domain.Job, script *domain.LessonScript) ([]domain.NarrationSegment, error) {
	defer p.observeStage(domain.StageNarration)()

	results := make([]domain.NarrationSegment, len(script.Slides))
	err := p.fanOut(ctx, job, domain.StageNarration, len(script.Slides), func(ctx context.Context, i int) error {
		out, err := p.caps.Narration.GenerateNarration(ctx, generation.NarrationRequest{
			LessonID:   job.LessonID,
			SlideIndex: i,
			Script:     script.Slides[i],
			Voice:      job.Options.Voice,
			Language:   job.Options.Language,
		})
		if err != nil {
			return err
		}
		results[i] = *out
		p.recordProgress(ctx, job, domain.StageNarration, i)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Pipeline) runCompositionStage(
	ctx context.Context,
	job *domain.Job,
	script *domain.LessonScript,
	visuals []domain.SlideVisual,
	narration []domain.NarrationSegment,
) (*domain.CompositionArtifact, error) {
	defer p.observeStage(domain.StageComposition)()

	var artifact *domain.CompositionArtifact
	err := p.runUnit(ctx, job, domain.StageComposition, func(ctx context.Context) error {
		out, err := p.caps.Composer.Compose(ctx, generation.ComposeRequest{
			LessonID:  job.LessonID,
			Script:    *script,
			Visuals:   visuals,
			Narration: narration,
		})
		if err != nil {
			return err
		}
		artifact = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.recordProgress(ctx, job, domain.StageComposition, 0)
	return artifact, nil
}

// fanOut dispatches n units with at most SubConcurrency in flight. The
// first failure cancels the remaining units; completed results keep
// their slide order because each unit writes its own index.
func (p *Pipeline) fanOut(ctx context.Context, job *domain.Job, stage domain.Stage, n int, unit func(ctx context.Context, i int) error) error {
	stageCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	sem := make(chan struct{}, p.cfg.SubConcurrency)
	var wg sync.WaitGroup

	var once sync.Once
	var firstErr error

	for i := 0; i < n; i++ {
		select {
		case sem <- struct{}{}:
		case <-stageCtx.Done():
		}
		if stageCtx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := p.runUnit(stageCtx, job, stage, func(ctx context.Context) error {
				return unit(ctx, i)
			}); err != nil {
				once.Do(func() {
					firstErr = err
					cancel(err)
				})
			}
		}(i)
	}

	wg.Wait()

	// The parent context ending mid-stage outranks any unit failure: the
	// cause says whether this was cancellation or the job clock.
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	return firstErr
}

// runUnit executes one generation call under the shared rate budget and
// the per-unit timeout, retrying transient failures with exponential
// backoff up to MaxAttempts total attempts. A unit that exceeds its
// timeout counts as a transient failure.
func (p *Pipeline) runUnit(ctx context.Context, job *domain.Job, stage domain.Stage, call func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(uint64(p.cfg.MaxAttempts-1), retry.NewExponential(p.cfg.RetryBaseDelay))

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			metrics.UnitRetried()
			if err := p.jobs.RecordAttempt(ctx, job.ID, stage, attempt); err != nil {
				p.logger.WarnContext(ctx, "failed to record attempt",
					"job_id", job.ID, "stage", stage, "error", err)
			}
		}

		if err := p.budget.Acquire(ctx); err != nil {
			if ctx.Err() != nil {
				return context.Cause(ctx)
			}
			// The budget backend failing is an infrastructure fault, not a
			// unit failure: retry rather than skip the generation call.
			return retry.RetryableError(generation.NewTransientError("budget.acquire", err))
		}
		defer p.budget.Release()

		unitCtx, cancel := context.WithTimeout(ctx, p.cfg.UnitTimeout)
		defer cancel()

		err := call(unitCtx)
		if err == nil {
			return nil
		}

		// A hung call that ran out the unit clock is retriable; the job
		// clock running out is not.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return retry.RetryableError(generation.NewTransientError("unit", err))
		}
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		if generation.IsTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})

	// Backoff waits end with the bare context error; surface the cause so
	// the caller can tell cancellation from the job clock.
	if err != nil && ctx.Err() != nil {
		return context.Cause(ctx)
	}
	return err
}

// recordProgress feeds the reporter and persists the aggregate percent.
func (p *Pipeline) recordProgress(ctx context.Context, job *domain.Job, stage domain.Stage, unitIndex int) {
	percent := p.reporter.UnitCompleted(ctx, job.ID, stage, unitIndex)
	if err := p.jobs.UpdateProgress(ctx, job.ID, percent, stage); err != nil {
		p.logger.WarnContext(ctx, "failed to persist progress",
			"job_id", job.ID, "stage", stage, "error", err)
	}
}

func (p *Pipeline) finalizeSuccess(ctx context.Context, job *domain.Job, bundle *domain.ArtifactBundle) {
	key := store.ResultKey{ContentKey: job.ContentKey, UserID: job.UserID}

	if err := p.cache.Put(ctx, key, bundle, p.resultTTL); err != nil {
		p.finalizeError(ctx, job, fmt.Errorf("failed to store result bundle: %w", err))
		return
	}

	if err := p.jobs.Complete(ctx, job.ID, key.String()); err != nil {
		// A cancellation that raced the finish line wins: the bundle is
		// cached, but the job resolves cancelled.
		if errors.Is(err, store.ErrInvalidTransition) {
			p.finalizeError(ctx, job, domain.ErrCancelled)
			return
		}
		p.logger.ErrorContext(ctx, "failed to record completion", "job_id", job.ID, "error", err)
		p.reporter.Discard(job.ID)
		return
	}

	p.reporter.Completed(ctx, job.ID, key.String())
	metrics.JobProcessed("completed")
	p.logger.InfoContext(ctx, "job completed", "job_id", job.ID, "result_key", key.String())
}

func (p *Pipeline) finalizeError(ctx context.Context, job *domain.Job, err error) {
	switch {
	case errors.Is(err, errLeaseLost):
		// Another worker owns the job now; its record and events are
		// theirs to write.
		p.reporter.Discard(job.ID)
		p.logger.WarnContext(ctx, "abandoning job after lease loss", "job_id", job.ID)

	case errors.Is(err, domain.ErrCancelled):
		if terr := p.jobs.Transition(ctx, job.ID, domain.JobStateCancelling, domain.JobStateCancelled); terr != nil {
			p.logger.WarnContext(ctx, "failed to resolve cancellation", "job_id", job.ID, "error", terr)
		}
		p.reporter.Failed(ctx, job.ID, "cancelled", domain.ErrorKindMessage("cancelled"))
		metrics.JobProcessed("cancelled")
		p.logger.InfoContext(ctx, "job cancelled", "job_id", job.ID)

	default:
		kind := errorKind(err)
		if ferr := p.jobs.Fail(ctx, job.ID, kind, err.Error()); ferr != nil {
			p.logger.ErrorContext(ctx, "failed to record job failure", "job_id", job.ID, "error", ferr)
		}
		p.reporter.Failed(ctx, job.ID, kind, domain.ErrorKindMessage(kind))
		metrics.JobProcessed("failed")
		p.logger.ErrorContext(ctx, "job failed", "job_id", job.ID, "error_kind", kind, "error", err)
	}
}

func (p *Pipeline) observeStage(stage domain.Stage) func() {
	start := time.Now()
	return func() {
		metrics.ObserveStage(string(stage), time.Since(start))
	}
}

// stageCheckpoint reports the context's cause when the job should stop
// between stages.
func stageCheckpoint(ctx context.Context) error {
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	return nil
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrJobTimeout):
		return "timeout"
	case generation.IsTransient(err):
		return "transient_exhausted"
	default:
		var svcErr *generation.ServiceError
		if errors.As(err, &svcErr) {
			return string(svcErr.Kind)
		}
		return "internal"
	}
}
