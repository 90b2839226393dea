package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lumenlearn/lumen-api/internal/domain"
	"github.com/lumenlearn/lumen-api/internal/generation"
	"github.com/lumenlearn/lumen-api/internal/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queuedJob(t *testing.T, fs *fakeJobStore, slideCount int) *domain.Job {
	t.Helper()
	job, err := domain.NewJob(uuid.New(), uuid.New(), domain.GenerationOptions{
		SlideCount: slideCount, Voice: "nova", Style: "standard", Language: "en",
	})
	require.NoError(t, err)
	fs.add(job)
	return job
}

func waitForState(t *testing.T, fs *fakeJobStore, id uuid.UUID, want domain.JobState) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if fs.get(id).State == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s (now %s)", id, want, fs.get(id).State)
}

func newTestPool(fs *fakeJobStore, caps *fakeCaps) *Pool {
	pub := &capturingPublisher{}
	reporter := progress.NewReporter(pub, testLogger())
	cfg := testWorkerConfig()
	pipeline := NewPipeline(caps.capabilities(), fs, newFakeCache(), reporter, NewLocalBudget(8), cfg, time.Hour, testLogger())
	return NewPool(fs, pipeline, cfg, testLogger())
}

func TestPoolProcessesQueuedJobs(t *testing.T) {
	fs := newFakeJobStore()
	pool := newTestPool(fs, &fakeCaps{})

	jobA := queuedJob(t, fs, 2)
	jobB := queuedJob(t, fs, 3)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Stop()

	waitForState(t, fs, jobA.ID, domain.JobStateCompleted)
	waitForState(t, fs, jobB.ID, domain.JobStateCompleted)

	a := fs.get(jobA.ID)
	assert.Equal(t, 100, a.Percent)
	assert.NotEmpty(t, a.WorkerID)
}

func TestPoolRunsAtMostConcurrencyJobs(t *testing.T) {
	fs := newFakeJobStore()

	// Count whole pipelines in flight: up on script entry, down when
	// composition runs. The backlog is three times the slot count.
	var inFlight, peak atomic.Int32
	caps := &fakeCaps{
		script: func(context.Context, generation.ScriptRequest) (*domain.LessonScript, error) {
			n := inFlight.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(15 * time.Millisecond)
			return &domain.LessonScript{Slides: []domain.SlideScript{{Index: 0, Body: "body"}}}, nil
		},
		compose: func(context.Context, generation.ComposeRequest) (*domain.CompositionArtifact, error) {
			inFlight.Add(-1)
			return &domain.CompositionArtifact{}, nil
		},
	}
	pool := newTestPool(fs, caps)

	jobs := make([]*domain.Job, 6)
	for i := range jobs {
		jobs[i] = queuedJob(t, fs, 1)
	}

	pool.Start(context.Background())
	defer pool.Stop()

	for _, job := range jobs {
		waitForState(t, fs, job.ID, domain.JobStateCompleted)
	}

	assert.LessOrEqual(t, peak.Load(), int32(2), "job concurrency cap exceeded")
	assert.Positive(t, peak.Load())
}

func TestPoolObservesCancellationThroughHeartbeat(t *testing.T) {
	fs := newFakeJobStore()

	visualStarted := make(chan struct{}, 1)
	release := make(chan struct{})
	caps := &fakeCaps{
		visual: func(ctx context.Context, req generation.VisualRequest) (*domain.SlideVisual, error) {
			select {
			case visualStarted <- struct{}{}:
			default:
			}
			// Hold the stage open until the test has cancelled the job.
			select {
			case <-release:
			case <-ctx.Done():
			}
			return &domain.SlideVisual{Index: req.SlideIndex}, nil
		},
	}
	pool := newTestPool(fs, caps)

	job := queuedJob(t, fs, 1)

	pool.Start(context.Background())
	defer pool.Stop()

	select {
	case <-visualStarted:
	case <-time.After(3 * time.Second):
		t.Fatal("visual stage never started")
	}

	// Request cancellation the way the API does: CAS to cancelling. The
	// pool's heartbeat observes it and winds the job down.
	require.NoError(t, fs.Transition(context.Background(), job.ID, domain.JobStateActive, domain.JobStateCancelling))
	close(release)

	waitForState(t, fs, job.ID, domain.JobStateCancelled)
}

func TestPoolStopDrainsInFlightJobs(t *testing.T) {
	fs := newFakeJobStore()
	pool := newTestPool(fs, &fakeCaps{})

	job := queuedJob(t, fs, 2)

	pool.Start(context.Background())
	waitForState(t, fs, job.ID, domain.JobStateCompleted)
	pool.Stop()

	assert.Equal(t, domain.JobStateCompleted, fs.get(job.ID).State)
}
