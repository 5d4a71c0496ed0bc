// Package scheduler runs validation jobs: asynchronous enrichment of
// catalog models through the provider chain, paced to the upstream
// tier budget and guarded by the rate governor.
//
// Jobs move pending -> processing -> completed/failed/cancelled.
// Terminal jobs stay listed until an explicit ClearFinished so callers
// can always inspect outcomes.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/corralhq/corral/internal/adapters/provider"
	"github.com/corralhq/corral/internal/domain/model"
	"github.com/corralhq/corral/internal/ratelimit"
	"github.com/corralhq/corral/pkg/logger"
	"github.com/corralhq/corral/pkg/metrics"
)

// Default scheduler configuration constants.
const (
	defaultQueueSize   = 1000
	defaultMaxAttempts = 3
	defaultBackoffBase = time.Second
	maxBackoff         = 30 * time.Second
	shutdownTimeout    = 30 * time.Second
)

// Enricher produces a partial model for a job. The provider chain
// satisfies this.
type Enricher interface {
	Enrich(ctx context.Context, m model.Model, sources []model.ValidationSource) (model.Model, model.ValidationSource, error)
}

// ModelLookup resolves a job's model ID to the current canonical record.
type ModelLookup func(ctx context.Context, modelID string) (model.Model, error)

// ResultSink receives a successful enrichment. The application folds it
// into the store through the merge engine.
type ResultSink func(ctx context.Context, modelID string, partial model.Model) error

// ProgressFunc observes job status changes.
type ProgressFunc func(job model.ValidationJob)

// Scheduler owns the validation job lifecycle.
type Scheduler struct {
	enricher Enricher
	lookup   ModelLookup
	sink     ResultSink

	tier            provider.Tier
	queueSize       int
	maxAttempts     int
	backoffBase     time.Duration
	governor        *ratelimit.Governor
	governorProfile ratelimit.Profile
	progress        ProgressFunc

	mu      sync.Mutex
	jobs    map[string]*model.ValidationJob
	order   []string
	pending chan string
	gate    chan struct{} // closed while running; open (blocking) while paused
	paused  bool
	closed  bool

	limiter *rate.Limiter
	wg      sync.WaitGroup
	cancel  context.CancelFunc

	logger logger.Logger
}

// New creates a scheduler. Start must be called before jobs dispatch.
func New(enricher Enricher, lookup ModelLookup, sink ResultSink, opts ...Option) *Scheduler {
	s := &Scheduler{
		enricher:    enricher,
		lookup:      lookup,
		sink:        sink,
		tier:        provider.TierByName("free"),
		queueSize:   defaultQueueSize,
		maxAttempts: defaultMaxAttempts,
		backoffBase: defaultBackoffBase,
		jobs:        make(map[string]*model.ValidationJob),
		logger:      logger.Get().Named("scheduler"),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.pending = make(chan string, s.queueSize)
	s.gate = make(chan struct{})
	close(s.gate) // running by default

	interval := s.tier.MinInterval()
	if interval > 0 {
		s.limiter = rate.NewLimiter(rate.Every(interval), 1)
	} else {
		s.limiter = rate.NewLimiter(rate.Inf, 1)
	}

	return s
}

// Start launches the worker pool, one worker per in-flight slot.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	workers := s.tier.MaxInFlight
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.runWorker(ctx, i)
	}

	s.logger.Info(ctx, "scheduler started",
		logger.String("tier", s.tier.Name),
		logger.Int("workers", workers),
	)
}

// Shutdown stops dispatching and waits for in-flight jobs.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	select {
	case <-done:
		return nil
	case <-shutdownCtx.Done():
		return fmt.Errorf("scheduler shutdown timed out: %w", shutdownCtx.Err())
	}
}

// Submit queues a validation job for modelID. Sources pick enrichment
// strategies in priority order; empty means all of them.
func (s *Scheduler) Submit(modelID, modelName string, sources []model.ValidationSource) (model.ValidationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return model.ValidationJob{}, ErrSchedulerClosed
	}

	now := time.Now()
	job := &model.ValidationJob{
		ID:          uuid.NewString(),
		ModelID:     modelID,
		ModelName:   modelName,
		Sources:     append([]model.ValidationSource(nil), sources...),
		Status:      model.JobPending,
		MaxAttempts: s.maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	select {
	case s.pending <- job.ID:
	default:
		return model.ValidationJob{}, ErrQueueFull
	}

	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)

	metrics.RecordJobSubmitted()
	metrics.UpdateJobsPending(len(s.pending))
	s.notifyLocked(job)

	return *job, nil
}

// Job returns a snapshot of one job.
func (s *Scheduler) Job(id string) (model.ValidationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return model.ValidationJob{}, ErrJobNotFound
	}
	return *job, nil
}

// Jobs returns snapshots of all known jobs in submission order.
func (s *Scheduler) Jobs() []model.ValidationJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.ValidationJob, 0, len(s.order))
	for _, id := range s.order {
		if job, ok := s.jobs[id]; ok {
			out = append(out, *job)
		}
	}
	return out
}

// Pause holds back dispatch of pending jobs. Jobs already processing
// run to completion.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return
	}
	s.paused = true
	s.gate = make(chan struct{})
}

// Resume reopens dispatch.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.paused {
		return
	}
	s.paused = false
	close(s.gate)
}

// Paused reports whether dispatch is held.
func (s *Scheduler) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// CancelAll marks every non-terminal job cancelled. Queued IDs stay in
// the channel; workers skip them once they see the terminal status.
func (s *Scheduler) CancelAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cancelled := 0
	for _, job := range s.jobs {
		if job.Status.Terminal() {
			continue
		}
		job.Status = model.JobCancelled
		job.UpdatedAt = time.Now()
		cancelled++
		metrics.RecordJobCancelled()
		s.notifyLocked(job)
	}
	return cancelled
}

// ClearFinished drops terminal jobs from the listing.
func (s *Scheduler) ClearFinished() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	kept := s.order[:0]
	for _, id := range s.order {
		job, ok := s.jobs[id]
		if !ok {
			continue
		}
		if job.Status.Terminal() {
			delete(s.jobs, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return removed
}

// runWorker is the dispatch loop for one in-flight slot.
func (s *Scheduler) runWorker(ctx context.Context, id int) {
	defer s.wg.Done()

	log := s.logger.Named(fmt.Sprintf("worker-%d", id))

	for {
		select {
		case <-ctx.Done():
			return
		case jobID, ok := <-s.pending:
			if !ok {
				return
			}
			if !s.waitForGate(ctx) {
				return
			}
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
			if !s.waitForGovernor(ctx) {
				return
			}
			s.process(ctx, log, jobID)
		}
	}
}

// waitForGate blocks while paused. Returns false when ctx ends.
func (s *Scheduler) waitForGate(ctx context.Context) bool {
	for {
		s.mu.Lock()
		gate := s.gate
		s.mu.Unlock()

		select {
		case <-gate:
			return true
		case <-ctx.Done():
			return false
		}
	}
}

// waitForGovernor blocks until the rate governor admits a dispatch.
// Returns false when ctx ends.
func (s *Scheduler) waitForGovernor(ctx context.Context) bool {
	if s.governor == nil {
		return true
	}
	for {
		d := s.governor.CheckProfile("scheduler", s.governorProfile)
		if d.Allowed {
			return true
		}
		if !sleepCtx(ctx, d.RetryAfter) {
			return false
		}
	}
}

// process runs one attempt of a job, retrying with backoff in place.
func (s *Scheduler) process(ctx context.Context, log logger.Logger, jobID string) {
	job, ok := s.begin(jobID)
	if !ok {
		return
	}

	m, err := s.lookup(ctx, job.ModelID)
	if err != nil {
		s.fail(jobID, fmt.Errorf("lookup model: %w", err))
		return
	}

	for {
		job, ok = s.bumpAttempt(jobID)
		if !ok {
			return // cancelled mid-flight
		}

		start := time.Now()
		partial, via, err := s.enricher.Enrich(ctx, m, job.Sources)
		metrics.RecordEnrichmentLatency(float64(time.Since(start).Milliseconds()))

		if err == nil {
			if !s.stillProcessing(jobID) {
				// Cancelled mid-flight: the result arrives too late and
				// must never reach the store.
				log.Debug(ctx, "discarding result of cancelled job",
					logger.String("job", jobID),
					logger.String("model", job.ModelName),
				)
				return
			}
			if sinkErr := s.sink(ctx, job.ModelID, partial); sinkErr != nil {
				s.fail(jobID, fmt.Errorf("apply result: %w", sinkErr))
				return
			}
			s.complete(jobID, partial)
			log.Debug(ctx, "job completed",
				logger.String("job", jobID),
				logger.String("model", job.ModelName),
				logger.String("via", string(via)),
			)
			return
		}

		if !provider.IsRetryable(err) || job.Attempts >= job.MaxAttempts {
			s.fail(jobID, err)
			log.Warn(ctx, "job failed",
				logger.String("job", jobID),
				logger.String("model", job.ModelName),
				logger.Int("attempts", job.Attempts),
				logger.Error(err),
			)
			if errors.Is(err, provider.ErrNoProviderEnabled) {
				// Configuration problem: every queued job would fail the
				// same way, so fail them now with one message.
				if n := s.failPending(err); n > 0 {
					log.Warn(ctx, "failing queued jobs, no provider enabled",
						logger.Int("jobs", n))
				}
			}
			return
		}

		metrics.RecordJobRetry()
		backoff := s.backoffFor(job.Attempts)
		log.Debug(ctx, "retrying job",
			logger.String("job", jobID),
			logger.Int("attempt", job.Attempts),
			logger.Duration("backoff", backoff),
		)
		if !sleepCtx(ctx, backoff) {
			return
		}
		if !s.waitForGate(ctx) {
			return
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
		if !s.waitForGovernor(ctx) {
			return
		}
	}
}

// backoffFor doubles the base delay per completed attempt, capped.
func (s *Scheduler) backoffFor(attempts int) time.Duration {
	d := s.backoffBase
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// begin moves a pending job to processing. Returns false for jobs that
// were cancelled while queued.
func (s *Scheduler) begin(jobID string) (model.ValidationJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok || job.Status != model.JobPending {
		return model.ValidationJob{}, false
	}
	job.Status = model.JobProcessing
	job.UpdatedAt = time.Now()
	metrics.UpdateJobsPending(len(s.pending))
	metrics.UpdateJobsInFlight(s.inFlightLocked())
	s.notifyLocked(job)
	return *job, true
}

// stillProcessing reports whether a job remains in flight.
func (s *Scheduler) stillProcessing(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	return ok && job.Status == model.JobProcessing
}

// bumpAttempt increments the attempt counter unless the job has been
// cancelled since the last attempt.
func (s *Scheduler) bumpAttempt(jobID string) (model.ValidationJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok || job.Status != model.JobProcessing {
		return model.ValidationJob{}, false
	}
	job.Attempts++
	job.UpdatedAt = time.Now()
	return *job, true
}

func (s *Scheduler) complete(jobID string, result model.Model) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok || job.Status.Terminal() {
		return
	}
	job.Status = model.JobCompleted
	job.Result = &result
	job.Error = ""
	job.UpdatedAt = time.Now()
	metrics.RecordJobCompleted()
	metrics.UpdateJobsInFlight(s.inFlightLocked())
	s.notifyLocked(job)
}

func (s *Scheduler) fail(jobID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok || job.Status.Terminal() {
		return
	}
	job.Status = model.JobFailed
	job.Error = err.Error()
	job.UpdatedAt = time.Now()
	metrics.RecordJobFailed(string(provider.Categorize(err)))
	metrics.UpdateJobsInFlight(s.inFlightLocked())
	s.notifyLocked(job)
}

// failPending fails every still-pending job with err. Workers skip the
// queued IDs once they see the terminal status.
func (s *Scheduler) failPending(err error) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, job := range s.jobs {
		if job.Status != model.JobPending {
			continue
		}
		job.Status = model.JobFailed
		job.Error = err.Error()
		job.UpdatedAt = time.Now()
		metrics.RecordJobFailed(string(provider.Categorize(err)))
		s.notifyLocked(job)
		n++
	}
	return n
}

// inFlightLocked counts processing jobs. Caller holds s.mu.
func (s *Scheduler) inFlightLocked() int {
	n := 0
	for _, job := range s.jobs {
		if job.Status == model.JobProcessing {
			n++
		}
	}
	return n
}

// notifyLocked emits a progress snapshot. Caller holds s.mu.
func (s *Scheduler) notifyLocked(job *model.ValidationJob) {
	if s.progress == nil {
		return
	}
	snapshot := *job
	go s.progress(snapshot)
}

// sleepCtx sleeps for d unless ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
