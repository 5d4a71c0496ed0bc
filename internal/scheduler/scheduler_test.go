package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/corralhq/corral/internal/adapters/provider"
	"github.com/corralhq/corral/internal/domain/model"
	"github.com/corralhq/corral/internal/ratelimit"
	"github.com/corralhq/corral/internal/scheduler"
	"github.com/corralhq/corral/pkg/logger"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// fakeEnricher scripts enrichment outcomes and records call order.
type fakeEnricher struct {
	mu      sync.Mutex
	results map[string]model.Model
	errs    map[string]error
	order   []string
}

func newFakeEnricher() *fakeEnricher {
	return &fakeEnricher{
		results: make(map[string]model.Model),
		errs:    make(map[string]error),
	}
}

func (f *fakeEnricher) Enrich(ctx context.Context, m model.Model, sources []model.ValidationSource) (model.Model, model.ValidationSource, error) {
	f.mu.Lock()
	f.order = append(f.order, m.ID)
	err := f.errs[m.ID]
	result := f.results[m.ID]
	f.mu.Unlock()

	if err != nil {
		return model.Model{}, "", err
	}
	return result, model.SourceAPI, nil
}

func (f *fakeEnricher) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

// blockingEnricher parks every call until released.
type blockingEnricher struct {
	started chan string
	release chan struct{}
}

func newBlockingEnricher() *blockingEnricher {
	return &blockingEnricher{
		started: make(chan string, 1),
		release: make(chan struct{}),
	}
}

func (b *blockingEnricher) Enrich(ctx context.Context, m model.Model, sources []model.ValidationSource) (model.Model, model.ValidationSource, error) {
	b.started <- m.ID
	<-b.release
	return model.Model{Parameters: "8B"}, model.SourceAPI, nil
}

// flakyEnricher fails the first n calls retryably, then succeeds.
type flakyEnricher struct {
	mu    sync.Mutex
	n     int
	calls int
}

func (f *flakyEnricher) Enrich(ctx context.Context, m model.Model, sources []model.ValidationSource) (model.Model, model.ValidationSource, error) {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.n
	f.mu.Unlock()

	if fail {
		return model.Model{}, "", &provider.Error{
			Category: provider.CategoryServerError,
			Err:      errors.New("transient upstream error"),
		}
	}
	return model.Model{Parameters: "7B"}, model.SourceAPI, nil
}

// recordingSink captures applied enrichments.
type recordingSink struct {
	mu      sync.Mutex
	applied map[string]model.Model
}

func newRecordingSink() *recordingSink {
	return &recordingSink{applied: make(map[string]model.Model)}
}

func (r *recordingSink) apply(ctx context.Context, modelID string, partial model.Model) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied[modelID] = partial
	return nil
}

func (r *recordingSink) get(id string) (model.Model, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.applied[id]
	return m, ok
}

func lookupByID(ctx context.Context, id string) (model.Model, error) {
	return model.Model{ID: id, Name: "model " + id}, nil
}

// testTier runs one worker with no pacing so tests stay fast.
var testTier = provider.Tier{Name: "test", MaxInFlight: 1}

// waitUntil polls cond until it holds or the deadline passes.
func waitUntil(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func jobByModel(s *scheduler.Scheduler, modelID string) (model.ValidationJob, bool) {
	for _, j := range s.Jobs() {
		if j.ModelID == modelID {
			return j, true
		}
	}
	return model.ValidationJob{}, false
}

func TestSchedulerLifecycle(t *testing.T) {
	Convey("Given a running scheduler", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		enricher := newFakeEnricher()
		sink := newRecordingSink()
		s := scheduler.New(enricher, lookupByID, sink.apply,
			scheduler.WithTier(testTier),
			scheduler.WithBackoffBase(time.Millisecond),
		)
		s.Start(ctx)
		defer s.Shutdown(context.Background())

		Convey("When a job succeeds", func() {
			enricher.results["m1"] = model.Model{Parameters: "70B"}

			job, err := s.Submit("m1", "model m1", nil)
			So(err, ShouldBeNil)
			So(job.Status, ShouldEqual, model.JobPending)
			So(job.ID, ShouldNotBeEmpty)

			So(waitUntil(func() bool {
				j, _ := s.Job(job.ID)
				return j.Status == model.JobCompleted
			}), ShouldBeTrue)

			Convey("Then the result should reach the sink", func() {
				applied, ok := sink.get("m1")
				So(ok, ShouldBeTrue)
				So(applied.Parameters, ShouldEqual, "70B")
			})

			Convey("Then the job should carry its result", func() {
				j, err := s.Job(job.ID)
				So(err, ShouldBeNil)
				So(j.Result, ShouldNotBeNil)
				So(j.Result.Parameters, ShouldEqual, "70B")
				So(j.Attempts, ShouldEqual, 1)
			})
		})

		Convey("When jobs are submitted in order", func() {
			for _, id := range []string{"a", "b", "c"} {
				_, err := s.Submit(id, id, nil)
				So(err, ShouldBeNil)
			}

			So(waitUntil(func() bool { return len(enricher.calls()) == 3 }), ShouldBeTrue)

			Convey("Then a single worker should process them FIFO", func() {
				So(enricher.calls(), ShouldResemble, []string{"a", "b", "c"})
			})
		})

		Convey("When enrichment keeps failing retryably", func() {
			enricher.errs["bad"] = &provider.Error{
				Category: provider.CategoryServerError,
				Err:      errors.New("upstream down"),
			}

			job, err := s.Submit("bad", "bad", nil)
			So(err, ShouldBeNil)

			So(waitUntil(func() bool {
				j, _ := s.Job(job.ID)
				return j.Status.Terminal()
			}), ShouldBeTrue)

			Convey("Then the job should fail after exhausting attempts", func() {
				j, _ := s.Job(job.ID)
				So(j.Status, ShouldEqual, model.JobFailed)
				So(j.Attempts, ShouldEqual, 3)
				So(j.Error, ShouldContainSubstring, "upstream down")
			})
		})

		Convey("When enrichment fails permanently", func() {
			enricher.errs["denied"] = &provider.Error{
				Category: provider.CategoryUnauthorized,
				Err:      errors.New("bad key"),
			}

			job, err := s.Submit("denied", "denied", nil)
			So(err, ShouldBeNil)

			So(waitUntil(func() bool {
				j, _ := s.Job(job.ID)
				return j.Status.Terminal()
			}), ShouldBeTrue)

			Convey("Then the job should fail on the first attempt", func() {
				j, _ := s.Job(job.ID)
				So(j.Status, ShouldEqual, model.JobFailed)
				So(j.Attempts, ShouldEqual, 1)
			})
		})

		Convey("When no provider is enabled", func() {
			enricher.errs["orphan"] = provider.ErrNoProviderEnabled

			job, err := s.Submit("orphan", "orphan", nil)
			So(err, ShouldBeNil)

			So(waitUntil(func() bool {
				j, _ := s.Job(job.ID)
				return j.Status.Terminal()
			}), ShouldBeTrue)

			Convey("Then the job should fail without retrying", func() {
				j, _ := s.Job(job.ID)
				So(j.Status, ShouldEqual, model.JobFailed)
				So(j.Attempts, ShouldEqual, 1)
			})
		})
	})
}

func TestSchedulerConfigErrorShortCircuit(t *testing.T) {
	Convey("Given queued jobs and no enabled provider", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		enricher := newFakeEnricher()
		for _, id := range []string{"j1", "j2", "j3"} {
			enricher.errs[id] = provider.ErrNoProviderEnabled
		}
		sink := newRecordingSink()
		s := scheduler.New(enricher, lookupByID, sink.apply, scheduler.WithTier(testTier))
		s.Start(ctx)
		defer s.Shutdown(context.Background())

		s.Pause()
		for _, id := range []string{"j1", "j2", "j3"} {
			_, err := s.Submit(id, id, nil)
			So(err, ShouldBeNil)
		}

		Convey("When dispatch resumes", func() {
			s.Resume()

			So(waitUntil(func() bool {
				jobs := s.Jobs()
				if len(jobs) != 3 {
					return false
				}
				for _, j := range jobs {
					if !j.Status.Terminal() {
						return false
					}
				}
				return true
			}), ShouldBeTrue)

			Convey("Then every queued job should fail with the same message", func() {
				for _, j := range s.Jobs() {
					So(j.Status, ShouldEqual, model.JobFailed)
					So(j.Error, ShouldContainSubstring, "no enrichment provider enabled")
				}
			})

			Convey("Then only the first job should have reached the provider", func() {
				So(enricher.calls(), ShouldHaveLength, 1)
			})
		})
	})
}

func TestSchedulerPauseResume(t *testing.T) {
	Convey("Given a paused scheduler", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		enricher := newFakeEnricher()
		sink := newRecordingSink()
		s := scheduler.New(enricher, lookupByID, sink.apply, scheduler.WithTier(testTier))
		s.Start(ctx)
		defer s.Shutdown(context.Background())

		s.Pause()
		So(s.Paused(), ShouldBeTrue)

		job, err := s.Submit("held", "held", nil)
		So(err, ShouldBeNil)

		Convey("When time passes while paused", func() {
			time.Sleep(50 * time.Millisecond)

			Convey("Then the job should still be pending", func() {
				j, _ := s.Job(job.ID)
				So(j.Status, ShouldEqual, model.JobPending)
				So(enricher.calls(), ShouldBeEmpty)
			})
		})

		Convey("When the scheduler resumes", func() {
			s.Resume()
			So(s.Paused(), ShouldBeFalse)

			Convey("Then the held job should complete", func() {
				So(waitUntil(func() bool {
					j, _ := s.Job(job.ID)
					return j.Status == model.JobCompleted
				}), ShouldBeTrue)
			})
		})
	})
}

func TestSchedulerCancelAndClear(t *testing.T) {
	Convey("Given a paused scheduler with queued jobs", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		enricher := newFakeEnricher()
		sink := newRecordingSink()
		s := scheduler.New(enricher, lookupByID, sink.apply, scheduler.WithTier(testTier))
		s.Start(ctx)
		defer s.Shutdown(context.Background())

		s.Pause()
		for _, id := range []string{"q1", "q2", "q3"} {
			_, err := s.Submit(id, id, nil)
			So(err, ShouldBeNil)
		}

		Convey("When all jobs are cancelled", func() {
			n := s.CancelAll()
			So(n, ShouldEqual, 3)
			s.Resume()

			Convey("Then no cancelled job should ever run", func() {
				time.Sleep(50 * time.Millisecond)
				So(enricher.calls(), ShouldBeEmpty)
				for _, j := range s.Jobs() {
					So(j.Status, ShouldEqual, model.JobCancelled)
				}
			})

			Convey("Then ClearFinished should drop them", func() {
				So(s.ClearFinished(), ShouldEqual, 3)
				So(s.Jobs(), ShouldBeEmpty)
			})
		})

		Convey("When only some jobs are terminal", func() {
			jobs := s.Jobs()
			s.Resume()

			So(waitUntil(func() bool {
				j, _ := s.Job(jobs[0].ID)
				return j.Status == model.JobCompleted
			}), ShouldBeTrue)
			s.Pause()

			Convey("Then ClearFinished should keep the live ones", func() {
				removed := s.ClearFinished()
				So(removed, ShouldBeGreaterThanOrEqualTo, 1)
				So(len(s.Jobs()), ShouldEqual, 3-removed)
			})
		})
	})
}

func TestSchedulerCancelMidFlight(t *testing.T) {
	Convey("Given a job parked inside enrichment", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		enricher := newBlockingEnricher()
		sink := newRecordingSink()
		s := scheduler.New(enricher, lookupByID, sink.apply, scheduler.WithTier(testTier))
		s.Start(ctx)
		defer s.Shutdown(context.Background())

		job, err := s.Submit("slow", "slow", nil)
		So(err, ShouldBeNil)
		So(<-enricher.started, ShouldEqual, "slow")

		Convey("When it is cancelled and the enrichment then finishes", func() {
			So(s.CancelAll(), ShouldEqual, 1)
			close(enricher.release)

			// Let the worker observe the terminal status and drop the result.
			time.Sleep(50 * time.Millisecond)

			Convey("Then the late result should be discarded", func() {
				_, applied := sink.get("slow")
				So(applied, ShouldBeFalse)

				j, err := s.Job(job.ID)
				So(err, ShouldBeNil)
				So(j.Status, ShouldEqual, model.JobCancelled)
				So(j.Result, ShouldBeNil)
			})
		})
	})
}

func TestSchedulerGovernorOnRetry(t *testing.T) {
	Convey("Given a governed scheduler and a transient failure", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		governor := ratelimit.New()
		profile := ratelimit.Profile{Name: "llm", MaxAttempts: 2, Window: 10 * time.Second}

		enricher := &flakyEnricher{n: 1}
		sink := newRecordingSink()
		s := scheduler.New(enricher, lookupByID, sink.apply,
			scheduler.WithTier(testTier),
			scheduler.WithBackoffBase(time.Millisecond),
			scheduler.WithGovernor(governor, profile),
		)
		s.Start(ctx)
		defer s.Shutdown(context.Background())

		Convey("When the job retries and completes", func() {
			job, err := s.Submit("r1", "r1", nil)
			So(err, ShouldBeNil)

			So(waitUntil(func() bool {
				j, _ := s.Job(job.ID)
				return j.Status == model.JobCompleted
			}), ShouldBeTrue)

			Convey("Then both dispatches should have consumed governor quota", func() {
				j, _ := s.Job(job.ID)
				So(j.Attempts, ShouldEqual, 2)
				So(governor.CheckProfile("scheduler", profile).Allowed, ShouldBeFalse)
			})
		})
	})
}

func TestSchedulerQueueBounds(t *testing.T) {
	Convey("Given a scheduler with a tiny queue and no workers", t, func() {
		enricher := newFakeEnricher()
		sink := newRecordingSink()
		s := scheduler.New(enricher, lookupByID, sink.apply,
			scheduler.WithTier(testTier),
			scheduler.WithQueueSize(1),
		)

		Convey("When submissions exceed capacity", func() {
			_, err := s.Submit("first", "first", nil)
			So(err, ShouldBeNil)

			_, err = s.Submit("second", "second", nil)

			Convey("Then the overflow should be rejected, not dropped silently", func() {
				So(errors.Is(err, scheduler.ErrQueueFull), ShouldBeTrue)
			})
		})
	})
}

func TestSchedulerProgressEvents(t *testing.T) {
	Convey("Given a scheduler with a progress callback", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var mu sync.Mutex
		seen := make(map[model.JobStatus]bool)

		enricher := newFakeEnricher()
		sink := newRecordingSink()
		s := scheduler.New(enricher, lookupByID, sink.apply,
			scheduler.WithTier(testTier),
			scheduler.WithProgress(func(j model.ValidationJob) {
				mu.Lock()
				seen[j.Status] = true
				mu.Unlock()
			}),
		)
		s.Start(ctx)
		defer s.Shutdown(context.Background())

		Convey("When a job runs to completion", func() {
			_, err := s.Submit("p1", "p1", nil)
			So(err, ShouldBeNil)

			So(waitUntil(func() bool {
				mu.Lock()
				defer mu.Unlock()
				return seen[model.JobCompleted]
			}), ShouldBeTrue)

			Convey("Then every lifecycle stage should have been observed", func() {
				mu.Lock()
				defer mu.Unlock()
				So(seen[model.JobPending], ShouldBeTrue)
				So(seen[model.JobProcessing], ShouldBeTrue)
				So(seen[model.JobCompleted], ShouldBeTrue)
			})
		})
	})
}
