package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/corralhq/corral/internal/adapters/repository"
	"github.com/corralhq/corral/internal/adapters/source"
	service "github.com/corralhq/corral/internal/app"
	"github.com/corralhq/corral/internal/config"
	"github.com/corralhq/corral/internal/domain/model"
	"github.com/corralhq/corral/pkg/logger"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// fakeAdapter serves scripted raw records for one source.
type fakeAdapter struct {
	name    string
	records []map[string]any
	err     error
	calls   int
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Fetch(ctx context.Context, cfg source.FetchConfig) ([]map[string]any, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

// stubEnricher returns a fixed partial for every job.
type stubEnricher struct {
	partial model.Model
}

func (s *stubEnricher) Enrich(ctx context.Context, m model.Model, sources []model.ValidationSource) (model.Model, model.ValidationSource, error) {
	return s.partial, model.SourceAPI, nil
}

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

func hubRecords() []map[string]any {
	return []map[string]any{
		{
			"id":           "meta-llama/Llama-3-70B",
			"pipeline_tag": "text-generation",
			"license":      "llama3",
			"downloads":    float64(125000),
			"lastModified": "2026-01-10T08:00:00Z",
			"tags":         []any{"llm", "chat"},
		},
		{
			"id":           "openai/whisper-large-v3",
			"pipeline_tag": "automatic-speech-recognition",
			"downloads":    float64(90000),
		},
		{
			"id":           "mistralai/Mistral-7B-v0.3",
			"pipeline_tag": "text-generation",
			"downloads":    float64(40000),
		},
	}
}

func civitaiRecords() []map[string]any {
	return []map[string]any{
		{
			"name":       "Llama 3 70B",
			"creator":    map[string]any{"username": "meta-llama"},
			"parameters": "70B",
			"stats":      map[string]any{"downloadCount": float64(777)},
			"updatedAt":  "2026-02-01T00:00:00Z",
		},
	}
}

// isLlama matches the shared record whichever catalog named it first.
func isLlama(m model.Model) bool {
	return m.Name == "Llama-3-70B" || m.Name == "Llama 3 70B"
}

func newTestService(hub, civitai *fakeAdapter) (*service.Service, *repository.MemStore) {
	cfg := config.New()
	cfg.Sources = []string{"huggingface", "civitai"}

	store := repository.NewMemStore()
	svc := service.New(cfg,
		service.WithStore(store),
		service.WithSourceRegistry(source.NewRegistry(hub, civitai)),
		service.WithEnricher(&stubEnricher{partial: model.Model{Description: "enriched description"}}),
	)
	return svc, store
}

func TestServiceSync(t *testing.T) {
	Convey("Given a service over two catalogs sharing one model", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		hub := &fakeAdapter{name: "huggingface", records: hubRecords()}
		civitai := &fakeAdapter{name: "civitai", records: civitaiRecords()}
		svc, store := newTestService(hub, civitai)

		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When the first sync pass runs", func() {
			report, err := svc.Sync(ctx, nil)
			So(err, ShouldBeNil)

			Convey("Then the report should reconcile across sources", func() {
				So(report.Added, ShouldEqual, 2)
				So(report.Updated, ShouldEqual, 1)
				So(report.Duplicates, ShouldEqual, 0)
			})

			Convey("Then the shared model should be a single filled record", func() {
				models, err := svc.Models(ctx, service.ListOptions{})
				So(err, ShouldBeNil)
				So(models, ShouldHaveLength, 3)

				var llama model.Model
				for _, m := range models {
					if isLlama(m) {
						llama = m
					}
				}
				So(llama.ID, ShouldNotBeEmpty)
				// Sources merge as they finish, so either catalog may have
				// contributed the record first.
				So(llama.Source, ShouldBeIn, "huggingface", "civitai")
				So(llama.Parameters, ShouldEqual, "70B")
				So(llama.SourceStats, ShouldContainKey, "huggingface")
				So(llama.SourceStats, ShouldContainKey, "civitai")
				So(llama.UpdatedAt, ShouldEqual, "2026-02-01")
			})

			Convey("And when the same pass runs again", func() {
				again, err := svc.Sync(ctx, nil)
				So(err, ShouldBeNil)

				Convey("Then everything should be a duplicate", func() {
					So(again.Added, ShouldEqual, 0)
					So(again.Updated, ShouldEqual, 0)
					So(again.Duplicates, ShouldEqual, 3)
					So(store.Count(), ShouldEqual, 3)
				})
			})
		})

		Convey("When one source fails", func() {
			civitai.err = source.ErrUpstreamError

			report, err := svc.Sync(ctx, nil)

			Convey("Then the pass should still ingest the healthy source", func() {
				So(err, ShouldBeNil)
				So(report.Added, ShouldEqual, 3)
			})
		})

		Convey("When user state exists before a re-sync", func() {
			_, err := svc.Sync(ctx, nil)
			So(err, ShouldBeNil)

			models, _ := store.Load(ctx)
			for i := range models {
				if isLlama(models[i]) {
					models[i].IsFavorite = true
				}
			}
			So(store.Save(ctx, models), ShouldBeNil)

			_, err = svc.Sync(ctx, nil)
			So(err, ShouldBeNil)

			Convey("Then the favorite flag should survive", func() {
				after, _ := store.Load(ctx)
				found := false
				for _, m := range after {
					if isLlama(m) {
						found = true
						So(m.IsFavorite, ShouldBeTrue)
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}

func TestServiceSafety(t *testing.T) {
	Convey("Given a source carrying an explicit model", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		hub := &fakeAdapter{name: "huggingface", records: []map[string]any{
			{"id": "acme/NudePortraitGenerator", "pipeline_tag": "text-to-image"},
			{"id": "essex-lab/Essex-Regional-LM", "pipeline_tag": "text-generation"},
		}}
		civitai := &fakeAdapter{name: "civitai", records: nil}
		svc, store := newTestService(hub, civitai)

		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When the sync pass ingests it", func() {
			_, err := svc.Sync(ctx, nil)
			So(err, ShouldBeNil)

			Convey("Then only the explicit model should be flagged", func() {
				models, _ := store.Load(ctx)
				flags := make(map[string]bool, len(models))
				for _, m := range models {
					flags[m.Name] = m.IsNSFWFlagged
				}
				So(flags["NudePortraitGenerator"], ShouldBeTrue)
				So(flags["Essex-Regional-LM"], ShouldBeFalse)
			})

			Convey("Then a rescan should change nothing further", func() {
				res, err := svc.RescanSafety(ctx)
				So(err, ShouldBeNil)
				So(res.Flagged, ShouldEqual, 0)
				So(res.Cleared, ShouldEqual, 0)
			})
		})
	})
}

func TestServiceValidation(t *testing.T) {
	Convey("Given a synced catalog", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		hub := &fakeAdapter{name: "huggingface", records: hubRecords()}
		civitai := &fakeAdapter{name: "civitai", records: nil}
		svc, store := newTestService(hub, civitai)

		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		_, err := svc.Sync(ctx, nil)
		So(err, ShouldBeNil)

		models, _ := store.Load(ctx)
		target := models[0]

		Convey("When a validation job is submitted", func() {
			job, err := svc.Validate(ctx, target.ID, nil)
			So(err, ShouldBeNil)
			So(job.ModelID, ShouldEqual, target.ID)

			So(waitUntil(func() bool {
				for _, j := range svc.Jobs() {
					if j.ID == job.ID && j.Status == model.JobCompleted {
						return true
					}
				}
				return false
			}), ShouldBeTrue)

			Convey("Then the enrichment should land in the store", func() {
				So(waitUntil(func() bool {
					after, _ := store.Load(ctx)
					for _, m := range after {
						if m.ID == target.ID {
							return m.Description == "enriched description"
						}
					}
					return false
				}), ShouldBeTrue)
			})
		})

		Convey("When validating an unknown model", func() {
			_, err := svc.Validate(ctx, "no-such-id", nil)

			Convey("Then the submission should be rejected", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "model not found")
			})
		})
	})
}

func TestServiceSyncProgress(t *testing.T) {
	Convey("Given a service with a progress callback", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var (
			mu     sync.Mutex
			events []service.ProgressEvent
		)

		cfg := config.New()
		cfg.Sources = []string{"huggingface", "civitai"}
		svc := service.New(cfg,
			service.WithStore(repository.NewMemStore()),
			service.WithSourceRegistry(source.NewRegistry(
				&fakeAdapter{name: "huggingface", records: hubRecords()},
				&fakeAdapter{name: "civitai", records: nil},
			)),
			service.WithEnricher(&stubEnricher{}),
			service.WithSyncProgress(func(ev service.ProgressEvent) {
				mu.Lock()
				events = append(events, ev)
				mu.Unlock()
			}),
		)

		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When a sync pass runs", func() {
			_, err := svc.Sync(ctx, nil)
			So(err, ShouldBeNil)

			Convey("Then each source should emit start and finish checkpoints", func() {
				mu.Lock()
				defer mu.Unlock()

				So(events, ShouldHaveLength, 4)
				perSource := make(map[string]int)
				finished := 0
				for _, ev := range events {
					So(ev.Total, ShouldEqual, 2)
					perSource[ev.Source]++
					if ev.Current == 2 {
						finished++
					}
				}
				So(perSource["huggingface"], ShouldEqual, 2)
				So(perSource["civitai"], ShouldEqual, 2)
				So(finished, ShouldBeGreaterThanOrEqualTo, 1)
			})
		})
	})
}

func TestServiceSourceGovernor(t *testing.T) {
	Convey("Given a one-fetch-per-window source quota", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		cfg := config.New()
		cfg.Sources = []string{"huggingface"}
		cfg.SourceMaxAttempts = 1
		cfg.SourceWindowMS = 60_000

		hub := &fakeAdapter{name: "huggingface", records: hubRecords()}
		store := repository.NewMemStore()
		svc := service.New(cfg,
			service.WithStore(store),
			service.WithSourceRegistry(source.NewRegistry(hub)),
			service.WithEnricher(&stubEnricher{}),
		)

		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When a second sync runs inside the window", func() {
			first, err := svc.Sync(ctx, nil)
			So(err, ShouldBeNil)
			So(first.Added, ShouldEqual, 3)

			second, err := svc.Sync(ctx, nil)
			So(err, ShouldBeNil)

			Convey("Then the governed source should be skipped without a fetch", func() {
				So(hub.calls, ShouldEqual, 1)
				So(second.Added, ShouldEqual, 0)
				So(second.Updated, ShouldEqual, 0)
				So(second.Duplicates, ShouldEqual, 0)
				So(store.Count(), ShouldEqual, 3)
			})
		})
	})
}

func TestServiceImportAndStats(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		hub := &fakeAdapter{name: "huggingface", records: nil}
		civitai := &fakeAdapter{name: "civitai", records: nil}
		svc, _ := newTestService(hub, civitai)

		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When models are imported directly", func() {
			report, err := svc.ImportModels(ctx, []model.Model{
				{ID: "manual:one", Name: "Handwritten One", Source: "manual"},
				{ID: "manual:two", Name: "Handwritten Two", Source: "manual"},
			})

			Convey("Then they should merge like any other batch", func() {
				So(err, ShouldBeNil)
				So(report.Added, ShouldEqual, 2)

				models, err := svc.Models(ctx, service.ListOptions{})
				So(err, ShouldBeNil)
				So(models, ShouldHaveLength, 2)

				favorites, err := svc.Models(ctx, service.ListOptions{FavoritesOnly: true})
				So(err, ShouldBeNil)
				So(favorites, ShouldBeEmpty)

				paged, err := svc.Models(ctx, service.ListOptions{Offset: 1})
				So(err, ShouldBeNil)
				So(paged, ShouldHaveLength, 1)
			})
		})

		Convey("When stats are requested", func() {
			_, err := svc.Sync(ctx, nil)
			So(err, ShouldBeNil)

			stats := svc.Stats(ctx)

			Convey("Then the summary should describe the catalog", func() {
				So(stats["started"], ShouldBeTrue)
				So(stats, ShouldContainKey, "models")
				So(stats, ShouldContainKey, "jobs")
				So(stats, ShouldContainKey, "last_sync")
				So(stats["validation_paused"], ShouldBeFalse)
			})
		})
	})
}
