// Package service wires the catalog pipeline together: source fetch,
// normalization, safety classification, merge, persistence, and the
// validation scheduler behind the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/corralhq/corral/internal/adapters/provider"
	"github.com/corralhq/corral/internal/adapters/repository"
	"github.com/corralhq/corral/internal/adapters/source"
	"github.com/corralhq/corral/internal/config"
	"github.com/corralhq/corral/internal/domain/merge"
	"github.com/corralhq/corral/internal/domain/model"
	"github.com/corralhq/corral/internal/domain/rank"
	"github.com/corralhq/corral/internal/domain/safety"
	"github.com/corralhq/corral/internal/normalize"
	"github.com/corralhq/corral/internal/ratelimit"
	"github.com/corralhq/corral/internal/scheduler"
	"github.com/corralhq/corral/pkg/logger"
	"github.com/corralhq/corral/pkg/metrics"
)

// Metadata keys the service tracks in the store.
const (
	metaLastSync    = "last_sync"
	metaScanVersion = "safety_scan_version"
)

const governorSweepInterval = time.Hour

// ProgressEvent marks a sync checkpoint for presentation consumers.
type ProgressEvent struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Source  string `json:"source,omitempty"`
	Found   int    `json:"found,omitempty"`
	Message string `json:"statusMessage,omitempty"`
}

// ProgressFunc observes sync checkpoints: per-source start and finish.
type ProgressFunc func(ProgressEvent)

// Service implements the API dependencies for the catalog system.
type Service struct {
	cfg *config.Config

	// Core components
	store      repository.Store
	sources    *source.Registry
	classifier *safety.Classifier
	merger     *merge.Engine
	ranker     *rank.Ranker
	enricher   scheduler.Enricher
	scheduler  *scheduler.Scheduler
	governor   *ratelimit.Governor
	progress   ProgressFunc

	// storeMu serializes read-merge-write cycles against the store.
	storeMu sync.Mutex

	mu      sync.RWMutex
	started bool
	syncing bool

	logger logger.Logger
}

// New constructs a Service from configuration. Options replace
// components, which tests lean on.
func New(cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		logger: logger.Get().Named("service"),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes the components and launches the scheduler.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting catalog service...")

	if s.store == nil {
		if s.cfg.StorePath != "" {
			store, err := repository.NewFileStore(s.cfg.StorePath)
			if err != nil {
				return fmt.Errorf("open catalog store: %w", err)
			}
			s.store = store
			s.logger.Info(ctx, "using file store", logger.String("path", s.cfg.StorePath))
		} else {
			s.store = repository.NewMemStore()
			s.logger.Info(ctx, "using in-memory store")
		}
	}
	if s.sources == nil {
		s.sources = source.DefaultRegistry()
	}
	if s.classifier == nil {
		s.classifier = safety.NewClassifier()
	}
	if s.merger == nil {
		s.merger = merge.New()
	}
	if s.ranker == nil {
		s.ranker = rank.New()
	}
	if s.governor == nil {
		s.governor = ratelimit.New()
	}
	if s.enricher == nil {
		s.enricher = provider.DefaultChain(provider.Config{
			Name:     s.cfg.ProviderName,
			Endpoint: s.cfg.ProviderEndpoint,
			APIKey:   s.cfg.ProviderAPIKey,
			Model:    s.cfg.ProviderModel,
		})
	}

	s.scheduler = scheduler.New(s.enricher, s.lookupModel, s.applyEnrichment,
		scheduler.WithTier(provider.TierByName(s.cfg.ProviderTier)),
		scheduler.WithQueueSize(s.cfg.ValidationQueueSize),
		scheduler.WithMaxAttempts(s.cfg.ValidationMaxAttempts),
		scheduler.WithGovernor(s.governor, s.llmProfile()),
	)
	s.scheduler.Start(ctx)
	s.governor.StartSweeper(ctx, governorSweepInterval)

	s.started = true
	s.logger.Info(ctx, "catalog service started",
		logger.String("tier", s.cfg.ProviderTier),
		logger.Any("sources", s.cfg.Sources),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping catalog service...")

	if s.scheduler != nil {
		if err := s.scheduler.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "scheduler shutdown", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "catalog service stopped")
}

// Governor exposes the rate governor for the HTTP guard.
func (s *Service) Governor() *ratelimit.Governor {
	return s.governor
}

// BrowseProfile returns the lenient quota for read endpoints.
func (s *Service) BrowseProfile() ratelimit.Profile {
	return ratelimit.Profile{
		Name:        "browse",
		MaxAttempts: s.cfg.BrowseMaxAttempts,
		Window:      time.Duration(s.cfg.BrowseWindowMS) * time.Millisecond,
	}
}

// sourceProfile returns the per-source catalog fetch quota.
func (s *Service) sourceProfile() ratelimit.Profile {
	return ratelimit.Profile{
		Name:        "source",
		MaxAttempts: s.cfg.SourceMaxAttempts,
		Window:      time.Duration(s.cfg.SourceWindowMS) * time.Millisecond,
	}
}

func (s *Service) llmProfile() ratelimit.Profile {
	return ratelimit.Profile{
		Name:        "llm",
		MaxAttempts: s.cfg.LLMMaxAttempts,
		Window:      time.Duration(s.cfg.LLMWindowMS) * time.Millisecond,
	}
}

// LLMProfile returns the strict quota for provider-backed endpoints.
func (s *Service) LLMProfile() ratelimit.Profile {
	return s.llmProfile()
}

// Sync runs one ingestion pass over the named sources (all configured
// sources when empty). Source failures are isolated: a broken catalog
// never blocks the others. Returns the aggregate merge report.
func (s *Service) Sync(ctx context.Context, names []string) (merge.Report, error) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return merge.Report{}, ErrNotStarted
	}
	if s.syncing {
		s.mu.Unlock()
		return merge.Report{}, ErrSyncInProgress
	}
	s.syncing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.syncing = false
		s.mu.Unlock()
	}()

	if len(names) == 0 {
		names = s.cfg.Sources
	}

	start := time.Now()
	metrics.RecordSyncPass()
	s.logger.Info(ctx, "sync pass started", logger.Any("sources", names))

	var (
		reportMu sync.Mutex
		report   merge.Report
		done     int
	)
	total := len(names)
	bump := func(delta int) int {
		reportMu.Lock()
		defer reportMu.Unlock()
		done += delta
		return done
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.SyncConcurrency)

	// Per-source results fold into the store as they arrive; the store
	// lock inside mergeAndSave serializes the read-merge-write cycles.
	for _, name := range names {
		g.Go(func() error {
			s.emitProgress(ProgressEvent{
				Current: bump(0),
				Total:   total,
				Source:  name,
				Message: "fetching",
			})

			batch, err := s.fetchSource(gctx, name)
			if err != nil {
				// Isolated: log, count, keep the pass alive.
				metrics.RecordSyncSourceError(name)
				s.logger.Warn(gctx, "source failed, skipping",
					logger.String("source", name),
					logger.Error(err),
				)
				s.emitProgress(ProgressEvent{
					Current: bump(1),
					Total:   total,
					Source:  name,
					Message: "failed: " + err.Error(),
				})
				return nil
			}

			if len(batch) > 0 {
				r, err := s.mergeAndSave(gctx, batch)
				if err != nil {
					return fmt.Errorf("merge %s batch: %w", name, err)
				}
				reportMu.Lock()
				report.Combine(r)
				reportMu.Unlock()
			}

			s.emitProgress(ProgressEvent{
				Current: bump(1),
				Total:   total,
				Source:  name,
				Found:   len(batch),
				Message: "done",
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	metrics.RecordMergeOutcome(report.Added, report.Updated, report.Duplicates)
	metrics.RecordSyncPassDuration(float64(time.Since(start).Milliseconds()))

	if err := s.store.SaveMetadata(ctx, metaLastSync, time.Now().UTC().Format(time.RFC3339)); err != nil {
		s.logger.Warn(ctx, "record sync time", logger.Error(err))
	}

	s.logger.Info(ctx, "sync pass finished",
		logger.Int("added", report.Added),
		logger.Int("updated", report.Updated),
		logger.Int("duplicates", report.Duplicates),
	)
	return report, nil
}

// fetchSource pulls one catalog and shapes its records, dropping the
// malformed ones. Freshly normalized records get a safety verdict so
// new arrivals are never stored unclassified. Each source spends its
// own governor quota, so a busy catalog cannot starve the others.
func (s *Service) fetchSource(ctx context.Context, name string) ([]model.Model, error) {
	adapter, err := s.sources.Get(name)
	if err != nil {
		return nil, err
	}

	if d := s.governor.CheckProfile("source:"+name, s.sourceProfile()); !d.Allowed {
		return nil, fmt.Errorf("%w: %s, retry in %s",
			ErrSourceRateLimited, name, d.RetryAfter.Round(time.Second))
	}

	raw, err := adapter.Fetch(ctx, source.FetchConfig{
		PageSize: s.cfg.SourcePageSize,
		MaxPages: s.cfg.SourceMaxPages,
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordSyncRecordsFound(name, len(raw))

	batch := make([]model.Model, 0, len(raw))
	for _, record := range raw {
		m, err := normalize.Normalize(record, name)
		if err != nil {
			metrics.RecordRecordSkipped(name)
			s.logger.Debug(ctx, "skipping malformed record",
				logger.String("source", name),
				logger.Error(err),
			)
			continue
		}

		verdict := s.classifier.Classify(m, s.cfg.CustomNSFWKeywords)
		if verdict.IsNSFW {
			m.IsNSFWFlagged = true
			metrics.RecordSafetyFlagged()
		}
		batch = append(batch, m)
	}
	return batch, nil
}

// emitProgress invokes the progress callback when one is configured.
func (s *Service) emitProgress(ev ProgressEvent) {
	if s.progress != nil {
		s.progress(ev)
	}
}

// mergeAndSave folds a batch into the canonical set under the store lock.
func (s *Service) mergeAndSave(ctx context.Context, batch []model.Model) (merge.Report, error) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	existing, err := s.store.Load(ctx)
	if err != nil {
		return merge.Report{}, err
	}

	merged, report := s.merger.Merge(existing, batch)
	if err := s.store.Save(ctx, merged); err != nil {
		return merge.Report{}, err
	}
	return report, nil
}

// ImportModels folds caller-supplied records into the catalog.
func (s *Service) ImportModels(ctx context.Context, models []model.Model) (merge.Report, error) {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return merge.Report{}, ErrNotStarted
	}

	for i := range models {
		verdict := s.classifier.Classify(models[i], s.cfg.CustomNSFWKeywords)
		if verdict.IsNSFW {
			models[i].IsNSFWFlagged = true
		}
	}

	report, err := s.mergeAndSave(ctx, models)
	if err != nil {
		return merge.Report{}, err
	}
	metrics.RecordMergeOutcome(report.Added, report.Updated, report.Duplicates)
	return report, nil
}

// ListOptions shapes a catalog listing. Zero limit means the
// configured maximum.
type ListOptions struct {
	Limit         int
	Offset        int
	FavoritesOnly bool
	HideNSFW      bool
}

// Models returns catalog entries ordered by popularity, filtered and
// paged per opts. Limit is capped by configuration.
func (s *Service) Models(ctx context.Context, opts ListOptions) ([]model.Model, error) {
	models, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.ranker.Sort(models)

	if opts.FavoritesOnly || opts.HideNSFW {
		filtered := models[:0]
		for _, m := range models {
			if opts.FavoritesOnly && !m.IsFavorite {
				continue
			}
			if opts.HideNSFW && m.IsNSFWFlagged {
				continue
			}
			filtered = append(filtered, m)
		}
		models = filtered
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(models) {
			return []model.Model{}, nil
		}
		models = models[opts.Offset:]
	}

	limit := opts.Limit
	if limit <= 0 || limit > s.cfg.MaxModelsLimit {
		limit = s.cfg.MaxModelsLimit
	}
	if len(models) > limit {
		models = models[:limit]
	}
	return models, nil
}

// RescanSafety re-runs the safety classifier over the whole catalog and
// persists flag changes. Favorites and flagged images are untouched.
func (s *Service) RescanSafety(ctx context.Context) (safety.RescanResult, error) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	start := time.Now()
	models, err := s.store.Load(ctx)
	if err != nil {
		return safety.RescanResult{}, err
	}

	res := s.classifier.Rescan(models, s.cfg.CustomNSFWKeywords)
	if res.Flagged > 0 || res.Cleared > 0 {
		if err := s.store.Save(ctx, models); err != nil {
			return safety.RescanResult{}, err
		}
	}

	for i := 0; i < res.Flagged; i++ {
		metrics.RecordSafetyFlagged()
	}
	for i := 0; i < res.Cleared; i++ {
		metrics.RecordSafetyCleared()
	}
	metrics.RecordSafetyScanLatency(float64(time.Since(start).Milliseconds()))

	version := 1
	if v, err := s.store.LoadMetadata(ctx, metaScanVersion); err == nil {
		if n, convErr := strconv.Atoi(v); convErr == nil {
			version = n + 1
		}
	}
	if err := s.store.SaveMetadata(ctx, metaScanVersion, strconv.Itoa(version)); err != nil {
		s.logger.Warn(ctx, "record scan version", logger.Error(err))
	}

	s.logger.Info(ctx, "safety rescan finished",
		logger.Int("flagged", res.Flagged),
		logger.Int("cleared", res.Cleared),
	)
	return res, nil
}

// Validate queues an enrichment job for the model.
func (s *Service) Validate(ctx context.Context, modelID string, sources []model.ValidationSource) (model.ValidationJob, error) {
	m, err := s.lookupModel(ctx, modelID)
	if err != nil {
		return model.ValidationJob{}, err
	}
	return s.scheduler.Submit(m.ID, m.Name, sources)
}

// Jobs lists all validation jobs.
func (s *Service) Jobs() []model.ValidationJob {
	return s.scheduler.Jobs()
}

// PauseValidation holds back job dispatch.
func (s *Service) PauseValidation() { s.scheduler.Pause() }

// ResumeValidation reopens job dispatch.
func (s *Service) ResumeValidation() { s.scheduler.Resume() }

// CancelValidation cancels every non-terminal job.
func (s *Service) CancelValidation() int { return s.scheduler.CancelAll() }

// ClearFinishedJobs drops terminal jobs from the listing.
func (s *Service) ClearFinishedJobs() int { return s.scheduler.ClearFinished() }

// lookupModel resolves a model ID against the store.
func (s *Service) lookupModel(ctx context.Context, modelID string) (model.Model, error) {
	models, err := s.store.Load(ctx)
	if err != nil {
		return model.Model{}, err
	}
	for _, m := range models {
		if m.ID == modelID {
			return m, nil
		}
	}
	return model.Model{}, fmt.Errorf("%w: %s", ErrModelNotFound, modelID)
}

// applyEnrichment folds a provider result into the canonical record.
// The partial carries the enriched fields; identity comes from the
// stored record so the merge engine matches them up, and the incoming
// side wins because the provider answer is fresher than ingest data.
func (s *Service) applyEnrichment(ctx context.Context, modelID string, partial model.Model) (err error) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	existing, err := s.store.Load(ctx)
	if err != nil {
		return err
	}

	found := false
	for _, m := range existing {
		if m.ID == modelID {
			partial.Name = m.Name
			partial.Provider = m.Provider
			partial.Source = m.Source
			partial.URL = m.URL
			partial.Repo = m.Repo
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrModelNotFound, modelID)
	}

	authoritative := merge.New(merge.WithAuthoritativeIncoming())
	merged, _ := authoritative.Merge(existing, []model.Model{partial})
	return s.store.Save(ctx, merged)
}

// Stats summarizes service state for the stats endpoint.
func (s *Service) Stats(ctx context.Context) map[string]any {
	s.mu.RLock()
	started := s.started
	syncing := s.syncing
	s.mu.RUnlock()

	stats := map[string]any{
		"started": started,
		"syncing": syncing,
		"sources": s.cfg.Sources,
		"tier":    s.cfg.ProviderTier,
	}
	if !started {
		return stats
	}

	if models, err := s.store.Load(ctx); err == nil {
		stats["models"] = len(models)
		flagged := 0
		for _, m := range models {
			if m.IsNSFWFlagged {
				flagged++
			}
		}
		stats["nsfw_flagged"] = flagged
	}

	if v, err := s.store.LoadMetadata(ctx, metaLastSync); err == nil {
		stats["last_sync"] = v
	} else if !errors.Is(err, repository.ErrMetadataNotFound) {
		s.logger.Warn(ctx, "read sync time", logger.Error(err))
	}

	jobs := s.scheduler.Jobs()
	byStatus := make(map[string]int, 5)
	for _, j := range jobs {
		byStatus[string(j.Status)]++
	}
	stats["jobs"] = byStatus
	stats["validation_paused"] = s.scheduler.Paused()
	stats["governor_entries"] = s.governor.Len()

	return stats
}
