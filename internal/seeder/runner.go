package seeder

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/corralhq/corral/internal/domain/model"
	"github.com/corralhq/corral/pkg/logger"
)

// importResponse mirrors the POST /models/import reply.
type importResponse struct {
	Added      int `json:"added"`
	Updated    int `json:"updated"`
	Duplicates int `json:"duplicates"`
}

// listResponse mirrors the GET /models reply.
type listResponse struct {
	Count int `json:"count"`
}

// Run generates synthetic models and pushes them into a running catalog
// through its import endpoint, then verifies the catalog grew.
func Run(ctx context.Context, cfg *Config) error {
	cfg.withDefaults()
	start := time.Now()

	log := logger.Get()
	log.Info(ctx, "starting catalog seeding",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("models", cfg.NumModels),
		logger.Int("batchSize", cfg.BatchSize),
		logger.Int("workers", cfg.Workers),
		logger.String("timeout", cfg.Timeout.String()))

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "corral-seeder/1.0")

	if err := checkHealth(ctx, client); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	models := NewGenerator(cfg.Seed).Generate(cfg.NumModels)
	log.Info(ctx, "generated synthetic models", logger.Int("count", len(models)))

	before, err := catalogCount(ctx, client)
	if err != nil {
		return fmt.Errorf("catalog count failed: %w", err)
	}

	stats, err := submitBatches(ctx, cfg, client, models)
	if err != nil {
		return fmt.Errorf("batch submission failed: %w", err)
	}

	after, err := catalogCount(ctx, client)
	if err != nil {
		return fmt.Errorf("catalog count failed: %w", err)
	}
	if grown := after - before; grown != stats.Added {
		log.Warn(ctx, "catalog growth does not match reported additions",
			logger.Int("reported", stats.Added),
			logger.Int("observed", grown))
	}

	stats.Elapsed = time.Since(start)
	log.Info(ctx, "seeding complete",
		logger.Int("batches", stats.Batches),
		logger.Int("added", stats.Added),
		logger.Int("updated", stats.Updated),
		logger.Int("duplicates", stats.Duplicates),
		logger.Int("failed", stats.Failed),
		logger.String("elapsed", stats.Elapsed.String()))

	if stats.Failed > 0 {
		return fmt.Errorf("%d of %d batches failed", stats.Failed, stats.Batches)
	}
	return nil
}

// checkHealth verifies the service is reachable before seeding.
func checkHealth(ctx context.Context, client *resty.Client) error {
	resp, err := client.R().SetContext(ctx).Get("/healthz")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("unexpected health status %d", resp.StatusCode())
	}
	return nil
}

// catalogCount returns the number of models the catalog currently lists.
func catalogCount(ctx context.Context, client *resty.Client) (int, error) {
	var list listResponse
	resp, err := client.R().SetContext(ctx).SetResult(&list).Get("/models")
	if err != nil {
		return 0, err
	}
	if resp.IsError() {
		return 0, fmt.Errorf("unexpected list status %d", resp.StatusCode())
	}
	return list.Count, nil
}

// submitBatches feeds model batches to a pool of workers and aggregates
// the merge reports they get back.
func submitBatches(ctx context.Context, cfg *Config, client *resty.Client, models []model.Model) (*Stats, error) {
	batches := make(chan []model.Model, cfg.Workers)
	var (
		added, updated, duplicates, failed atomic.Int64
		wg                                 sync.WaitGroup
	)

	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range batches {
				rep, err := submitBatch(ctx, client, batch)
				if err != nil {
					failed.Add(1)
					logger.Get().Warn(ctx, "batch submission failed",
						logger.Int("size", len(batch)), logger.Error(err))
					continue
				}
				added.Add(int64(rep.Added))
				updated.Add(int64(rep.Updated))
				duplicates.Add(int64(rep.Duplicates))
				if cfg.Verbose {
					logger.Get().Info(ctx, "batch accepted",
						logger.Int("added", rep.Added),
						logger.Int("updated", rep.Updated),
						logger.Int("duplicates", rep.Duplicates))
				}
			}
		}()
	}

	total := 0
	for i := 0; i < len(models); i += cfg.BatchSize {
		end := i + cfg.BatchSize
		if end > len(models) {
			end = len(models)
		}
		select {
		case batches <- models[i:end]:
			total++
		case <-ctx.Done():
			close(batches)
			wg.Wait()
			return nil, ctx.Err()
		}
	}
	close(batches)
	wg.Wait()

	return &Stats{
		Batches:    total,
		Added:      int(added.Load()),
		Updated:    int(updated.Load()),
		Duplicates: int(duplicates.Load()),
		Failed:     int(failed.Load()),
	}, nil
}

func submitBatch(ctx context.Context, client *resty.Client, batch []model.Model) (*importResponse, error) {
	var rep importResponse
	resp, err := client.R().
		SetContext(ctx).
		SetBody(map[string]any{"models": batch}).
		SetResult(&rep).
		Post("/models/import")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("unexpected import status %d: %s", resp.StatusCode(), resp.String())
	}
	return &rep, nil
}
