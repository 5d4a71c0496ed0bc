package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/corralhq/corral/internal/seeder"
)

// Default configuration constants.
const (
	defaultNumModels   = 500
	defaultBatchSize   = 50
	defaultTimeout     = 30 * time.Second
	defaultSeed        = 42
	defaultRunDeadline = 10 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numModels = flag.Int("models", defaultNumModels, "Number of models to generate and import")
		batchSize = flag.Int("batch", defaultBatchSize, "Models per import request")
		workers   = flag.Int("workers", runtime.NumCPU(), "Number of concurrent workers")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed      = flag.Int64("seed", defaultSeed, "Random seed for reproducible runs")
		logFile   = flag.String("log", "", "Log file for seeding output (default: seed_log_TIMESTAMP.log)")
		verbose   = flag.Bool("verbose", false, "Enable verbose logging")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		seeder.ShowHelp()
		return
	}

	if err := seeder.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunDeadline)
	defer cancel()

	config := &seeder.Config{
		BaseURL:   *baseURL,
		NumModels: *numModels,
		BatchSize: *batchSize,
		Workers:   *workers,
		Timeout:   *timeout,
		Seed:      *seed,
		LogFile:   *logFile,
		Verbose:   *verbose,
	}

	if err := seeder.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Seeding failed: " + err.Error() + "\n")
		return
	}
}
