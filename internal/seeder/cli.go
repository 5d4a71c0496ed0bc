package seeder

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/corralhq/corral/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "seed_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the seeding tool.
func ShowHelp() {
	os.Stdout.WriteString(`Corral Catalog Seeder
=====================

Generates synthetic model records and imports them into a running
catalog instance, then verifies the catalog grew accordingly.

Usage:
  go run cmd/seed-models/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -models int
        Number of models to generate and import (default 500)
  -batch int
        Models per import request (default 50)
  -workers int
        Number of concurrent workers (default CPU cores)
  -timeout duration
        HTTP request timeout (default 30s)
  -seed int
        Random seed for reproducible runs (default 42)
  -log string
        Log file for seeding output (default: seed_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Seed with default settings
  go run cmd/seed-models/main.go

  # Seed a larger catalog with more workers
  go run cmd/seed-models/main.go -models 5000 -workers 8 -url http://localhost:8080
`)
}
