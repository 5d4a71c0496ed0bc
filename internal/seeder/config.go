package seeder

import "time"

// Default seeding configuration constants.
const (
	defaultNumModels = 500
	defaultBatchSize = 50
	defaultWorkers   = 4
	defaultTimeout   = 30 * time.Second
	defaultSeed      = 42
)

// Config controls a seeding run.
type Config struct {
	BaseURL   string
	NumModels int
	BatchSize int
	Workers   int
	Timeout   time.Duration
	Seed      int64
	LogFile   string
	Verbose   bool
}

// withDefaults fills unset fields.
func (c *Config) withDefaults() {
	if c.NumModels <= 0 {
		c.NumModels = defaultNumModels
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.Seed == 0 {
		c.Seed = defaultSeed
	}
}

// Stats summarizes a seeding run.
type Stats struct {
	Batches    int
	Added      int
	Updated    int
	Duplicates int
	Failed     int
	Elapsed    time.Duration
}
