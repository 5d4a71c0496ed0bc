package scheduler

import "errors"

// Sentinel kinds for scheduler errors.
var (
	ErrQueueFull       = errors.New("validation queue is full")
	ErrSchedulerClosed = errors.New("scheduler is closed")
	ErrJobNotFound     = errors.New("job not found")
)
