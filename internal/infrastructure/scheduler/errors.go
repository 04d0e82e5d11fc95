package scheduler

import "errors"

var (
	// ErrInvalidSchedule is returned for cron expressions the parser rejects
	ErrInvalidSchedule = errors.New("invalid schedule")

	// ErrDuplicateJob is returned when a job name is registered twice
	ErrDuplicateJob = errors.New("job already registered")

	// ErrJobNotFound is returned when a job is not found
	ErrJobNotFound = errors.New("job not found")

	// ErrJobRunning is returned when a run would overlap the previous one
	ErrJobRunning = errors.New("job is already running")
)
