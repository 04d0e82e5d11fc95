package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// JobStatus is the outcome of a job's most recent run
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// JobFunc is the work a named job performs
type JobFunc func(ctx context.Context) error

// JobInfo describes a registered job
type JobInfo struct {
	Name         string        `json:"name"`
	Schedule     string        `json:"schedule"`
	Status       JobStatus     `json:"status"`
	NextRunAt    time.Time     `json:"next_run_at"`
	LastRunAt    *time.Time    `json:"last_run_at,omitempty"`
	LastDuration time.Duration `json:"last_duration"`
	LastError    string        `json:"last_error,omitempty"`
	Runs         int64         `json:"runs"`
	Failures     int64         `json:"failures"`
	Skipped      int64         `json:"skipped"`
}

// Config holds scheduler configuration
type Config struct {
	// JobTimeout bounds a single run. Zero means no timeout.
	JobTimeout time.Duration
	// Location for cron expressions. Defaults to UTC.
	Location *time.Location
}

type job struct {
	name    string
	spec    string
	fn      JobFunc
	entryID cron.EntryID
	running atomic.Bool

	mu           sync.Mutex
	status       JobStatus
	lastRunAt    *time.Time
	lastDuration time.Duration
	lastError    string
	runs         int64
	failures     int64
	skipped      int64
}

// CronScheduler runs named jobs on cron schedules. A job whose previous run
// is still in progress is skipped rather than started twice.
type CronScheduler struct {
	cron    *cron.Cron
	config  Config
	logger  *zap.Logger
	now     func() time.Time
	rootCtx context.Context
	cancel  context.CancelFunc

	mu        sync.Mutex
	jobs      map[string]*job
	isRunning bool
	inFlight  sync.WaitGroup
}

// NewCronScheduler creates a stopped scheduler
func NewCronScheduler(config Config, logger *zap.Logger) *CronScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	logger = logger.Named("scheduler")
	ctx, cancel := context.WithCancel(context.Background())
	return &CronScheduler{
		cron: cron.New(
			cron.WithParser(Parser),
			cron.WithLocation(config.Location),
			cron.WithLogger(cronLogger{logger.Sugar()}),
		),
		config:  config,
		logger:  logger,
		now:     time.Now,
		rootCtx: ctx,
		cancel:  cancel,
		jobs:    make(map[string]*job),
	}
}

// Parser accepts 5-field cron expressions and descriptors such as @hourly
var Parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSpec reports whether spec is a schedule the scheduler accepts
func ValidateSpec(spec string) error {
	if _, err := Parser.Parse(spec); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, spec, err)
	}
	return nil
}

// Register adds a named job. Names are unique.
func (s *CronScheduler) Register(name, spec string, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}
	return s.addLocked(name, spec, fn)
}

// Replace registers the job, first removing any job with the same name
func (s *CronScheduler) Replace(name, spec string, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.jobs[name]; ok {
		s.cron.Remove(existing.entryID)
		delete(s.jobs, name)
	}
	return s.addLocked(name, spec, fn)
}

func (s *CronScheduler) addLocked(name, spec string, fn JobFunc) error {
	if err := ValidateSpec(spec); err != nil {
		return err
	}
	j := &job{name: name, spec: spec, fn: fn, status: JobStatusPending}
	id, err := s.cron.AddFunc(spec, func() { s.run(s.rootCtx, j) })
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, spec, err)
	}
	j.entryID = id
	s.jobs[name] = j
	s.logger.Debug("job registered", zap.String("job", name), zap.String("schedule", spec))
	return nil
}

// Remove unregisters a job. It reports whether the job existed.
func (s *CronScheduler) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[name]
	if !ok {
		return false
	}
	s.cron.Remove(j.entryID)
	delete(s.jobs, name)
	return true
}

// Schedule returns the spec of a registered job
func (s *CronScheduler) Schedule(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[name]; ok {
		return j.spec, true
	}
	return "", false
}

// RunNow runs a job immediately in the caller's goroutine. It returns
// ErrJobRunning when the job is already in progress.
func (s *CronScheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.run(ctx, j)
}

// Jobs lists the registered jobs sorted by name
func (s *CronScheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		j.mu.Lock()
		info := JobInfo{
			Name:         j.name,
			Schedule:     j.spec,
			Status:       j.status,
			NextRunAt:    s.cron.Entry(j.entryID).Next,
			LastRunAt:    j.lastRunAt,
			LastDuration: j.lastDuration,
			LastError:    j.lastError,
			Runs:         j.runs,
			Failures:     j.failures,
			Skipped:      j.skipped,
		}
		j.mu.Unlock()
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, k int) bool { return infos[i].Name < infos[k].Name })
	return infos
}

// Start begins firing jobs on their schedules
func (s *CronScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}
	s.isRunning = true
	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.Int("jobs", len(s.jobs)),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
}

// Stop stops firing new runs, cancels running ones and waits for them to
// return or for ctx to expire
func (s *CronScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	cronDone := s.cron.Stop()
	s.cancel()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *CronScheduler) run(parent context.Context, j *job) (err error) {
	if !j.running.CompareAndSwap(false, true) {
		j.mu.Lock()
		j.skipped++
		j.mu.Unlock()
		s.logger.Warn("previous run still in progress, skipping", zap.String("job", j.name))
		return fmt.Errorf("%w: %s", ErrJobRunning, j.name)
	}
	defer j.running.Store(false)

	s.inFlight.Add(1)
	defer s.inFlight.Done()

	ctx := parent
	if s.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, s.config.JobTimeout)
		defer cancel()
	}

	started := s.now()
	j.mu.Lock()
	j.status = JobStatusRunning
	j.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", j.name, r)
		}
		s.finish(j, started, err)
	}()

	return j.fn(ctx)
}

func (s *CronScheduler) finish(j *job, started time.Time, err error) {
	elapsed := s.now().Sub(started)

	j.mu.Lock()
	j.runs++
	j.lastRunAt = &started
	j.lastDuration = elapsed
	if err != nil {
		j.failures++
		j.status = JobStatusFailed
		j.lastError = err.Error()
	} else {
		j.status = JobStatusSuccess
		j.lastError = ""
	}
	j.mu.Unlock()

	if err != nil {
		s.logger.Error("job failed", zap.String("job", j.name), zap.Duration("duration", elapsed), zap.Error(err))
		return
	}
	s.logger.Info("job completed", zap.String("job", j.name), zap.Duration("duration", elapsed))
}

// cronLogger routes robfig/cron's own logging into zap
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
