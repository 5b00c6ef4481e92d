package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// JobState represents the current state of a scheduled job.
type JobState int

const (
	JobIdle JobState = iota
	JobRunning
	JobError
)

func (s JobState) String() string {
	switch s {
	case JobRunning:
		return "running"
	case JobError:
		return "error"
	default:
		return "idle"
	}
}

// ErrJobRunning is returned by Trigger when the job is already executing.
var ErrJobRunning = errors.New("job is already running")

// Job is a named pipeline run on a cron schedule. Run returns a one-line
// description of the outcome.
type Job struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context) (string, error)
}

// JobStatus holds the run state of a single job.
type JobStatus struct {
	Name       string
	Spec       string
	State      JobState
	LastRun    time.Time
	LastResult string
	Error      error
	Runs       int
	Skipped    int
	Next       time.Time
}

type jobEntry struct {
	job     Job
	entryID cron.EntryID
	status  *JobStatus
}

// Scheduler runs registered jobs on their schedules and never runs two
// instances of the same job at once.
type Scheduler struct {
	cron    *cron.Cron
	parser  cron.Parser
	jobs    map[string]*jobEntry
	logger  *zap.Logger
	now     func() time.Time
	rootCtx context.Context

	mu        sync.Mutex
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithLocation sets the time zone schedules are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.cron = cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
		}
	}
}

// WithClock overrides the clock used for status timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a scheduler. Specs take six fields, seconds first, or a
// descriptor such as "@every 10m".
func New(logger *zap.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	s := &Scheduler{
		parser:  parser,
		cron:    cron.New(cron.WithParser(parser)),
		jobs:    make(map[string]*jobEntry),
		logger:  logger,
		now:     time.Now,
		rootCtx: context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register validates the job's schedule and adds it.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("job needs a name and a run function")
	}
	schedule, err := s.parser.Parse(job.Spec)
	if err != nil {
		return fmt.Errorf("parsing schedule %q of job %s: %w", job.Spec, job.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %s is already registered", job.Name)
	}

	name := job.Name
	entry := &jobEntry{
		job:    job,
		status: &JobStatus{Name: job.Name, Spec: job.Spec, State: JobIdle},
	}
	entry.entryID = s.cron.Schedule(schedule, cron.FuncJob(func() {
		if _, err := s.execute(name); errors.Is(err, ErrJobRunning) {
			s.logger.Warn("skipping scheduled run, previous run still active", zap.String("job", name))
		}
	}))
	s.jobs[name] = entry
	return nil
}

// Run starts the schedule and blocks until ctx is cancelled, then waits
// for in-flight jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.startOnce.Do(func() {
		s.mu.Lock()
		s.rootCtx = ctx
		s.mu.Unlock()
		s.cron.Start()
		s.logger.Info("scheduler started", zap.Int("jobs", len(s.Statuses())))
	})

	<-ctx.Done()
	s.stop()
	return nil
}

func (s *Scheduler) stop() {
	s.stopOnce.Do(func() {
		<-s.cron.Stop().Done()
		s.wg.Wait()
		s.logger.Info("scheduler stopped")
	})
}

// Trigger runs a job immediately in the calling goroutine.
func (s *Scheduler) Trigger(name string) (string, error) {
	return s.execute(name)
}

// Statuses returns a snapshot of every job, sorted by name.
func (s *Scheduler) Statuses() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, entry := range s.jobs {
		st := *entry.status
		if e := s.cron.Entry(entry.entryID); e.ID != 0 {
			st.Next = e.Next
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) execute(name string) (string, error) {
	entry, ctx, ok := s.begin(name)
	if entry == nil {
		return "", fmt.Errorf("unknown job %s", name)
	}
	if !ok {
		return "", ErrJobRunning
	}
	defer s.wg.Done()

	jobCtx := ctx
	var cancel context.CancelFunc
	if entry.job.Timeout > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, entry.job.Timeout)
	}

	var (
		result string
		runErr error
	)
	func() {
		defer func() {
			if cancel != nil {
				cancel()
			}
			if r := recover(); r != nil {
				runErr = fmt.Errorf("panic: %v", r)
			}
		}()
		result, runErr = entry.job.Run(jobCtx)
	}()

	s.finish(entry, result, runErr)
	return result, runErr
}

// begin marks a job running unless it already is.
func (s *Scheduler) begin(name string) (*jobEntry, context.Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.jobs[name]
	if !ok {
		return nil, nil, false
	}
	if entry.status.State == JobRunning {
		entry.status.Skipped++
		return entry, nil, false
	}
	entry.status.State = JobRunning
	s.wg.Add(1)
	return entry, s.rootCtx, true
}

func (s *Scheduler) finish(entry *jobEntry, result string, runErr error) {
	s.mu.Lock()
	st := entry.status
	st.LastRun = s.now()
	st.LastResult = result
	st.Error = runErr
	st.Runs++
	if runErr != nil {
		st.State = JobError
	} else {
		st.State = JobIdle
	}
	s.mu.Unlock()

	if runErr != nil {
		s.logger.Error("job failed", zap.String("job", entry.job.Name), zap.Error(runErr))
		return
	}
	s.logger.Info("job finished", zap.String("job", entry.job.Name), zap.String("result", result))
}
