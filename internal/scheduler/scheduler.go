// Package scheduler runs the daemon's periodic housekeeping tasks.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/quantumlife/hearth/internal/core"
	"github.com/quantumlife/hearth/internal/logging"
)

// DefaultTimeout bounds a single run when a task sets none.
const DefaultTimeout = 5 * time.Minute

// TaskHandler is the function executed for a task
type TaskHandler func(ctx context.Context) error

// Task is a handler run on a fixed interval.
type Task struct {
	ID       string
	Interval time.Duration
	Timeout  time.Duration
	// RunAtStart runs the handler once before the first tick.
	RunAtStart bool
	Handler    TaskHandler
}

// TaskStatus reports what a task has done so far.
type TaskStatus struct {
	ID         string     `json:"id"`
	Interval   string     `json:"interval"`
	LastRun    *time.Time `json:"last_run,omitempty"`
	RunCount   int64      `json:"run_count"`
	ErrorCount int64      `json:"error_count"`
	LastError  string     `json:"last_error,omitempty"`
}

type entry struct {
	task   Task
	status TaskStatus
}

// Scheduler manages scheduled tasks
type Scheduler struct {
	mu      sync.RWMutex
	tasks   map[string]*entry
	started bool
	logger  *logging.Logger
}

// New creates an empty scheduler.
func New(logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{
		tasks:  make(map[string]*entry),
		logger: logger.WithField("component", "scheduler"),
	}
}

// Register adds a task. Tasks must be registered before Run.
func (s *Scheduler) Register(task Task) error {
	if task.ID == "" {
		return fmt.Errorf("%w: task ID", core.ErrMissingRequired)
	}
	if task.Handler == nil {
		return fmt.Errorf("%w: task handler", core.ErrMissingRequired)
	}
	if task.Interval <= 0 {
		return fmt.Errorf("%w: task %s interval must be positive", core.ErrInvalidInput, task.ID)
	}
	if task.Timeout <= 0 {
		task.Timeout = DefaultTimeout
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("scheduler already started")
	}
	if _, ok := s.tasks[task.ID]; ok {
		return fmt.Errorf("%w: duplicate task %s", core.ErrInvalidInput, task.ID)
	}
	s.tasks[task.ID] = &entry{
		task:   task,
		status: TaskStatus{ID: task.ID, Interval: task.Interval.String()},
	}
	return nil
}

// Run runs every task on its interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}
	s.started = true
	entries := make([]*entry, 0, len(s.tasks))
	for _, e := range s.tasks {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func(e *entry) {
			defer wg.Done()
			s.loop(ctx, e)
		}(e)
	}
	wg.Wait()
	return nil
}

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	if e.task.RunAtStart {
		s.execute(ctx, e)
	}

	ticker := time.NewTicker(e.task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.execute(ctx, e)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, e *entry) {
	execCtx, cancel := context.WithTimeout(ctx, e.task.Timeout)
	defer cancel()

	start := time.Now()
	err := s.safeRun(execCtx, e.task)

	s.mu.Lock()
	e.status.LastRun = &start
	e.status.RunCount++
	if err != nil {
		e.status.ErrorCount++
		e.status.LastError = err.Error()
	} else {
		e.status.LastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("Task %s failed: %v", e.task.ID, err)
	}
}

func (s *Scheduler) safeRun(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return task.Handler(ctx)
}

// Tasks returns the status of every task, sorted by ID.
func (s *Scheduler) Tasks() []TaskStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TaskStatus, 0, len(s.tasks))
	for _, e := range s.tasks {
		st := e.status
		if st.LastRun != nil {
			t := *st.LastRun
			st.LastRun = &t
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
