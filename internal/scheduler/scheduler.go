package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tripharvest/internal/config"
	apperrors "tripharvest/internal/errors"
	"tripharvest/internal/operations"
)

// DefaultTaskName is the task Init registers from static configuration
const DefaultTaskName = "automated_scraping"

// TaskStatus is the scheduled-task state enum
type TaskStatus string

const (
	TaskActive TaskStatus = "active"
	TaskPaused TaskStatus = "paused"
)

// Starter is the orchestrator surface the scheduler needs
type Starter interface {
	Start(ctx context.Context, trigger operations.TriggerKind, triggeredBy string, cfg operations.RunConfig) (string, error)
}

// TaskSnapshot is the externally visible view of one scheduled task
type TaskSnapshot struct {
	Name           string               `json:"name"`
	CronExpression string               `json:"cronExpression"`
	Status         TaskStatus           `json:"status"`
	LastRun        *time.Time           `json:"lastRun,omitempty"`
	NextRun        *time.Time           `json:"nextRun,omitempty"`
	Config         operations.RunConfig `json:"config"`
}

// task is the managed record behind one named cron trigger
type task struct {
	name     string
	cronExpr string
	status   TaskStatus
	lastRun  *time.Time
	nextRun  *time.Time
	config   operations.RunConfig
	timer    *time.Timer
}

// Manager owns the named cron tasks. Tasks live in process memory; Init
// reconstructs the default task from configuration after a restart.
type Manager struct {
	starter Starter
	parser  CronParser
	cfg     config.ScheduleConfig
	logger  *slog.Logger

	mu     sync.Mutex
	tasks  map[string]*task
	closed bool

	// now is swappable for tests
	now func() time.Time
}

// NewManager creates a schedule manager
func NewManager(starter Starter, parser CronParser, cfg config.ScheduleConfig, logger *slog.Logger) *Manager {
	if parser == nil {
		parser = NewCronParser()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		starter: starter,
		parser:  parser,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "scheduler")),
		tasks:   make(map[string]*task),
		now:     time.Now,
	}
}

// Init registers the default automated task when scheduling is enabled
// by configuration; otherwise it is a no-op.
func (m *Manager) Init(ctx context.Context) error {
	if !m.cfg.Enabled {
		m.logger.InfoContext(ctx, "scheduling disabled by configuration")
		return nil
	}
	if err := m.ScheduleTask(DefaultTaskName, m.cfg.CronExpr, operations.RunConfig{}); err != nil {
		return fmt.Errorf("registering default task: %w", err)
	}
	m.logger.InfoContext(ctx, "default task registered",
		slog.String("task", DefaultTaskName),
		slog.String("cron", m.cfg.CronExpr))
	return nil
}

// ScheduleTask adds or atomically replaces a named cron task. The
// expression is validated before any existing task is touched; on
// replacement the old timer is stopped before the new one starts.
func (m *Manager) ScheduleTask(name, cronExpr string, cfg operations.RunConfig) error {
	if err := m.parser.Validate(cronExpr); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("scheduler is shut down")
	}

	var lastRun *time.Time
	if old, ok := m.tasks[name]; ok {
		m.stopTimerLocked(old)
		lastRun = old.lastRun
	}

	t := &task{
		name:     name,
		cronExpr: cronExpr,
		status:   TaskActive,
		lastRun:  lastRun,
		config:   cfg,
	}
	m.tasks[name] = t
	m.armTimerLocked(t)
	return nil
}

// RemoveTask deletes a task and stops its timer. Returns false if absent.
func (m *Manager) RemoveTask(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[name]
	if !ok {
		return false
	}
	m.stopTimerLocked(t)
	delete(m.tasks, name)
	return true
}

// PauseTask stops a task's timer without losing its config or history
func (m *Manager) PauseTask(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[name]
	if !ok {
		return false
	}
	if t.status == TaskActive {
		m.stopTimerLocked(t)
		t.status = TaskPaused
		t.nextRun = nil
	}
	return true
}

// ResumeTask re-arms a paused task; the next matching tick fires normally
func (m *Manager) ResumeTask(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[name]
	if !ok {
		return false
	}
	if t.status == TaskPaused {
		t.status = TaskActive
		m.armTimerLocked(t)
	}
	return true
}

// UpdateTaskSchedule swaps a task's cron expression, preserving its
// config and history. An invalid expression leaves the task unchanged.
func (m *Manager) UpdateTaskSchedule(name, cronExpr string) error {
	if err := m.parser.Validate(cronExpr); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[name]
	if !ok {
		return apperrors.ErrTaskNotFound
	}

	m.stopTimerLocked(t)
	t.cronExpr = cronExpr
	if t.status == TaskActive {
		m.armTimerLocked(t)
	}
	return nil
}

// Tasks returns snapshots of every managed task
func (m *Manager) Tasks() []TaskSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snaps := make([]TaskSnapshot, 0, len(m.tasks))
	for _, t := range m.tasks {
		snaps = append(snaps, m.snapshotLocked(t))
	}
	return snaps
}

// Task returns the snapshot of one task
func (m *Manager) Task(name string) (TaskSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[name]
	if !ok {
		return TaskSnapshot{}, false
	}
	return m.snapshotLocked(t), true
}

// Shutdown stops and disposes every managed timer. Idempotent.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	for _, t := range m.tasks {
		m.stopTimerLocked(t)
	}
}

// fire runs when a task's timer elapses. A fire that finds an operation
// already running is dropped, never queued: scheduled runs must not pile
// up behind a slow manual run.
func (m *Manager) fire(name string) {
	m.mu.Lock()
	t, ok := m.tasks[name]
	if !ok || m.closed || t.status != TaskActive {
		m.mu.Unlock()
		return
	}
	cfg := t.config
	m.mu.Unlock()

	ctx := context.Background()
	_, err := m.starter.Start(ctx, operations.TriggerScheduled, "", cfg)
	switch {
	case err == nil:
		// Only a fire that actually started a run counts as the last run.
		now := m.now().UTC()
		m.mu.Lock()
		if cur, still := m.tasks[name]; still && cur == t {
			t.lastRun = &now
		}
		m.mu.Unlock()
	case errors.Is(err, apperrors.ErrAlreadyRunning):
		m.logger.InfoContext(ctx, "scheduled fire skipped, operation in progress",
			slog.String("task", name))
	default:
		m.logger.ErrorContext(ctx, "scheduled fire failed",
			slog.String("task", name),
			slog.String("error", err.Error()))
	}

	m.mu.Lock()
	if cur, still := m.tasks[name]; still && cur == t && !m.closed && t.status == TaskActive {
		m.armTimerLocked(t)
	}
	m.mu.Unlock()
}

// armTimerLocked computes the next fire time and starts the timer.
// Callers hold m.mu.
func (m *Manager) armTimerLocked(t *task) {
	next, err := m.parser.Next(t.cronExpr, m.now())
	if err != nil {
		// Expression was validated at schedule time; treat as paused
		m.logger.Error("next fire computation failed",
			slog.String("task", t.name),
			slog.String("error", err.Error()))
		t.status = TaskPaused
		return
	}
	t.nextRun = &next

	name := t.name
	t.timer = time.AfterFunc(time.Until(next), func() {
		m.fire(name)
	})
}

// stopTimerLocked stops and disposes the task's timer so a paused or
// replaced task consumes no resources. Callers hold m.mu.
func (m *Manager) stopTimerLocked(t *task) {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (m *Manager) snapshotLocked(t *task) TaskSnapshot {
	snap := TaskSnapshot{
		Name:           t.name,
		CronExpression: t.cronExpr,
		Status:         t.status,
		Config:         t.config,
	}
	if t.lastRun != nil {
		lr := *t.lastRun
		snap.LastRun = &lr
	}
	if t.nextRun != nil {
		nr := *t.nextRun
		snap.NextRun = &nr
	}
	return snap
}
