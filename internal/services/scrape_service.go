// Package services hosts the thin facades the HTTP layer consumes, so
// transport stays decoupled from the orchestrator and scheduler wiring.
package services

import (
	"context"
	"log/slog"

	"tripharvest/internal/operations"
	"tripharvest/internal/scheduler"
)

// ScrapeService fronts the orchestrator and schedule manager for the
// scraping control endpoints.
type ScrapeService struct {
	orchestrator *operations.Orchestrator
	schedule     *scheduler.Manager
	logger       *slog.Logger
}

// NewScrapeService creates the scraping facade
func NewScrapeService(orch *operations.Orchestrator, sched *scheduler.Manager, logger *slog.Logger) *ScrapeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScrapeService{
		orchestrator: orch,
		schedule:     sched,
		logger:       logger.With(slog.String("service", "scrape")),
	}
}

// Start launches a harvest operation
func (s *ScrapeService) Start(ctx context.Context, trigger operations.TriggerKind, triggeredBy string, cfg operations.RunConfig) (string, error) {
	return s.orchestrator.Start(ctx, trigger, triggeredBy, cfg)
}

// Status returns the live or historical snapshot for an operation
func (s *ScrapeService) Status(ctx context.Context, id string) (*operations.Snapshot, error) {
	return s.orchestrator.Status(ctx, id)
}

// Cancel requests cooperative cancellation
func (s *ScrapeService) Cancel(ctx context.Context, id string) error {
	return s.orchestrator.Cancel(ctx, id)
}

// Logs pages persisted operation logs
func (s *ScrapeService) Logs(ctx context.Context, filter operations.LogFilter) ([]*operations.Snapshot, int, error) {
	return s.orchestrator.List(ctx, filter)
}

// CronStatus returns every managed scheduled task
func (s *ScrapeService) CronStatus() []scheduler.TaskSnapshot {
	return s.schedule.Tasks()
}

// ScheduleCron sets a task's cron expression, preserving config and
// history when the task already exists.
func (s *ScrapeService) ScheduleCron(name, cronExpr string) error {
	if _, exists := s.schedule.Task(name); exists {
		return s.schedule.UpdateTaskSchedule(name, cronExpr)
	}
	return s.schedule.ScheduleTask(name, cronExpr, operations.RunConfig{})
}

// PauseCron pauses a named task; false when absent
func (s *ScrapeService) PauseCron(name string) bool {
	return s.schedule.PauseTask(name)
}

// ResumeCron resumes a named task; false when absent
func (s *ScrapeService) ResumeCron(name string) bool {
	return s.schedule.ResumeTask(name)
}
