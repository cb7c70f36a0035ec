// Package http hosts the chi handlers exposing the harvest control
// surface. Authentication/authorization middleware is layered on from
// outside; these handlers define the contract that layer fronts.
package http

import (
	"context"

	"tripharvest/internal/geocode"
	"tripharvest/internal/operations"
	"tripharvest/internal/scheduler"
	"tripharvest/internal/services"
)

// ScrapeServiceInterface is the scraping-control surface handlers need.
// Satisfied by services.ScrapeService; tests substitute mocks.
type ScrapeServiceInterface interface {
	Start(ctx context.Context, trigger operations.TriggerKind, triggeredBy string, cfg operations.RunConfig) (string, error)
	Status(ctx context.Context, id string) (*operations.Snapshot, error)
	Cancel(ctx context.Context, id string) error
	Logs(ctx context.Context, filter operations.LogFilter) ([]*operations.Snapshot, int, error)
	CronStatus() []scheduler.TaskSnapshot
	ScheduleCron(name, cronExpr string) error
	PauseCron(name string) bool
	ResumeCron(name string) bool
}

// ResortServiceInterface is the geocode maintenance surface.
// Satisfied by services.ResortService.
type ResortServiceInterface interface {
	Populate(ctx context.Context) (*geocode.MaintenanceReport, error)
	FixGeneric(ctx context.Context) (*geocode.MaintenanceReport, error)
	ImproveQuality(ctx context.Context, threshold int) (*geocode.MaintenanceReport, error)
	List(ctx context.Context) ([]geocode.CacheEntry, error)
	Verify(ctx context.Context, queryKey string, verified bool) (*geocode.CacheEntry, error)
	UpdateCoordinates(ctx context.Context, queryKey string, edit services.CoordinateEdit) (*geocode.CacheEntry, error)
}
