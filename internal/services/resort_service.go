package services

import (
	"context"
	"log/slog"
	"time"

	"tripharvest/internal/geocode"
)

// ResortStore is the persistence surface the resort service needs: the
// geocode cache plus the distinct-resort query feeding Populate.
type ResortStore interface {
	geocode.Cache
	DistinctResorts(ctx context.Context) ([]geocode.ResortQuery, error)
}

// ResortService fronts the geocode maintenance and operator-edit paths
type ResortService struct {
	engine *geocode.Engine
	store  ResortStore
	logger *slog.Logger
}

// NewResortService creates the resort maintenance facade
func NewResortService(engine *geocode.Engine, store ResortStore, logger *slog.Logger) *ResortService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResortService{
		engine: engine,
		store:  store,
		logger: logger.With(slog.String("service", "resorts")),
	}
}

// Populate rebuilds the cache from every distinct resort in the listings
func (s *ResortService) Populate(ctx context.Context) (*geocode.MaintenanceReport, error) {
	resorts, err := s.store.DistinctResorts(ctx)
	if err != nil {
		return nil, err
	}
	return s.engine.Populate(ctx, resorts)
}

// FixGeneric re-attempts entries stuck on generic centroids
func (s *ResortService) FixGeneric(ctx context.Context) (*geocode.MaintenanceReport, error) {
	return s.engine.FixGeneric(ctx)
}

// ImproveQuality re-attempts entries below the threshold
func (s *ResortService) ImproveQuality(ctx context.Context, threshold int) (*geocode.MaintenanceReport, error) {
	return s.engine.ImproveQuality(ctx, threshold)
}

// List returns every cache entry
func (s *ResortService) List(ctx context.Context) ([]geocode.CacheEntry, error) {
	return s.store.List(ctx)
}

// Verify flips the operator-verified flag on an entry. Verifying pins
// the entry at the maximal score with the manual method; unverifying
// reopens it to automatic re-resolution without touching coordinates.
func (s *ResortService) Verify(ctx context.Context, queryKey string, verified bool) (*geocode.CacheEntry, error) {
	entry, err := s.store.Get(ctx, queryKey)
	if err != nil {
		return nil, err
	}

	entry.IsVerified = verified
	if verified {
		entry.QualityScore = 100
		entry.Method = geocode.MethodManual
	}
	entry.LastUpdated = time.Now().UTC()

	if err := s.store.Put(ctx, *entry); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "entry verification changed",
		slog.String("query_key", queryKey),
		slog.Bool("verified", verified))
	return entry, nil
}

// CoordinateEdit is an operator-supplied coordinate correction
type CoordinateEdit struct {
	Coordinates      geocode.Coordinates
	FormattedAddress string
	Method           string
	QualityScore     int
	IsVerified       bool
}

// UpdateCoordinates applies an operator coordinate edit. This is the
// only externally writable path allowed to touch verified entries.
func (s *ResortService) UpdateCoordinates(ctx context.Context, queryKey string, edit CoordinateEdit) (*geocode.CacheEntry, error) {
	entry, err := s.store.Get(ctx, queryKey)
	if err != nil {
		return nil, err
	}

	entry.Coordinates = edit.Coordinates
	entry.FormattedAddress = edit.FormattedAddress
	entry.Method = edit.Method
	entry.QualityScore = edit.QualityScore
	entry.IsVerified = edit.IsVerified
	entry.LastUpdated = time.Now().UTC()

	if err := s.store.Put(ctx, *entry); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "entry coordinates edited",
		slog.String("query_key", queryKey),
		slog.Int("quality_score", edit.QualityScore))
	return entry, nil
}
