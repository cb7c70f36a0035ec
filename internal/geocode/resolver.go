package geocode

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"tripharvest/internal/config"
	apperrors "tripharvest/internal/errors"
	"tripharvest/internal/infrastructure"
)

// Engine resolves (resortName, island) pairs to scored coordinates.
// External calls are rate limited; the shared limiter is the single
// throttle for the geocoding endpoint process-wide.
type Engine struct {
	cache    Cache
	geocoder Geocoder
	limiter  *rate.Limiter
	logger   *slog.Logger
	metrics  *infrastructure.HarvestMetrics
	cfg      config.GeocodeConfig
}

// NewEngine creates a resolution engine
func NewEngine(cache Cache, geocoder Geocoder, cfg config.GeocodeConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	delay := cfg.RequestDelay
	if delay <= 0 {
		delay = 1500 * time.Millisecond
	}
	return &Engine{
		cache:    cache,
		geocoder: geocoder,
		limiter:  rate.NewLimiter(rate.Every(delay), 1),
		logger:   logger.With(slog.String("component", "geocode")),
		cfg:      cfg,
	}
}

// SetMetrics attaches the harvest instruments. Optional; the engine is
// fully functional without them.
func (e *Engine) SetMetrics(m *infrastructure.HarvestMetrics) {
	e.metrics = m
}

// Resolve turns a raw resort name and island into a scored coordinate.
//
// Returns (nil, nil) when every query template is exhausted without a
// candidate reaching the quality floor; exhaustion is an outcome, not an
// error. A verified or maximal-score cache hit is returned unchanged
// without touching the external geocoder.
func (e *Engine) Resolve(ctx context.Context, resortRaw, island, addressHint string) (*Resolution, error) {
	resortName := NormalizeResortName(resortRaw)
	if resortName == "" || NormalizeIsland(island) == "" {
		return nil, nil
	}
	key := QueryKey(resortRaw, island)

	cached, err := e.cache.Get(ctx, key)
	if err == nil && cached != nil {
		if cached.IsVerified || cached.QualityScore == 100 {
			e.countCacheHit(ctx)
			return &Resolution{
				Coordinates:      cached.Coordinates,
				FormattedAddress: cached.FormattedAddress,
				QualityScore:     cached.QualityScore,
				Method:           cached.Method,
			}, nil
		}
	}
	e.countCacheMiss(ctx)

	best, err := e.runQueries(ctx, buildQueries(resortName, island, addressHint), resortName, island)
	if err != nil {
		return nil, err
	}
	if best == nil {
		e.logger.InfoContext(ctx, "resolution exhausted all queries",
			slog.String("resort", resortName),
			slog.String("island", island))
		return nil, nil
	}

	entry := CacheEntry{
		QueryKey:         key,
		ResortName:       resortName,
		Island:           NormalizeIsland(island),
		Coordinates:      best.Coordinates,
		FormattedAddress: best.FormattedAddress,
		QualityScore:     best.QualityScore,
		Method:           best.Method,
		LastUpdated:      time.Now().UTC(),
	}
	if err := e.cache.Upsert(ctx, entry); err != nil {
		return nil, apperrors.NewPersistenceError("geocode cache upsert", err)
	}

	return best, nil
}

// runQueries executes the fan-out in order, keeping the best-scoring
// candidate and short-circuiting once one is good enough. A single
// query's failure moves on to the next template.
func (e *Engine) runQueries(ctx context.Context, queries []geocodeQuery, resortName, island string) (*Resolution, error) {
	var best *Resolution

	for _, q := range queries {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		candidates, err := e.geocoder.Geocode(ctx, q.text)
		if err != nil {
			e.logger.WarnContext(ctx, "geocode query failed",
				slog.String("query", q.text),
				slog.String("error", err.Error()))
			continue
		}

		for _, cand := range candidates {
			score := ScoreCandidate(cand, resortName, island)
			if score < e.qualityFloor() {
				continue
			}
			if best == nil || score > best.QualityScore {
				best = &Resolution{
					Coordinates:      cand.Coordinates,
					FormattedAddress: cand.DisplayName,
					QualityScore:     score,
					Method:           q.method,
				}
			}
		}

		if best != nil && best.QualityScore >= e.goodEnough() {
			break
		}
	}

	return best, nil
}

func (e *Engine) qualityFloor() int {
	if e.cfg.QualityFloor > 0 {
		return e.cfg.QualityFloor
	}
	return 20
}

func (e *Engine) goodEnough() int {
	if e.cfg.GoodEnoughScore > 0 {
		return e.cfg.GoodEnoughScore
	}
	return 60
}

func (e *Engine) improveThreshold() int {
	if e.cfg.ImproveThreshold > 0 {
		return e.cfg.ImproveThreshold
	}
	return 15
}

func (e *Engine) countCacheHit(ctx context.Context) {
	if e.metrics != nil {
		e.metrics.GeocodeCacheHits.Add(ctx, 1)
	}
}

func (e *Engine) countCacheMiss(ctx context.Context) {
	if e.metrics != nil {
		e.metrics.GeocodeCacheMisses.Add(ctx, 1)
	}
}
