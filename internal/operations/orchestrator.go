package operations

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"tripharvest/internal/config"
	apperrors "tripharvest/internal/errors"
	"tripharvest/internal/infrastructure"
	"tripharvest/internal/sources"
)

// RunConfig carries the per-run knobs a trigger may override. Zero
// fields fall back to the configured defaults.
type RunConfig struct {
	Sources          []string      `json:"sources,omitempty"`
	TimeoutPerSource time.Duration `json:"timeoutPerSource,omitempty"`
	RetryAttempts    int           `json:"retryAttempts,omitempty"`
	BatchSize        int           `json:"batchSize,omitempty"`
}

// Orchestrator runs harvest operations one at a time. Start returns
// immediately with the operation ID while a worker goroutine drives the
// run; Status and Cancel act on the tracked operation.
type Orchestrator struct {
	guard    RunGuard
	registry *sources.Registry
	resolver Resolver
	logs     LogStore
	listings ListingStore
	hub      Broadcaster
	logger   *slog.Logger
	metrics  *infrastructure.HarvestMetrics
	defaults config.ScrapeConfig

	// limiter paces all outbound source calls; the geocode engine
	// carries its own limiter for the geocoding endpoint.
	limiter *rate.Limiter
	grace   time.Duration

	mu      sync.RWMutex
	live    map[string]*Operation
	cancels map[string]context.CancelFunc
}

// NewOrchestrator wires an orchestrator from its collaborators
func NewOrchestrator(
	guard RunGuard,
	registry *sources.Registry,
	resolver Resolver,
	logs LogStore,
	listings ListingStore,
	hub Broadcaster,
	defaults config.ScrapeConfig,
	logger *slog.Logger,
) *Orchestrator {
	if guard == nil {
		guard = NewRunGuard()
	}
	if logger == nil {
		logger = slog.Default()
	}
	delay := defaults.RequestDelay
	if delay <= 0 {
		delay = 1500 * time.Millisecond
	}
	grace := defaults.SnapshotGrace
	if grace <= 0 {
		grace = 30 * time.Second
	}
	return &Orchestrator{
		guard:    guard,
		registry: registry,
		resolver: resolver,
		logs:     logs,
		listings: listings,
		hub:      hub,
		logger:   logger.With(slog.String("component", "orchestrator")),
		defaults: defaults,
		limiter:  rate.NewLimiter(rate.Every(delay), 1),
		grace:    grace,
		live:     make(map[string]*Operation),
		cancels:  make(map[string]context.CancelFunc),
	}
}

// SetMetrics attaches the harvest instruments. Optional.
func (or *Orchestrator) SetMetrics(m *infrastructure.HarvestMetrics) {
	or.metrics = m
}

// Start begins a new harvest operation and returns its ID. Rejects with
// ErrAlreadyRunning while another operation holds the run guard; the
// rejected call creates no operation.
func (or *Orchestrator) Start(ctx context.Context, trigger TriggerKind, triggeredBy string, cfg RunConfig) (string, error) {
	if !trigger.Valid() {
		return "", fmt.Errorf("invalid trigger kind %q", trigger)
	}
	if trigger == TriggerManual && triggeredBy == "" {
		return "", fmt.Errorf("manual trigger requires an actor reference")
	}

	requested := cfg.Sources
	if len(requested) == 0 {
		requested = or.defaults.Sources
	}
	known, unknown := or.registry.Filter(requested)
	if len(unknown) > 0 {
		or.logger.WarnContext(ctx, "ignoring unknown sources",
			slog.String("sources", strings.Join(unknown, ",")))
	}
	if len(known) == 0 {
		return "", fmt.Errorf("%w: no valid sources in %v", apperrors.ErrUnknownSource, requested)
	}

	id := uuid.New().String()
	if !or.guard.TryAcquire(id) {
		return "", fmt.Errorf("%w (operation %s)", apperrors.ErrAlreadyRunning, or.guard.Current())
	}

	op := newOperation(id, trigger, triggeredBy, known)

	// The run is unobservable without its log entry, so a write failure
	// here aborts the start.
	if err := or.logs.SaveOperation(ctx, op.Snapshot()); err != nil {
		or.guard.Release(id)
		return "", apperrors.NewPersistenceError("operation log create", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	or.mu.Lock()
	or.live[id] = op
	or.cancels[id] = cancel
	or.mu.Unlock()

	if or.metrics != nil {
		or.metrics.OperationsStarted.Add(ctx, 1)
	}
	or.logger.InfoContext(ctx, "operation started",
		slog.String("operation_id", id),
		slog.String("trigger", string(trigger)),
		slog.String("sources", strings.Join(known, ",")))

	go or.run(runCtx, op, cfg)

	return id, nil
}

// Status returns the snapshot for a live or historical operation
func (or *Orchestrator) Status(ctx context.Context, id string) (*Snapshot, error) {
	or.mu.RLock()
	op, ok := or.live[id]
	or.mu.RUnlock()
	if ok {
		return op.Snapshot(), nil
	}

	snap, err := or.logs.GetOperation(ctx, id)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// List pages through persisted operation logs
func (or *Orchestrator) List(ctx context.Context, filter LogFilter) ([]*Snapshot, int, error) {
	return or.logs.ListOperations(ctx, filter)
}

// Cancel requests cooperative cancellation of a running operation.
// Already-persisted listings from completed sources are not rolled back.
func (or *Orchestrator) Cancel(ctx context.Context, id string) error {
	or.mu.RLock()
	op, ok := or.live[id]
	cancel := or.cancels[id]
	or.mu.RUnlock()

	if !ok || op.Status().Terminal() {
		return apperrors.ErrOperationNotFound
	}

	op.RequestCancel()
	if cancel != nil {
		cancel()
	}
	or.logger.InfoContext(ctx, "operation cancel requested", slog.String("operation_id", id))
	return nil
}

// Running returns the ID of the operation holding the run guard, or
// the empty string when the runner is idle.
func (or *Orchestrator) Running() string {
	return or.guard.Current()
}

// run is the worker driving one operation to a terminal state
func (or *Orchestrator) run(ctx context.Context, op *Operation, cfg RunConfig) {
	id := op.ID()
	total := op.sourceCount()

	defer func() {
		or.guard.Release(id)
		or.evictAfterGrace(id)
	}()

	for idx := 0; idx < total; idx++ {
		// Cancellation is observed at source boundaries only; a source
		// mid-fetch finishes or is abandoned with its context.
		if op.cancelled() || ctx.Err() != nil {
			op.recordError(LevelInfo, "", "operation cancelled before source "+op.sourceName(idx))
			break
		}

		or.runSource(ctx, op, idx, cfg)

		op.setStep((idx+1)*100/total, fmt.Sprintf("finished source %d/%d", idx+1, total))
		or.persistProgress(ctx, op)
		or.broadcast(EventOperationProgress, op.Snapshot())
	}

	if op.cancelled() {
		op.finalize(StatusCancelled)
	} else {
		// Partial success is a normal outcome; failed sources are
		// visible through the aggregate counters.
		op.finalize(StatusCompleted)
	}

	// The final write must survive the run context being cancelled.
	saveCtx := context.WithoutCancel(ctx)
	snap := op.Snapshot()
	if err := or.logs.SaveOperation(saveCtx, snap); err != nil {
		op.recordError(LevelCritical, "", "failed to persist operation log: "+err.Error())
		op.failPersist()
		snap = op.Snapshot()
		or.logger.ErrorContext(ctx, "operation log persist failed",
			slog.String("operation_id", id),
			slog.String("error", err.Error()))
	}

	if or.metrics != nil {
		if snap.Status == StatusFailed {
			or.metrics.OperationsFailed.Add(ctx, 1)
		} else {
			or.metrics.OperationsCompleted.Add(ctx, 1)
		}
	}
	or.broadcast(EventOperationComplete, snap)
	or.logger.InfoContext(ctx, "operation finished",
		slog.String("operation_id", id),
		slog.String("status", string(snap.Status)),
		slog.Int("failed_sources", snap.Aggregate.FailedSources),
		slog.Int("listings_found", snap.Aggregate.TotalListingsFound))
}

// runSource executes the per-source algorithm. A source's failure never
// aborts the operation.
func (or *Orchestrator) runSource(ctx context.Context, op *Operation, idx int, cfg RunConfig) {
	name := op.sourceName(idx)
	op.markSourceRunning(idx)
	op.setStep(idx*100/op.sourceCount(), "fetching "+name)
	or.broadcast(EventOperationStatus, op.Snapshot())

	adapter, err := or.registry.Get(name)
	if err != nil {
		op.addSourceError(idx, LevelError, err.Error())
		op.recordError(LevelError, name, err.Error())
		op.markSourceFailed(idx)
		return
	}

	listings, err := or.fetchWithRetry(ctx, adapter, cfg)
	if err != nil {
		op.addSourceError(idx, LevelError, "fetch failed: "+err.Error())
		op.recordError(LevelError, name, "fetch failed: "+err.Error())
		op.markSourceFailed(idx)
		return
	}

	var found, created, updated int
	for i := range listings {
		listing := listings[i]
		if !listing.Valid() {
			op.addSourceError(idx, LevelWarning, fmt.Sprintf(
				"dropped listing with missing identity fields (destination=%q title=%q)",
				listing.Destination, listing.Title))
			continue
		}
		found++

		or.enhanceListing(ctx, op, idx, adapter, &listing)

		isNew, err := or.listings.UpsertListing(ctx, listing)
		if err != nil {
			op.addSourceError(idx, LevelError, "listing upsert failed: "+err.Error())
			continue
		}
		if isNew {
			created++
		} else {
			updated++
		}
		if or.metrics != nil {
			or.metrics.ListingsUpserted.Add(ctx, 1)
		}

		or.resolveListing(ctx, op, idx, listing)
	}

	op.addSourceCounts(idx, found, created, updated)
	op.markSourceCompleted(idx)
}

// fetchWithRetry calls the adapter up to retryAttempts+1 times, pacing
// every outbound call through the shared limiter.
func (or *Orchestrator) fetchWithRetry(ctx context.Context, adapter sources.Adapter, cfg RunConfig) ([]sources.RawListing, error) {
	fc := sources.FetchConfig{
		Timeout:   or.defaults.TimeoutPerSource,
		BatchSize: or.defaults.BatchSize,
	}
	if cfg.TimeoutPerSource > 0 {
		fc.Timeout = cfg.TimeoutPerSource
	}
	if cfg.BatchSize > 0 {
		fc.BatchSize = cfg.BatchSize
	}

	attempts := or.defaults.RetryAttempts
	if cfg.RetryAttempts > 0 {
		attempts = cfg.RetryAttempts
	}

	var lastErr error
	for attempt := 0; attempt <= attempts; attempt++ {
		if err := or.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		listings, err := adapter.Fetch(ctx, fc)
		if err == nil {
			return listings, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// enhanceListing fills missing duration/inclusion facts from the detail
// page. Best-effort: a failure is a warning, never a source failure.
func (or *Orchestrator) enhanceListing(ctx context.Context, op *Operation, idx int, adapter sources.Adapter, listing *sources.RawListing) {
	if listing.URL == "" {
		return
	}
	if listing.Duration != "" && len(listing.Inclusions) > 0 {
		return
	}
	if err := or.limiter.Wait(ctx); err != nil {
		return
	}

	facts, err := adapter.FetchDetail(ctx, listing.URL)
	if err != nil {
		op.addSourceError(idx, LevelWarning, "detail enhancement failed for "+listing.URL+": "+err.Error())
		return
	}

	if listing.Duration == "" {
		listing.Duration = facts.Duration
	}
	if len(listing.Inclusions) == 0 {
		listing.Inclusions = facts.Inclusions
	}
	if len(listing.Exclusions) == 0 {
		listing.Exclusions = facts.Exclusions
	}
}

// resolveListing resolves the listing's resort coordinate. Best-effort:
// a geocode failure leaves prior coordinates untouched and never blocks
// persistence.
func (or *Orchestrator) resolveListing(ctx context.Context, op *Operation, idx int, listing sources.RawListing) {
	if or.resolver == nil || listing.Resort == "" || listing.Island == "" {
		return
	}

	res, err := or.resolver.Resolve(ctx, listing.Resort, listing.Island, listing.Destination)
	if err != nil {
		op.addSourceError(idx, LevelWarning, "geocode failed for "+listing.Resort+": "+err.Error())
		return
	}
	if res == nil {
		or.logger.DebugContext(ctx, "no geocode resolution",
			slog.String("resort", listing.Resort),
			slog.String("island", listing.Island))
	}
}

func (or *Orchestrator) persistProgress(ctx context.Context, op *Operation) {
	if err := or.logs.SaveOperation(ctx, op.Snapshot()); err != nil {
		or.logger.WarnContext(ctx, "progress persist failed",
			slog.String("operation_id", op.ID()),
			slog.String("error", err.Error()))
	}
}

func (or *Orchestrator) broadcast(eventType string, data interface{}) {
	if or.hub != nil {
		or.hub.BroadcastUpdate(eventType, data)
	}
}

// evictAfterGrace removes the in-memory record a fixed delay after the
// terminal state so clients polling Status can observe the final
// snapshot before falling back to the persisted log.
func (or *Orchestrator) evictAfterGrace(id string) {
	time.AfterFunc(or.grace, func() {
		or.mu.Lock()
		defer or.mu.Unlock()
		delete(or.live, id)
		if cancel, ok := or.cancels[id]; ok {
			cancel()
			delete(or.cancels, id)
		}
	})
}
