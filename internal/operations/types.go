// Package operations drives a harvest operation through its lifecycle:
// fetching each configured source, enhancing and persisting listings,
// resolving resort coordinates, and recording a structured operation log.
package operations

import (
	"sync"
	"time"
)

// TriggerKind says what started an operation
type TriggerKind string

const (
	TriggerManual    TriggerKind = "manual"
	TriggerScheduled TriggerKind = "scheduled"
	TriggerAPI       TriggerKind = "api"
)

// Valid reports whether the trigger kind is one of the known values
func (t TriggerKind) Valid() bool {
	switch t {
	case TriggerManual, TriggerScheduled, TriggerAPI:
		return true
	}
	return false
}

// Status is the overall operation status enum
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status admits no further transitions
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// SourceStatus is the per-source progress enum
type SourceStatus string

const (
	SourcePending   SourceStatus = "pending"
	SourceRunning   SourceStatus = "running"
	SourceCompleted SourceStatus = "completed"
	SourceFailed    SourceStatus = "failed"
)

// ErrorLevel classifies one operation log entry
type ErrorLevel string

const (
	LevelInfo     ErrorLevel = "info"
	LevelWarning  ErrorLevel = "warning"
	LevelError    ErrorLevel = "error"
	LevelCritical ErrorLevel = "critical"
)

// ErrorEntry is one recorded problem or notable event during a run
type ErrorEntry struct {
	Level     ErrorLevel `json:"level"`
	Message   string     `json:"message"`
	Source    string     `json:"source,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// SourceResult tracks the outcome of one source within a run
type SourceResult struct {
	Source          string       `json:"source"`
	Status          SourceStatus `json:"status"`
	StartTime       *time.Time   `json:"startTime,omitempty"`
	EndTime         *time.Time   `json:"endTime,omitempty"`
	ListingsFound   int          `json:"listingsFound"`
	ListingsNew     int          `json:"listingsNew"`
	ListingsUpdated int          `json:"listingsUpdated"`
	Errors          []ErrorEntry `json:"errors,omitempty"`
}

// AggregateResults summarizes a run across all its sources
type AggregateResults struct {
	TotalSources       int `json:"totalSources"`
	SuccessfulSources  int `json:"successfulSources"`
	FailedSources      int `json:"failedSources"`
	TotalListingsFound int `json:"totalListingsFound"`
	NewListings        int `json:"newListings"`
	UpdatedListings    int `json:"updatedListings"`
}

// Snapshot is the externally visible, immutable view of an operation
type Snapshot struct {
	ID             string           `json:"id"`
	TriggerKind    TriggerKind      `json:"triggerKind"`
	TriggeredBy    string           `json:"triggeredBy,omitempty"`
	Status         Status           `json:"status"`
	Progress       int              `json:"progress"`
	CurrentStep    string           `json:"currentStep,omitempty"`
	StartTime      time.Time        `json:"startTime"`
	EndTime        *time.Time       `json:"endTime,omitempty"`
	DurationMillis int64            `json:"durationMillis"`
	SourceResults  []SourceResult   `json:"sourceResults"`
	Aggregate      AggregateResults `json:"aggregateResults"`
	Errors         []ErrorEntry     `json:"errors,omitempty"`
}

// Operation is one live harvest run. Mutated only by the worker goroutine
// driving it; every external read goes through Snapshot.
type Operation struct {
	mu sync.RWMutex

	id          string
	triggerKind TriggerKind
	triggeredBy string
	status      Status
	progress    int
	currentStep string
	startTime   time.Time
	endTime     *time.Time

	sourceResults []*SourceResult
	aggregate     AggregateResults
	errors        []ErrorEntry

	cancelRequested bool
}

// newOperation creates a running operation for the given sources
func newOperation(id string, trigger TriggerKind, triggeredBy string, srcNames []string) *Operation {
	results := make([]*SourceResult, len(srcNames))
	for i, name := range srcNames {
		results[i] = &SourceResult{Source: name, Status: SourcePending}
	}
	return &Operation{
		id:            id,
		triggerKind:   trigger,
		triggeredBy:   triggeredBy,
		status:        StatusRunning,
		startTime:     time.Now().UTC(),
		sourceResults: results,
		aggregate:     AggregateResults{TotalSources: len(srcNames)},
	}
}

// ID returns the operation identifier
func (o *Operation) ID() string {
	return o.id
}

// Status returns the current status
func (o *Operation) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.status
}

// RequestCancel flags the run for cooperative cancellation. The worker
// observes the flag at the next source boundary.
func (o *Operation) RequestCancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancelRequested = true
}

func (o *Operation) cancelled() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.cancelRequested
}

// setStep updates the progress percentage and the phase label
func (o *Operation) setStep(progress int, step string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	o.progress = progress
	o.currentStep = step
}

// recordError appends an entry to the operation error list
func (o *Operation) recordError(level ErrorLevel, source, message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors = append(o.errors, ErrorEntry{
		Level:     level,
		Message:   message,
		Source:    source,
		Timestamp: time.Now().UTC(),
	})
}

// finalize moves the operation to a terminal state. Terminal states are
// final; a second call is a no-op.
func (o *Operation) finalize(status Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status.Terminal() {
		return
	}
	now := time.Now().UTC()
	o.endTime = &now
	o.status = status
	if status == StatusCompleted {
		o.progress = 100
	}
	o.currentStep = string(status)
}

// failPersist flips an already-terminal operation to failed. Losing the
// operation log is the one condition that overrides a finished status;
// finalize refuses terminal-to-terminal transitions, so this is the only
// path allowed to make one.
func (o *Operation) failPersist() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.endTime == nil {
		now := time.Now().UTC()
		o.endTime = &now
	}
	o.status = StatusFailed
	o.currentStep = string(StatusFailed)
}

// Snapshot returns a deep copy safe to hand to callers
func (o *Operation) Snapshot() *Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()

	snap := &Snapshot{
		ID:          o.id,
		TriggerKind: o.triggerKind,
		TriggeredBy: o.triggeredBy,
		Status:      o.status,
		Progress:    o.progress,
		CurrentStep: o.currentStep,
		StartTime:   o.startTime,
		Aggregate:   o.aggregate,
	}

	if o.endTime != nil {
		end := *o.endTime
		snap.EndTime = &end
		snap.DurationMillis = end.Sub(o.startTime).Milliseconds()
	} else {
		snap.DurationMillis = time.Since(o.startTime).Milliseconds()
	}

	snap.SourceResults = make([]SourceResult, len(o.sourceResults))
	for i, sr := range o.sourceResults {
		cp := *sr
		if sr.StartTime != nil {
			t := *sr.StartTime
			cp.StartTime = &t
		}
		if sr.EndTime != nil {
			t := *sr.EndTime
			cp.EndTime = &t
		}
		cp.Errors = append([]ErrorEntry(nil), sr.Errors...)
		snap.SourceResults[i] = cp
	}

	snap.Errors = append([]ErrorEntry(nil), o.errors...)
	return snap
}
