package operations

import (
	"context"

	"tripharvest/internal/geocode"
	"tripharvest/internal/sources"
)

// LogStore persists operation log documents. Implemented by the store
// package; an operation's document is rewritten in place until finalized.
type LogStore interface {
	SaveOperation(ctx context.Context, snap *Snapshot) error
	GetOperation(ctx context.Context, id string) (*Snapshot, error)
	ListOperations(ctx context.Context, filter LogFilter) ([]*Snapshot, int, error)
}

// LogFilter selects and pages persisted operation logs
type LogFilter struct {
	Page        int
	Limit       int
	Status      Status
	TriggerKind TriggerKind
	StartDate   string // inclusive, RFC 3339 date
	EndDate     string // inclusive, RFC 3339 date
}

// ListingStore upserts scraped listings keyed (source, destination, title)
type ListingStore interface {
	UpsertListing(ctx context.Context, listing sources.RawListing) (created bool, err error)
}

// Resolver resolves a resort coordinate; satisfied by geocode.Engine
type Resolver interface {
	Resolve(ctx context.Context, resortRaw, island, addressHint string) (*geocode.Resolution, error)
}

// Broadcaster pushes operation progress to connected clients; satisfied
// by the websocket hub. Implementations must not block.
type Broadcaster interface {
	BroadcastUpdate(eventType string, data interface{})
}

// Progress event types pushed through the Broadcaster
const (
	EventOperationStatus   = "operation:status"
	EventOperationProgress = "operation:progress"
	EventOperationComplete = "operation:complete"
)
