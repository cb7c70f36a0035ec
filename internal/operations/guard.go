package operations

import "sync"

// RunGuard enforces the single-run invariant: at most one harvest
// operation may be running process-wide. Injectable so tests can simulate
// contending Start calls deterministically.
type RunGuard interface {
	// TryAcquire claims the guard for the given operation ID. Returns
	// false without blocking if another operation holds it.
	TryAcquire(operationID string) bool
	// Release frees the guard if the given operation holds it
	Release(operationID string)
	// Current returns the holder's operation ID, or "" when free
	Current() string
}

// processGuard is the in-process RunGuard implementation
type processGuard struct {
	mu      sync.Mutex
	current string
}

// NewRunGuard creates the default in-process run guard
func NewRunGuard() RunGuard {
	return &processGuard{}
}

func (g *processGuard) TryAcquire(operationID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current != "" {
		return false
	}
	g.current = operationID
	return true
}

func (g *processGuard) Release(operationID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == operationID {
		g.current = ""
	}
}

func (g *processGuard) Current() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}
