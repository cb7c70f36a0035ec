package operations

import "time"

// Source-result mutators. All locking lives here so the worker goroutine
// can mutate results while Snapshot reads race-free.

func (o *Operation) markSourceRunning(idx int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	sr := o.sourceResults[idx]
	now := time.Now().UTC()
	sr.Status = SourceRunning
	sr.StartTime = &now
}

func (o *Operation) markSourceCompleted(idx int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	sr := o.sourceResults[idx]
	now := time.Now().UTC()
	sr.Status = SourceCompleted
	sr.EndTime = &now
	o.aggregate.SuccessfulSources++
}

func (o *Operation) markSourceFailed(idx int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	sr := o.sourceResults[idx]
	now := time.Now().UTC()
	sr.Status = SourceFailed
	sr.EndTime = &now
	o.aggregate.FailedSources++
}

func (o *Operation) addSourceError(idx int, level ErrorLevel, message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	sr := o.sourceResults[idx]
	sr.Errors = append(sr.Errors, ErrorEntry{
		Level:     level,
		Message:   message,
		Source:    sr.Source,
		Timestamp: time.Now().UTC(),
	})
}

func (o *Operation) addSourceCounts(idx, found, created, updated int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	sr := o.sourceResults[idx]
	sr.ListingsFound += found
	sr.ListingsNew += created
	sr.ListingsUpdated += updated
	o.aggregate.TotalListingsFound += found
	o.aggregate.NewListings += created
	o.aggregate.UpdatedListings += updated
}

func (o *Operation) sourceCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.sourceResults)
}

func (o *Operation) sourceName(idx int) string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.sourceResults[idx].Source
}
