package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "tripharvest/internal/errors"
	"tripharvest/internal/operations"
)

// SaveOperation upserts the full operation document keyed by ID. Called
// repeatedly by the owning orchestrator until the run is finalized.
func (s *Store) SaveOperation(ctx context.Context, snap *operations.Snapshot) error {
	doc, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding operation document: %w", err)
	}

	var endTime interface{}
	if snap.EndTime != nil {
		endTime = snap.EndTime.UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO operations (id, trigger_kind, status, start_time, end_time, document)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			end_time = excluded.end_time,
			document = excluded.document`,
		snap.ID, string(snap.TriggerKind), string(snap.Status),
		snap.StartTime.UTC(), endTime, string(doc))
	if err != nil {
		return fmt.Errorf("writing operation %s: %w", snap.ID, err)
	}
	return nil
}

// GetOperation loads one persisted operation document
func (s *Store) GetOperation(ctx context.Context, id string) (*operations.Snapshot, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM operations WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrOperationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading operation %s: %w", id, err)
	}

	var snap operations.Snapshot
	if err := json.Unmarshal([]byte(doc), &snap); err != nil {
		return nil, fmt.Errorf("decoding operation %s: %w", id, err)
	}
	return &snap, nil
}

// ListOperations pages persisted operations newest-first, filtered by
// status, trigger kind and start-date range. Returns the page and the
// total matching count.
func (s *Store) ListOperations(ctx context.Context, filter operations.LogFilter) ([]*operations.Snapshot, int, error) {
	var conds []string
	var args []interface{}

	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.TriggerKind != "" {
		conds = append(conds, "trigger_kind = ?")
		args = append(args, string(filter.TriggerKind))
	}
	if filter.StartDate != "" {
		from, err := time.Parse("2006-01-02", filter.StartDate)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid start date %q: %w", filter.StartDate, err)
		}
		conds = append(conds, "start_time >= ?")
		args = append(args, from.UTC())
	}
	if filter.EndDate != "" {
		to, err := time.Parse("2006-01-02", filter.EndDate)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid end date %q: %w", filter.EndDate, err)
		}
		conds = append(conds, "start_time < ?")
		args = append(args, to.Add(24*time.Hour).UTC())
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM operations"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting operations: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 20
	}

	query := "SELECT document FROM operations" + where +
		" ORDER BY start_time DESC LIMIT ? OFFSET ?"
	args = append(args, limit, (page-1)*limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var snaps []*operations.Snapshot
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, 0, fmt.Errorf("scanning operation row: %w", err)
		}
		var snap operations.Snapshot
		if err := json.Unmarshal([]byte(doc), &snap); err != nil {
			return nil, 0, fmt.Errorf("decoding operation document: %w", err)
		}
		snaps = append(snaps, &snap)
	}
	return snaps, total, rows.Err()
}
