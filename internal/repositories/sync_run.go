package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/rotation/internal/models"
	"github.com/desertthunder/rotation/internal/shared"
)

// SyncRunRepository stores the audit trail of sync invocations.
type SyncRunRepository struct {
	db *sql.DB
}

// NewSyncRunRepository creates a new SyncRunRepository with the given database connection
func NewSyncRunRepository(db *sql.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

// Start inserts a running audit row with a generated ID.
func (r *SyncRunRepository) Start(ctx context.Context, startedAt time.Time) (*models.SyncRun, error) {
	run := &models.SyncRun{
		ID:        shared.GenerateID(),
		StartedAt: startedAt.UTC(),
		Status:    models.RunRunning,
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO sync_runs (id, started_at, status) VALUES (?, ?, ?)",
		run.ID, run.StartedAt, run.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to insert sync run: %v", shared.ErrStorage, err)
	}

	return run, nil
}

// Finish records the outcome of run. A non-nil runErr marks the run failed.
func (r *SyncRunRepository) Finish(ctx context.Context, run *models.SyncRun, finishedAt time.Time, runErr error) error {
	finished := finishedAt.UTC()
	run.FinishedAt = &finished
	run.Status = models.RunCompleted
	if runErr != nil {
		run.Status = models.RunFailed
		run.Error = runErr.Error()
	}

	query := `
		UPDATE sync_runs
		SET finished_at = ?, status = ?, since_ms = ?, fetched = ?, resolved = ?, inferred = ?,
			merged = ?, ranked = ?, removed = ?, error = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		finished,
		run.Status,
		run.Since,
		run.Fetched,
		run.Resolved,
		run.Inferred,
		run.Merged,
		run.Ranked,
		run.Removed,
		run.Error,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to update sync run: %v", shared.ErrStorage, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to get affected rows: %v", shared.ErrStorage, err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: sync run %s", shared.ErrRecordMissing, run.ID)
	}

	return nil
}

// Get retrieves a sync run by ID.
func (r *SyncRunRepository) Get(ctx context.Context, id string) (*models.SyncRun, error) {
	query := `
		SELECT id, started_at, finished_at, status, since_ms, fetched, resolved, inferred, merged, ranked, removed, error
		FROM sync_runs
		WHERE id = ?
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// List returns the most recent runs, newest first.
func (r *SyncRunRepository) List(ctx context.Context, limit int) ([]*models.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, started_at, finished_at, status, since_ms, fetched, resolved, inferred, merged, ranked, removed, error
		FROM sync_runs
		ORDER BY started_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query sync runs: %v", shared.ErrStorage, err)
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		run, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: row iteration error: %v", shared.ErrStorage, err)
	}

	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanOne scans a single row into a [models.SyncRun]
func (r *SyncRunRepository) scanOne(row *sql.Row) (*models.SyncRun, error) {
	run, err := r.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: sync run", shared.ErrRecordMissing)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to scan sync run: %v", shared.ErrStorage, err)
	}
	return run, nil
}

// scanRow scans a row from a result set into a [models.SyncRun]
func (r *SyncRunRepository) scanRow(rows *sql.Rows) (*models.SyncRun, error) {
	run, err := r.scan(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to scan sync run: %v", shared.ErrStorage, err)
	}
	return run, nil
}

func (r *SyncRunRepository) scan(s scanner) (*models.SyncRun, error) {
	var (
		run      models.SyncRun
		status   string
		finished sql.NullTime
	)

	err := s.Scan(
		&run.ID,
		&run.StartedAt,
		&finished,
		&status,
		&run.Since,
		&run.Fetched,
		&run.Resolved,
		&run.Inferred,
		&run.Merged,
		&run.Ranked,
		&run.Removed,
		&run.Error,
	)
	if err != nil {
		return nil, err
	}

	run.Status = models.RunStatus(status)
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return &run, nil
}
