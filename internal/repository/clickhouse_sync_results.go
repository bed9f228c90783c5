package repository

import (
	"context"
	"fmt"

	"github.com/jmehdipour/stocksync/internal/model"
	"github.com/jmoiron/sqlx"
)

// SyncResultsRepository appends and lists per-item sync outcomes in ClickHouse.
type SyncResultsRepository interface {
	InsertBatch(ctx context.Context, rows []model.SyncResult) error
	ListRecent(ctx context.Context, symbol string, outcome model.SyncOutcome, limit, offset int) ([]model.SyncResult, error)
}

type chSyncResultsRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHSyncResultsRepository(ch *sqlx.DB) SyncResultsRepository {
	return &chSyncResultsRepository{ch: ch}
}

// InsertBatch sends all rows as one ClickHouse block.
func (r *chSyncResultsRepository) InsertBatch(ctx context.Context, rows []model.SyncResult) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.ch.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO stocksync.sync_results (message_id, symbol, outcome, error, synced_at)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.MessageID, row.Symbol, row.Outcome.String(), row.Error, row.SyncedAt); err != nil {
			return fmt.Errorf("append %s: %w", row.Symbol, err)
		}
	}
	return tx.Commit()
}

func (r *chSyncResultsRepository) ListRecent(ctx context.Context, symbol string, outcome model.SyncOutcome, limit, offset int) ([]model.SyncResult, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT message_id, symbol, outcome, error, synced_at
		FROM stocksync.sync_results
		WHERE 1 = 1
	`
	var args []any

	if symbol != "" {
		q += " AND symbol = ?"
		args = append(args, symbol)
	}
	if outcome != "" {
		q += " AND outcome = ?"
		args = append(args, outcome.String())
	}

	q += " ORDER BY synced_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []model.SyncResult
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
