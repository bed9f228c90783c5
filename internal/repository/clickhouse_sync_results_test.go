package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmehdipour/stocksync/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertBatchAppendsEveryRow(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()
	ch := sqlx.NewDb(raw, "clickhouse")

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO stocksync.sync_results")
	prep.ExpectExec().WithArgs("m1", "AAA", "success", "", at).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs("m1", "BBB", "error", "boom", at).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = NewCHSyncResultsRepository(ch).InsertBatch(context.Background(), []model.SyncResult{
		{MessageID: "m1", Symbol: "AAA", Outcome: model.SyncOutcomeSuccess, SyncedAt: at},
		{MessageID: "m1", Symbol: "BBB", Outcome: model.SyncOutcomeError, Error: "boom", SyncedAt: at},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatchEmptyIsNoop(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()

	require.NoError(t, NewCHSyncResultsRepository(sqlx.NewDb(raw, "clickhouse")).InsertBatch(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListRecentFiltersBySymbol(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()

	at := time.Now().UTC()
	mock.ExpectQuery("FROM stocksync.sync_results").
		WithArgs("AAPL", 50, 0).
		WillReturnRows(sqlmock.NewRows([]string{"message_id", "symbol", "outcome", "error", "synced_at"}).
			AddRow("m9", "AAPL", "success", "", at))

	rows, err := NewCHSyncResultsRepository(sqlx.NewDb(raw, "clickhouse")).ListRecent(context.Background(), "AAPL", "", 0, -1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, model.SyncOutcomeSuccess, rows[0].Outcome)
}
