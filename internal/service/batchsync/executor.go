package batchsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jmehdipour/stocksync/internal/metrics"
	"github.com/jmehdipour/stocksync/internal/model"
)

var (
	// ErrInfrastructure marks failures that stop a batch before or between
	// items. The caller should let the broker redeliver.
	ErrInfrastructure = errors.New("batch sync infrastructure failure")
	ErrNilSymbols     = errors.New("symbols list is nil")
)

// ItemSyncer refreshes one symbol. It must be idempotent: the broker may deliver
// the same batch more than once.
type ItemSyncer interface {
	SyncItem(ctx context.Context, symbol string) (model.SyncOutcome, error)
}

// Pinger checks the item storage before a batch starts.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Recorder appends per-item outcomes to the audit log.
type Recorder interface {
	InsertBatch(ctx context.Context, rows []model.SyncResult) error
}

type Executor struct {
	items     ItemSyncer
	storage   Pinger
	recorder  Recorder
	itemDelay time.Duration
	log       *zap.Logger
}

type Option func(*Executor)

func WithPinger(p Pinger) Option { return func(e *Executor) { e.storage = p } }

func WithRecorder(r Recorder) Option { return func(e *Executor) { e.recorder = r } }

// WithItemDelay paces consecutive items to stay under the provider's rate limit.
func WithItemDelay(d time.Duration) Option { return func(e *Executor) { e.itemDelay = d } }

func WithLogger(l *zap.Logger) Option { return func(e *Executor) { e.log = l } }

func New(items ItemSyncer, opts ...Option) *Executor {
	e := &Executor{items: items, log: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type messageIDKey struct{}

// WithMessageID tags ctx with the broker message id recorded in the audit log.
func WithMessageID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, messageIDKey{}, id)
}

// MessageIDFrom returns the id set by WithMessageID, or "".
func MessageIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(messageIDKey{}).(string)
	return id
}

// Run syncs every symbol in order, duplicates included. A failing item is
// recorded in the result and never stops the loop. The error return is reserved
// for failures that are not attributable to a single item.
func (e *Executor) Run(ctx context.Context, symbols []string) (model.BatchSyncResult, error) {
	if symbols == nil {
		return model.BatchSyncResult{}, ErrNilSymbols
	}

	if e.storage != nil {
		if err := e.storage.PingContext(ctx); err != nil {
			return model.BatchSyncResult{}, fmt.Errorf("%w: storage: %w", ErrInfrastructure, err)
		}
	}

	res := model.BatchSyncResult{
		Status:  model.BatchStatusCompleted,
		Action:  model.ActionSyncCompanyBatch,
		Total:   len(symbols),
		Results: make(map[string]string, len(symbols)),
	}
	audit := make([]model.SyncResult, 0, len(symbols))
	msgID := MessageIDFrom(ctx)

	e.log.Info("batch sync started", zap.Int("total", len(symbols)), zap.String("message_id", msgID))

	for i, symbol := range symbols {
		if i > 0 && e.itemDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(e.itemDelay):
			}
		}
		if err := ctx.Err(); err != nil {
			e.record(msgID, audit)
			return model.BatchSyncResult{}, fmt.Errorf("%w: interrupted after %d of %d: %w", ErrInfrastructure, i, len(symbols), err)
		}

		outcome, err := e.items.SyncItem(ctx, symbol)
		row := model.SyncResult{MessageID: msgID, Symbol: symbol, SyncedAt: time.Now().UTC()}

		switch {
		case err != nil:
			res.Results[symbol] = model.ErrorOutcome(err)
			res.Failed++
			row.Outcome, row.Error = model.SyncOutcomeError, err.Error()
			e.log.Error("sync item failed", zap.String("symbol", symbol), zap.Error(err))
		case outcome == model.SyncOutcomeNotFound:
			res.Results[symbol] = model.OutcomeSuccess
			res.Success++
			res.NotFound++
			row.Outcome = model.SyncOutcomeNotFound
			e.log.Warn("symbol not found at provider", zap.String("symbol", symbol))
		default:
			res.Results[symbol] = model.OutcomeSuccess
			res.Success++
			row.Outcome = model.SyncOutcomeSuccess
			e.log.Debug("synced item", zap.String("symbol", symbol))
		}

		metrics.ItemsSyncedTotal.WithLabelValues(row.Outcome.String()).Inc()
		audit = append(audit, row)
	}

	e.record(msgID, audit)
	e.log.Info("batch sync completed",
		zap.Int("total", res.Total),
		zap.Int("success", res.Success),
		zap.Int("failed", res.Failed),
		zap.Int("not_found", res.NotFound),
	)
	return res, nil
}

// record never fails the batch; the audit log is best effort.
func (e *Executor) record(msgID string, rows []model.SyncResult) {
	if e.recorder == nil || len(rows) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.recorder.InsertBatch(ctx, rows); err != nil {
		e.log.Warn("sync audit insert failed", zap.String("message_id", msgID), zap.Error(err))
	}
}
