package dispatch

import (
	"context"

	"go.uber.org/zap"

	"github.com/jmehdipour/stocksync/internal/broker"
	"github.com/jmehdipour/stocksync/internal/metrics"
	"github.com/jmehdipour/stocksync/internal/model"
	"github.com/jmehdipour/stocksync/internal/util"
)

const DefaultBatchSize = 10

// RosterReader is satisfied by repository.CompaniesRepository.
type RosterReader interface {
	ListSymbols(ctx context.Context) ([]string, error)
}

// Dispatcher fans the company roster out to the broker in bounded batches.
type Dispatcher struct {
	roster           RosterReader
	pub              broker.Publisher
	topic            string
	defaultBatchSize int
	log              *zap.Logger
}

func New(roster RosterReader, pub broker.Publisher, topic string, defaultBatchSize int, log *zap.Logger) *Dispatcher {
	if defaultBatchSize <= 0 {
		defaultBatchSize = DefaultBatchSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		roster:           roster,
		pub:              pub,
		topic:            topic,
		defaultBatchSize: defaultBatchSize,
		log:              log,
	}
}

// Partition splits symbols into consecutive chunks of at most size, in order.
// Concatenating the chunks yields symbols.
func Partition(symbols []string, size int) [][]string {
	if size <= 0 {
		size = DefaultBatchSize
	}
	batches := make([][]string, 0, (len(symbols)+size-1)/size)
	for start := 0; start < len(symbols); start += size {
		end := min(start+size, len(symbols))
		batches = append(batches, symbols[start:end:end])
	}
	return batches
}

// Dispatch reads the roster once and publishes one message per batch. A failed
// publish is recorded as a nil id and never stops the run; only a roster read
// failure yields an error report.
func (d *Dispatcher) Dispatch(ctx context.Context, batchSize int) model.DispatchReport {
	if batchSize <= 0 {
		batchSize = d.defaultBatchSize
	}
	log := d.log.With(zap.String("run_id", util.New()), zap.Int("batch_size", batchSize))
	log.Info("dispatch started")

	report := d.dispatch(ctx, log, batchSize)
	metrics.DispatchRunsTotal.WithLabelValues(report.Status.String()).Inc()
	return report
}

func (d *Dispatcher) dispatch(ctx context.Context, log *zap.Logger, batchSize int) model.DispatchReport {
	symbols, err := d.roster.ListSymbols(ctx)
	if err != nil {
		log.Error("roster read failed", zap.Error(err))
		return model.DispatchReport{Status: model.DispatchError, Error: err.Error()}
	}

	if len(symbols) == 0 {
		log.Warn("no companies to sync")
		return model.DispatchReport{Status: model.DispatchNoCompanies, MessageIDs: []*string{}}
	}

	batches := Partition(symbols, batchSize)
	log.Info("dispatching roster",
		zap.Int("total_companies", len(symbols)),
		zap.Int("batch_count", len(batches)),
	)

	ids := make([]*string, 0, len(batches))
	published := 0
	for i, batch := range batches {
		id, err := broker.PublishCompanyBatch(ctx, d.pub, d.topic, batch)
		if err != nil {
			metrics.DispatchBatchesTotal.WithLabelValues("failed").Inc()
			log.Error("publish batch failed",
				zap.Int("batch", i+1),
				zap.Int("of", len(batches)),
				zap.Error(err),
			)
			ids = append(ids, nil)
			continue
		}

		metrics.DispatchBatchesTotal.WithLabelValues("published").Inc()
		log.Info("published batch",
			zap.Int("batch", i+1),
			zap.Int("of", len(batches)),
			zap.Int("size", len(batch)),
			zap.String("message_id", id),
		)
		ids = append(ids, &id)
		published++
	}

	status := model.DispatchSuccess
	if published != len(batches) {
		status = model.DispatchPartial
	}

	return model.DispatchReport{
		Status:            status,
		TotalCompanies:    len(symbols),
		TotalBatches:      len(batches),
		SuccessfulBatches: published,
		FailedBatches:     len(batches) - published,
		MessageIDs:        ids,
	}
}
