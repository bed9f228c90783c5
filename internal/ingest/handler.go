package ingest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jmehdipour/stocksync/internal/model"
	"github.com/jmehdipour/stocksync/internal/service/batchsync"
)

var (
	ErrMalformedEnvelope = errors.New("malformed envelope")
	ErrUnknownCommand    = errors.New("unknown command")
	ErrExecutorFailure   = errors.New("executor failure")
)

// BatchRunner is satisfied by *batchsync.Executor.
type BatchRunner interface {
	Run(ctx context.Context, symbols []string) (model.BatchSyncResult, error)
}

// Handler decodes push envelopes and routes the carried command.
type Handler struct {
	batches BatchRunner
	log     *zap.Logger
}

func NewHandler(batches BatchRunner, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{batches: batches, log: log}
}

// Decode validates the envelope and returns the inner message.
func Decode(body []byte) (*model.PushMessage, []byte, error) {
	var env model.PushEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, nil, fmt.Errorf("%w: body: %w", ErrMalformedEnvelope, err)
	}
	if env.Message == nil {
		return nil, nil, fmt.Errorf("%w: missing 'message' field", ErrMalformedEnvelope)
	}
	if env.Message.Data == nil {
		return nil, nil, fmt.Errorf("%w: missing 'data' field", ErrMalformedEnvelope)
	}

	payload, err := base64.StdEncoding.DecodeString(*env.Message.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: data: %w", ErrMalformedEnvelope, err)
	}
	return env.Message, payload, nil
}

// Handle runs one delivery end to end. Errors wrap ErrMalformedEnvelope,
// ErrUnknownCommand or ErrExecutorFailure; per-item failures are inside the
// result and are not errors.
func (h *Handler) Handle(ctx context.Context, body []byte) (*model.BatchSyncResult, error) {
	msg, payload, err := Decode(body)
	if err != nil {
		h.log.Warn("rejecting push delivery", zap.Error(err))
		return nil, err
	}

	log := h.log.With(zap.String("message_id", msg.MessageID))

	cmd, err := parseCommand(payload)
	if err != nil {
		log.Warn("rejecting push delivery", zap.Error(err))
		return nil, err
	}

	log.Info("decoded push message", zap.String("action", cmd.action().String()))

	switch c := cmd.(type) {
	case SyncCompanyBatch:
		res, err := h.batches.Run(batchsync.WithMessageID(ctx, msg.MessageID), c.Symbols)
		if err != nil {
			log.Error("batch sync failed", zap.Error(err))
			return nil, fmt.Errorf("%w: %w", ErrExecutorFailure, err)
		}
		return &res, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
}
