package ingest

import (
	"encoding/json"
	"fmt"

	"github.com/jmehdipour/stocksync/internal/model"
)

// Command is a decoded dispatch message. The set of variants is closed.
type Command interface {
	action() model.Action
}

// SyncCompanyBatch refreshes every listed symbol.
type SyncCompanyBatch struct {
	Symbols []string
}

func (SyncCompanyBatch) action() model.Action { return model.ActionSyncCompanyBatch }

// parseCommand maps a decoded payload to its Command.
func parseCommand(payload []byte) (Command, error) {
	var msg model.DispatchMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: payload: %w", ErrMalformedEnvelope, err)
	}

	switch msg.Action {
	case model.ActionSyncCompanyBatch:
		if len(msg.Symbols) == 0 {
			return nil, fmt.Errorf("%w: missing 'symbols' in message", ErrUnknownCommand)
		}
		return SyncCompanyBatch{Symbols: msg.Symbols}, nil
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrUnknownCommand, msg.Action)
	}
}
