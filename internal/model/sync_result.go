package model

import "time"

type SyncOutcome string

const (
	SyncOutcomeSuccess  SyncOutcome = "success"
	SyncOutcomeNotFound SyncOutcome = "not_found"
	SyncOutcomeError    SyncOutcome = "error"
)

func (o SyncOutcome) String() string { return string(o) }

func (o SyncOutcome) Valid() bool {
	return o == SyncOutcomeSuccess || o == SyncOutcomeNotFound || o == SyncOutcomeError
}

// SyncResult is one per-item row of the ClickHouse audit log.
type SyncResult struct {
	MessageID string      `db:"message_id" json:"message_id"`
	Symbol    string      `db:"symbol"     json:"symbol"`
	Outcome   SyncOutcome `db:"outcome"    json:"outcome"`
	Error     string      `db:"error"      json:"error,omitempty"`
	SyncedAt  time.Time   `db:"synced_at"  json:"synced_at"`
}
