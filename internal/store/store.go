package store

import (
	"context"
	"time"
)

// Dispatch outcomes recorded for each processed message.
const (
	OutcomeMatched    = "matched"
	OutcomeNotMatched = "not_matched"
	OutcomeErrored    = "errored"
)

// Record is one archived dispatch: which message arrived and how the
// engine resolved it.
type Record struct {
	ID          string    `db:"id"`
	Sender      string    `db:"sender"`
	Subject     string    `db:"subject"`
	Source      string    `db:"source"`
	ReceivedAt  time.Time `db:"received_at"`
	Outcome     string    `db:"outcome"`
	ActionTitle string    `db:"action_title"`
	Params      string    `db:"params"` // JSON object, "{}" when none
	Error       string    `db:"error"`
	ProcessedAt time.Time `db:"processed_at"`
}

// RecordFilter controls filtering and pagination for archive queries.
type RecordFilter struct {
	Outcome *string
	Sender  *string
	Limit   int
	Offset  int
}

// Store defines the persistence interface for the processed-message
// archive.
type Store interface {
	SaveRecord(ctx context.Context, rec Record) error
	GetRecords(ctx context.Context, filter RecordFilter) ([]Record, error)
	CountByOutcome(ctx context.Context) (map[string]int, error)
	Close() error
}
