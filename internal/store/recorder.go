package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/mailtrigger/internal/trigger"
)

// Recorder produces Trigger callbacks that archive each dispatch outcome
// and then delegate to the wrapped callbacks. Archiving is best-effort: a
// failed insert is logged, never raised into the dispatch path.
type Recorder struct {
	store Store
	log   *slog.Logger
}

// NewRecorder creates a Recorder over the given store. A nil logger falls
// back to slog.Default().
func NewRecorder(s Store, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{store: s, log: log}
}

// Matched wraps a matched callback with persistence.
func (r *Recorder) Matched(next trigger.MatchedFunc) trigger.MatchedFunc {
	return func(msg trigger.Message, action *trigger.Action, params map[string]string) {
		rec := r.newRecord(msg, OutcomeMatched)
		rec.ActionTitle = action.Title
		if len(params) > 0 {
			if encoded, err := json.Marshal(params); err == nil {
				rec.Params = string(encoded)
			}
		}
		r.save(rec)
		if next != nil {
			next(msg, action, params)
		}
	}
}

// NotMatched wraps a not-matched callback with persistence.
func (r *Recorder) NotMatched(next trigger.NotMatchedFunc) trigger.NotMatchedFunc {
	return func(msg trigger.Message) {
		r.save(r.newRecord(msg, OutcomeNotMatched))
		if next != nil {
			next(msg)
		}
	}
}

// Error wraps an error callback with persistence.
func (r *Recorder) Error(next trigger.ErrorFunc) trigger.ErrorFunc {
	return func(msg trigger.Message, err error) {
		rec := r.newRecord(msg, OutcomeErrored)
		if err != nil {
			rec.Error = err.Error()
		}
		r.save(rec)
		if next != nil {
			next(msg, err)
		}
	}
}

func (r *Recorder) newRecord(msg trigger.Message, outcome string) Record {
	return Record{
		ID:          uuid.NewString(),
		Sender:      msg.Sender,
		Subject:     msg.Subject,
		Source:      msg.Source,
		ReceivedAt:  msg.Date,
		Outcome:     outcome,
		Params:      "{}",
		ProcessedAt: time.Now(),
	}
}

func (r *Recorder) save(rec Record) {
	if err := r.store.SaveRecord(context.Background(), rec); err != nil {
		r.log.Error("archiving dispatch record", "outcome", rec.Outcome, "error", err)
	}
}
