package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nhle/mailtrigger/internal/trigger"
)

// Engine orchestrates the two-phase backend conversation for one message
// and maps the outcome onto exactly one Trigger callback. The two phases
// are: a categorize call that yields a type id, then, for matched types, a
// task-execution call that yields the action's parameters. (A single-call
// variant combining both exists in the wild; this engine deliberately does
// not implement it and ignores any params in the categorize reply.)
type Engine struct {
	trigger *trigger.Trigger
	backend Backend
	log     *slog.Logger
}

// NewEngine creates an engine over the given trigger and backend. A nil
// logger falls back to slog.Default().
func NewEngine(t *trigger.Trigger, backend Backend, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		trigger: t,
		backend: backend,
		log:     log,
	}
}

// Trigger returns the trigger this engine dispatches to.
func (e *Engine) Trigger() *trigger.Trigger { return e.trigger }

// ProcessMessage classifies one message and dispatches the outcome. It
// never returns an error: every failure path resolves into exactly one
// error-callback invocation. Each call is self-contained; callers wanting
// concurrent classification run their own workers invoking it independently.
func (e *Engine) ProcessMessage(ctx context.Context, msg trigger.Message) {
	typeID, err := e.categorize(ctx, msg)
	if err != nil {
		e.trigger.OnMessageError(msg, err)
		return
	}

	if typeID == 0 {
		e.trigger.OnMessageNotMatched(msg)
		return
	}

	action := e.trigger.Action(typeID)
	if action == nil {
		e.trigger.OnMessageError(msg, &UnexpectedTypeError{
			TypeID: typeID,
			Count:  e.trigger.Len(),
		})
		return
	}

	params, err := e.performTask(ctx, action, msg)
	if err != nil {
		e.trigger.OnMessageError(msg, err)
		return
	}

	e.log.Debug("message classified",
		"action", action.Title,
		"type_id", typeID,
		"params", len(params),
	)
	e.trigger.OnMessageMatched(msg, action, params)
}

// categorize runs the first backend call and parses the strict
// {"type": "<int>"} reply. A negative type id is reported as an
// UnexpectedTypeError; range checking against the registry happens in
// ProcessMessage.
func (e *Engine) categorize(ctx context.Context, msg trigger.Message) (int, error) {
	system, err := categorizeSystem(e.trigger)
	if err != nil {
		return 0, &BackendError{Err: err}
	}

	raw, err := e.backend.Send(ctx, msg.Display(), system)
	if err != nil {
		return 0, wrapBackend(err)
	}

	cleaned := stripFences(raw)

	var reply struct {
		Type *json.Number `json:"type"`
	}
	if err := json.Unmarshal([]byte(cleaned), &reply); err != nil {
		return 0, &ParseError{Reason: "malformed JSON", Raw: raw, Err: err}
	}
	if reply.Type == nil {
		return 0, &ParseError{Reason: `missing "type" key`, Raw: raw}
	}

	typeID, err := reply.Type.Int64()
	if err != nil {
		return 0, &ParseError{Reason: "non-integer type id", Raw: raw, Err: err}
	}
	if typeID < 0 {
		return 0, &UnexpectedTypeError{TypeID: int(typeID), Count: e.trigger.Len()}
	}

	return int(typeID), nil
}

// performTask runs the second backend call for a matched action and parses
// the {"params": {...}} reply. Extraction is best-effort: an absent params
// object yields an empty map and extra keys are kept as-is.
func (e *Engine) performTask(ctx context.Context, action *trigger.Action, msg trigger.Message) (map[string]string, error) {
	system, err := performSystem()
	if err != nil {
		return nil, &BackendError{Err: err}
	}

	raw, err := e.backend.Send(ctx, performPrompt(action, msg), system)
	if err != nil {
		return nil, wrapBackend(err)
	}

	cleaned := stripFences(raw)

	var reply struct {
		Params map[string]string `json:"params"`
	}
	if err := json.Unmarshal([]byte(cleaned), &reply); err != nil {
		return nil, &ParseError{Reason: "malformed JSON", Raw: raw, Err: err}
	}
	if reply.Params == nil {
		return map[string]string{}, nil
	}
	return reply.Params, nil
}

// wrapBackend ensures a backend failure surfaces as a BackendError exactly
// once, without double-wrapping clients that already return one.
func wrapBackend(err error) error {
	if IsBackendError(err) {
		return err
	}
	return &BackendError{Err: fmt.Errorf("send failed: %w", err)}
}
