package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/nhle/mailtrigger/internal/trigger"
)

// dispatchRecorder captures which Trigger callbacks the engine invoked.
type dispatchRecorder struct {
	matched    []matchedCall
	notMatched []trigger.Message
	errored    []error
}

type matchedCall struct {
	action *trigger.Action
	params map[string]string
}

func (r *dispatchRecorder) options() []trigger.Option {
	return []trigger.Option{
		trigger.WithMatched(func(_ trigger.Message, action *trigger.Action, params map[string]string) {
			r.matched = append(r.matched, matchedCall{action: action, params: params})
		}),
		trigger.WithNotMatched(func(msg trigger.Message) {
			r.notMatched = append(r.notMatched, msg)
		}),
		trigger.WithError(func(_ trigger.Message, err error) {
			r.errored = append(r.errored, err)
		}),
	}
}

// scriptedBackend returns canned replies in order and records the requests
// it saw.
type scriptedBackend struct {
	replies []string
	errs    []error
	calls   []backendCall
}

type backendCall struct {
	text   string
	system string
}

func (b *scriptedBackend) Send(_ context.Context, text, system string) (string, error) {
	i := len(b.calls)
	b.calls = append(b.calls, backendCall{text: text, system: system})
	if i < len(b.errs) && b.errs[i] != nil {
		return "", b.errs[i]
	}
	if i < len(b.replies) {
		return b.replies[i], nil
	}
	return "", fmt.Errorf("unexpected call %d", i)
}

func newTestEngine(n int, backend Backend, rec *dispatchRecorder) *Engine {
	actions := make([]*trigger.Action, 0, n)
	for i := 1; i <= n; i++ {
		actions = append(actions, &trigger.Action{
			Title:             fmt.Sprintf("action %d", i),
			Description:       fmt.Sprintf("description %d", i),
			Task:              fmt.Sprintf("task %d", i),
			ParamsDescription: []string{"a"},
		})
	}
	return NewEngine(trigger.New(actions, rec.options()...), backend, nil)
}

func testMessage() trigger.Message {
	return trigger.NewMessage(
		"alice@example.com", "subject", "body", "email",
		time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	)
}

func (r *dispatchRecorder) assertCounts(t *testing.T, matched, notMatched, errored int) {
	t.Helper()
	if len(r.matched) != matched || len(r.notMatched) != notMatched || len(r.errored) != errored {
		t.Fatalf("dispatch counts matched=%d notMatched=%d errored=%d, want %d/%d/%d",
			len(r.matched), len(r.notMatched), len(r.errored), matched, notMatched, errored)
	}
}

func TestProcessMessageNotMatched(t *testing.T) {
	rec := &dispatchRecorder{}
	backend := &scriptedBackend{replies: []string{`{"type": "0"}`}}
	engine := newTestEngine(3, backend, rec)

	engine.ProcessMessage(context.Background(), testMessage())

	rec.assertCounts(t, 0, 1, 0)
	if len(backend.calls) != 1 {
		t.Errorf("expected a single backend call for an unmatched message, got %d", len(backend.calls))
	}
}

func TestProcessMessageMatchedTwoPhase(t *testing.T) {
	rec := &dispatchRecorder{}
	backend := &scriptedBackend{replies: []string{
		`{"type": "2"}`,
		`{"params": {"a": "x"}}`,
	}}
	engine := newTestEngine(3, backend, rec)

	engine.ProcessMessage(context.Background(), testMessage())

	rec.assertCounts(t, 1, 0, 0)
	call := rec.matched[0]
	if call.action.Title != "action 2" {
		t.Errorf("expected action 2 matched, got %q", call.action.Title)
	}
	if call.params["a"] != "x" {
		t.Errorf("expected params {a:x}, got %v", call.params)
	}

	if len(backend.calls) != 2 {
		t.Fatalf("expected two backend calls, got %d", len(backend.calls))
	}
	// The categorize call carries the catalog; the task call carries the
	// matched action's extended rendering.
	if !strings.Contains(backend.calls[0].system, "{TYPE:2. Title: action 2") {
		t.Errorf("categorize system instruction missing catalog:\n%s", backend.calls[0].system)
	}
	if !strings.Contains(backend.calls[1].text, "Task: task 2") {
		t.Errorf("task prompt missing extended rendering:\n%s", backend.calls[1].text)
	}
	if !strings.Contains(backend.calls[1].text, "From: alice@example.com") {
		t.Errorf("task prompt missing message text:\n%s", backend.calls[1].text)
	}
}

func TestProcessMessageUnexpectedType(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{name: "above range", reply: `{"type": "5"}`},
		{name: "negative", reply: `{"type": "-2"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &dispatchRecorder{}
			backend := &scriptedBackend{replies: []string{tt.reply}}
			engine := newTestEngine(3, backend, rec)

			engine.ProcessMessage(context.Background(), testMessage())

			rec.assertCounts(t, 0, 0, 1)
			if !IsUnexpectedTypeError(rec.errored[0]) {
				t.Errorf("expected UnexpectedTypeError, got %v", rec.errored[0])
			}
		})
	}
}

func TestProcessMessageParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		reason string
	}{
		{name: "not JSON", reply: "sorry, I cannot help with that", reason: "malformed JSON"},
		{name: "missing type key", reply: `{"answer": "2"}`, reason: `missing "type" key`},
		{name: "non-integer type", reply: `{"type": "two"}`, reason: "malformed JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &dispatchRecorder{}
			backend := &scriptedBackend{replies: []string{tt.reply}}
			engine := newTestEngine(3, backend, rec)

			engine.ProcessMessage(context.Background(), testMessage())

			rec.assertCounts(t, 0, 0, 1)
			if !IsParseError(rec.errored[0]) {
				t.Fatalf("expected ParseError, got %v", rec.errored[0])
			}
			if !strings.Contains(rec.errored[0].Error(), tt.reason) {
				t.Errorf("expected reason %q in %v", tt.reason, rec.errored[0])
			}
		})
	}
}

func TestProcessMessageBackendFailure(t *testing.T) {
	rec := &dispatchRecorder{}
	backend := &scriptedBackend{errs: []error{errors.New("connection refused")}}
	engine := newTestEngine(3, backend, rec)

	engine.ProcessMessage(context.Background(), testMessage())

	rec.assertCounts(t, 0, 0, 1)
	if !IsBackendError(rec.errored[0]) {
		t.Errorf("expected BackendError, got %v", rec.errored[0])
	}
}

func TestProcessMessageSecondPhaseFailure(t *testing.T) {
	rec := &dispatchRecorder{}
	backend := &scriptedBackend{
		replies: []string{`{"type": "1"}`, "not json at all"},
	}
	engine := newTestEngine(3, backend, rec)

	engine.ProcessMessage(context.Background(), testMessage())

	rec.assertCounts(t, 0, 0, 1)
	if !IsParseError(rec.errored[0]) {
		t.Errorf("expected ParseError from the task phase, got %v", rec.errored[0])
	}
}

func TestProcessMessageAbsentParamsDefaultEmpty(t *testing.T) {
	rec := &dispatchRecorder{}
	backend := &scriptedBackend{replies: []string{
		`{"type": "1"}`,
		`{}`,
	}}
	engine := newTestEngine(1, backend, rec)

	engine.ProcessMessage(context.Background(), testMessage())

	rec.assertCounts(t, 1, 0, 0)
	if rec.matched[0].params == nil || len(rec.matched[0].params) != 0 {
		t.Errorf("expected empty non-nil params, got %v", rec.matched[0].params)
	}
}

func TestProcessMessageStripsFences(t *testing.T) {
	rec := &dispatchRecorder{}
	backend := &scriptedBackend{replies: []string{
		"```json\n{\"type\": \"1\"}\n```",
		"```json\n{\"params\": {\"a\": \"y\"}}\n```",
	}}
	engine := newTestEngine(1, backend, rec)

	engine.ProcessMessage(context.Background(), testMessage())

	rec.assertCounts(t, 1, 0, 0)
	if rec.matched[0].params["a"] != "y" {
		t.Errorf("expected fenced replies parsed, got %v", rec.matched[0].params)
	}
}

func TestProcessMessageIgnoresParamsInCategorizeReply(t *testing.T) {
	// The single-call wire variant bundles params into the categorize
	// reply; this engine implements the two-phase contract and must take
	// params from the second call only.
	rec := &dispatchRecorder{}
	backend := &scriptedBackend{replies: []string{
		`{"type": "1", "params": {"a": "stale"}}`,
		`{"params": {"a": "fresh"}}`,
	}}
	engine := newTestEngine(1, backend, rec)

	engine.ProcessMessage(context.Background(), testMessage())

	rec.assertCounts(t, 1, 0, 0)
	if rec.matched[0].params["a"] != "fresh" {
		t.Errorf("expected params from the task phase, got %v", rec.matched[0].params)
	}
}

func TestProcessMessageZeroActions(t *testing.T) {
	rec := &dispatchRecorder{}
	backend := &scriptedBackend{replies: []string{`{"type": "0"}`}}
	engine := newTestEngine(0, backend, rec)

	engine.ProcessMessage(context.Background(), testMessage())

	rec.assertCounts(t, 0, 1, 0)
}
