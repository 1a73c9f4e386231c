package trigger

import (
	"fmt"
	"log/slog"
	"strings"
)

// MatchedFunc handles a message that was classified into one of the
// registered actions. params holds the backend-extracted parameters.
type MatchedFunc func(msg Message, action *Action, params map[string]string)

// NotMatchedFunc handles a message the backend classified as type 0.
type NotMatchedFunc func(msg Message)

// ErrorFunc handles any failure while classifying or dispatching a message.
type ErrorFunc func(msg Message, err error)

// ActionError wraps a failure raised by a user Action's Perform callback.
// It is caught once at the Trigger boundary and routed to the error callback;
// it never propagates past the Trigger.
type ActionError struct {
	ActionTitle string
	Err         error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %q failed: %v", e.ActionTitle, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// Trigger is an ordered, immutable-after-construction registry of Actions
// plus the three dispatch callbacks. The 1-based position of an action in
// the registry is its stable type id for the registry's lifetime; type id 0
// is reserved for "no match".
type Trigger struct {
	actions []*Action

	onMatched    MatchedFunc
	onNotMatched NotMatchedFunc
	onError      ErrorFunc

	log *slog.Logger
}

// Option customizes a Trigger at construction time.
type Option func(*Trigger)

// WithMatched replaces the default matched callback.
func WithMatched(fn MatchedFunc) Option {
	return func(t *Trigger) { t.onMatched = fn }
}

// WithNotMatched replaces the default not-matched callback.
func WithNotMatched(fn NotMatchedFunc) Option {
	return func(t *Trigger) { t.onNotMatched = fn }
}

// WithError replaces the default error callback.
func WithError(fn ErrorFunc) Option {
	return func(t *Trigger) { t.onError = fn }
}

// WithLogger sets the logger used by the default callbacks.
func WithLogger(log *slog.Logger) Option {
	return func(t *Trigger) { t.log = log }
}

// New creates a Trigger over the given actions. The action slice is copied;
// registration order is fixed from here on. Callbacks not supplied via
// options get the default implementations.
func New(actions []*Action, opts ...Option) *Trigger {
	t := &Trigger{
		actions: append([]*Action(nil), actions...),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.log == nil {
		t.log = slog.Default()
	}
	if t.onError == nil {
		t.onError = defaultErrorHandler(t)
	}
	if t.onMatched == nil {
		t.onMatched = defaultMatchedHandler(t)
	}
	if t.onNotMatched == nil {
		t.onNotMatched = defaultNotMatchedHandler(t)
	}
	return t
}

// Actions returns the registered actions in registration order. The returned
// slice is a copy; the registry itself cannot be reordered or extended.
func (t *Trigger) Actions() []*Action {
	return append([]*Action(nil), t.actions...)
}

// Len returns the number of registered actions, i.e. the largest valid
// type id.
func (t *Trigger) Len() int { return len(t.actions) }

// Action returns the action for the given 1-based type id, or nil if the id
// is out of range.
func (t *Trigger) Action(typeID int) *Action {
	if typeID < 1 || typeID > len(t.actions) {
		return nil
	}
	return t.actions[typeID-1]
}

// DisplayActions renders the catalog consumed by the classification backend:
// one entry per action, numbered 1..N in registration order. The numbering
// is exactly the type id contract.
func (t *Trigger) DisplayActions() string {
	var sb strings.Builder
	for i, action := range t.actions {
		fmt.Fprintf(&sb, "{TYPE:%d. %s},", i+1, action.Display())
	}
	return sb.String()
}

// OnMessageMatched dispatches a matched message to the configured callback.
func (t *Trigger) OnMessageMatched(msg Message, action *Action, params map[string]string) {
	t.onMatched(msg, action, params)
}

// OnMessageNotMatched dispatches an unmatched message to the configured
// callback.
func (t *Trigger) OnMessageNotMatched(msg Message) {
	t.onNotMatched(msg)
}

// OnMessageError dispatches a processing failure to the configured callback.
func (t *Trigger) OnMessageError(msg Message, err error) {
	t.onError(msg, err)
}

// DefaultMatched returns the default matched callback for t. Exposed so
// wrappers (e.g. persistence decorators) can delegate to the stock
// behavior.
func DefaultMatched(t *Trigger) MatchedFunc { return defaultMatchedHandler(t) }

// DefaultNotMatched returns the default not-matched callback for t.
func DefaultNotMatched(t *Trigger) NotMatchedFunc { return defaultNotMatchedHandler(t) }

// DefaultError returns the default error callback for t.
func DefaultError(t *Trigger) ErrorFunc { return defaultErrorHandler(t) }

// defaultMatchedHandler performs the matched action directly. Failures from
// the user callback, whether returned or panicked, are converted into an
// ActionError and handed to the error callback exactly once.
func defaultMatchedHandler(t *Trigger) MatchedFunc {
	return func(msg Message, action *Action, params map[string]string) {
		err := performAction(action, msg, params)
		if err != nil {
			t.OnMessageError(msg, &ActionError{ActionTitle: action.Title, Err: err})
		}
	}
}

// performAction invokes the action's Perform callback, recovering a panic
// into an error so nothing escapes the Trigger boundary.
func performAction(action *Action, msg Message, params map[string]string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if action.Perform == nil {
		return nil
	}
	return action.Perform(msg, params)
}

// defaultNotMatchedHandler logs the unmatched message and nothing else.
func defaultNotMatchedHandler(t *Trigger) NotMatchedFunc {
	return func(msg Message) {
		t.log.Info("no action matched for message",
			"sender", msg.Sender,
			"subject", msg.Subject,
		)
	}
}

// defaultErrorHandler logs the failure and nothing else.
func defaultErrorHandler(t *Trigger) ErrorFunc {
	return func(msg Message, err error) {
		t.log.Error("error processing message",
			"sender", msg.Sender,
			"subject", msg.Subject,
			"error", err,
		)
	}
}
