package trigger

import (
	"fmt"
	"strings"
)

// PerformFunc is the user-supplied behavior of an Action. It receives the
// matched message and the parameters extracted by the classification backend.
// A non-nil error is routed to the owning Trigger's error callback.
type PerformFunc func(msg Message, params map[string]string) error

// Action describes one recognizable message category: what it is, what
// parameters it needs, and what to do when a message matches it.
// Actions are immutable after construction and owned by the Trigger that
// registers them.
type Action struct {
	// Title is a short human-readable name for the action.
	Title string

	// Description tells the classification backend what kind of message
	// belongs to this category.
	Description string

	// Task optionally instructs the backend what to do during the
	// task-execution phase (e.g. "draft a short reply"). Empty means the
	// phase only extracts parameters.
	Task string

	// ParamsDescription lists, in order, the parameters the backend should
	// extract or generate for this action.
	ParamsDescription []string

	// Perform is invoked when a message matches this action.
	Perform PerformFunc
}

// Display renders the action's basic form (title, description, parameter
// descriptions) for the categorize-phase catalog.
func (a *Action) Display() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\n", a.Title)
	fmt.Fprintf(&sb, "Description: %s\n", a.Description)
	sb.WriteString("Parameter Descriptions:\n")
	sb.WriteString("[" + strings.Join(a.ParamsDescription, ",") + "]")
	return sb.String()
}

// DisplayWithTask renders the extended form used to build the task-execution
// prompt: the basic form plus the task instruction.
func (a *Action) DisplayWithTask() string {
	var sb strings.Builder
	sb.WriteString(a.Display())
	fmt.Fprintf(&sb, "\nTask: %s", a.Task)
	return sb.String()
}

func (a *Action) String() string {
	return fmt.Sprintf("Action(title=%q, description=%q)", a.Title, a.Description)
}
