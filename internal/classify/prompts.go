package classify

import (
	"encoding/json"
	"fmt"

	"github.com/nhle/mailtrigger/internal/trigger"
)

// categorizeTemplate is the fixed instruction block for the categorize
// phase. The live action catalog is appended under message_types before
// sending.
type categorizeTemplate struct {
	Purpose      string   `json:"purpose"`
	Instructions []string `json:"instructions"`
	MessageTypes string   `json:"message_types"`
}

var categorizeInstructions = []string{
	"You will receive a message.",
	"Categorize it into exactly one of the given message types.",
	`Reply in strict JSON like this: {"type": "<message type number>"}.`,
	"If the message does not match any type, reply with a type equal to 0.",
	"Do not include any text outside the JSON object.",
}

// categorizeSystem builds the system instruction for the categorize phase,
// embedding the trigger's catalog numbered 1..N in registration order.
func categorizeSystem(t *trigger.Trigger) (string, error) {
	tmpl := categorizeTemplate{
		Purpose: "Categorize incoming messages based on predefined " +
			"message types and their descriptions.",
		Instructions: categorizeInstructions,
		MessageTypes: t.DisplayActions(),
	}
	out, err := json.Marshal(tmpl)
	if err != nil {
		return "", fmt.Errorf("marshaling categorize instruction: %w", err)
	}
	return string(out), nil
}

// performTemplate is the fixed instruction block for the task-execution
// phase.
type performTemplate struct {
	Purpose      string   `json:"purpose"`
	Instructions []string `json:"instructions"`
}

var performInstructions = []string{
	"You will receive an action definition followed by the message that matched it.",
	"Extract the parameters the action describes from the message.",
	"If the action's task asks you to generate content, generate it and include it as a param.",
	`Reply in strict JSON like this: {"params": {"<name>": "<string value>"}}.`,
	"Every param value must be a string.",
	"Do not include any text outside the JSON object.",
}

// performSystem builds the system instruction for the task-execution phase.
func performSystem() (string, error) {
	tmpl := performTemplate{
		Purpose: "Perform the task of a matched action: extract or generate " +
			"its parameters from the message.",
		Instructions: performInstructions,
	}
	out, err := json.Marshal(tmpl)
	if err != nil {
		return "", fmt.Errorf("marshaling perform instruction: %w", err)
	}
	return string(out), nil
}

// performPrompt builds the user content for the task-execution phase from
// the matched action's extended rendering plus the message text.
func performPrompt(action *trigger.Action, msg trigger.Message) string {
	return fmt.Sprintf("Matched Action:\n%s\n\n%s", action.DisplayWithTask(), msg.Display())
}
