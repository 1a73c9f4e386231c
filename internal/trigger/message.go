package trigger

import (
	"fmt"
	"time"
)

// Message is a normalized inbound item from any mail-like source.
// It is a value type and is never mutated after construction.
type Message struct {
	Sender  string
	Subject string
	Body    string
	Source  string
	Date    time.Time
}

// NewMessage constructs a Message. An empty source defaults to "unknown"
// and a zero date defaults to the current time.
func NewMessage(sender, subject, body, source string, date time.Time) Message {
	if source == "" {
		source = "unknown"
	}
	if date.IsZero() {
		date = time.Now()
	}
	return Message{
		Sender:  sender,
		Subject: subject,
		Body:    body,
		Source:  source,
		Date:    date,
	}
}

// Display renders the message in the structured plain-text form sent to the
// classification backend as user content.
func (m Message) Display() string {
	return fmt.Sprintf(
		"Message Details:\n"+
			"----------------\n"+
			"From: %s\n"+
			"Source: %s\n"+
			"Date: %s\n"+
			"Subject: %s\n"+
			"----------------\n"+
			"Body:\n%s",
		m.Sender,
		m.Source,
		m.Date.Format("2006-01-02 15:04:05"),
		m.Subject,
		m.Body,
	)
}

func (m Message) String() string {
	return fmt.Sprintf("Message from %s with subject: %s", m.Sender, m.Subject)
}
