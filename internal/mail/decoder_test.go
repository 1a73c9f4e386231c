package mail

import (
	"strings"
	"testing"
	"time"
)

func TestDecodeMessagePlainText(t *testing.T) {
	data := plainMessage("alice@example.com", "hello", "just the body")

	msg, err := DecodeMessage(data, 1)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if msg.Sender != "alice@example.com" || msg.Subject != "hello" {
		t.Errorf("unexpected envelope mapping: %+v", msg)
	}
	if msg.Body != "just the body" {
		t.Errorf("expected text/plain body extracted, got %q", msg.Body)
	}
	if msg.Source != "email" {
		t.Errorf("expected source tag %q, got %q", "email", msg.Source)
	}
	if !msg.Date.Equal(time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)) {
		t.Errorf("expected internal date carried over, got %v", msg.Date)
	}
}

func TestDecodeMessageMultipartAlternative(t *testing.T) {
	raw := strings.Join([]string{
		"From: bob@example.com",
		"Subject: multipart",
		`Content-Type: multipart/alternative; boundary="sep"`,
		"",
		"--sep",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<p>rendered</p>",
		"--sep",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"plain wins",
		"--sep--",
		"",
	}, "\r\n")

	data := &MessageData{
		Envelope:     Envelope{Sender: "bob@example.com", Subject: "multipart"},
		InternalDate: time.Now(),
		Raw:          []byte(raw),
	}

	msg, err := DecodeMessage(data, 2)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if !strings.Contains(msg.Body, "plain wins") {
		t.Errorf("expected the text/plain alternative, got %q", msg.Body)
	}
	if strings.Contains(msg.Body, "rendered") {
		t.Errorf("HTML alternative leaked into body: %q", msg.Body)
	}
}

func TestDecodeMessageUnparseableBody(t *testing.T) {
	data := &MessageData{
		Envelope: Envelope{Sender: "carol@example.com", Subject: "raw"},
		Raw:      []byte("no headers at all, just text"),
	}

	msg, err := DecodeMessage(data, 3)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if msg.Body != "no headers at all, just text" {
		t.Errorf("unparseable body must be kept verbatim, got %q", msg.Body)
	}
}

func TestDecodeMessageEmptyBody(t *testing.T) {
	data := &MessageData{
		Envelope: Envelope{Sender: "dave@example.com", Subject: "empty"},
	}

	msg, err := DecodeMessage(data, 4)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if msg.Body != "" {
		t.Errorf("expected empty body, got %q", msg.Body)
	}
}

func TestDecodeMessageFailures(t *testing.T) {
	tests := []struct {
		name string
		data *MessageData
	}{
		{name: "nil fetch data", data: nil},
		{name: "empty envelope", data: &MessageData{Raw: []byte("body")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeMessage(tt.data, 9)
			if !IsResponseError(err) {
				t.Errorf("expected ResponseError, got %v", err)
			}
		})
	}
}
