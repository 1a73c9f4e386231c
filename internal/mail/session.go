package mail

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// EventKind identifies a server push notification observed during a
// notification (IDLE) session.
type EventKind string

const (
	// EventExists signals a new item; Seq carries the mailbox's new
	// message count, which is also the 1-based position of the newest
	// message.
	EventExists EventKind = "exists"

	// EventExpunge signals a removed item.
	EventExpunge EventKind = "expunge"
)

// NotificationEvent is one server push notification.
type NotificationEvent struct {
	Kind EventKind
	Seq  uint32
}

// Envelope holds the decoded envelope fields needed to normalize a message.
type Envelope struct {
	Sender  string
	Subject string
}

// MessageData is the raw fetch result for one message: the envelope, the
// server's internal date, and the full RFC 5322 body bytes.
type MessageData struct {
	Envelope     Envelope
	InternalDate time.Time
	Raw          []byte
}

// Session is the mail session collaborator contract. Framing, encoding and
// the authentication handshake are the implementation's responsibility.
// Sessions are stateful and must not be shared across goroutines; Clone
// yields an independent, unconnected session with the same dial parameters.
type Session interface {
	// Authenticate connects and logs in.
	Authenticate(ctx context.Context, username, password string) error

	// Select opens the given mailbox.
	Select(ctx context.Context, mailbox string) error

	// Search returns the ordered list of message sequence numbers in the
	// selected mailbox.
	Search(ctx context.Context) ([]uint32, error)

	// Fetch retrieves envelope, internal date, and raw body for the given
	// sequence numbers.
	Fetch(ctx context.Context, seqNums []uint32) (map[uint32]*MessageData, error)

	// EnterNotificationSession starts a push-notification (IDLE) session.
	EnterNotificationSession(ctx context.Context) error

	// PollNotifications waits up to timeout for buffered server
	// notifications and returns those received so far. An empty slice
	// means the timeout elapsed quietly.
	PollNotifications(ctx context.Context, timeout time.Duration) ([]NotificationEvent, error)

	// EndNotificationSession terminates the push-notification session.
	EndNotificationSession(ctx context.Context) error

	// Logout ends the session and closes the connection.
	Logout(ctx context.Context) error

	// Clone returns a new unconnected session with the same dial
	// parameters.
	Clone() Session
}

// ConnectionError is a session-level failure: losing it is fatal to the
// owning goroutine and tears down the whole pipeline via Stop propagation.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("mail session %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IsConnectionError reports whether err (or any error in its chain) is a
// ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// ResponseError is a malformed or incomplete server response for a single
// item; the item is skipped and the batch continues.
type ResponseError struct {
	Seq    uint32
	Reason string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("message %d: %s", e.Seq, e.Reason)
}

// IsResponseError reports whether err (or any error in its chain) is a
// ResponseError.
func IsResponseError(err error) bool {
	var re *ResponseError
	return errors.As(err, &re)
}
