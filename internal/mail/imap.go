package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// eventBufferSize bounds how many unhandled server notifications a session
// buffers between polls. IDLE traffic is sparse; overflow drops the oldest
// information-free duplicates (the next EXISTS carries the current count).
const eventBufferSize = 64

// IMAPSession implements Session over go-imap v2. One IMAPSession owns one
// connection; the Listener and the Processor each run their own clone.
type IMAPSession struct {
	host string
	port string
	tls  bool

	client  *imapclient.Client
	idleCmd *imapclient.IdleCommand
	events  chan NotificationEvent
}

// NewIMAPSession creates an unconnected IMAP session for the given server.
func NewIMAPSession(host, port string, useTLS bool) *IMAPSession {
	return &IMAPSession{
		host:   host,
		port:   port,
		tls:    useTLS,
		events: make(chan NotificationEvent, eventBufferSize),
	}
}

// Clone returns a new unconnected session with the same dial parameters.
func (s *IMAPSession) Clone() Session {
	return NewIMAPSession(s.host, s.port, s.tls)
}

// Authenticate dials the server and logs in. Unilateral mailbox updates
// (EXISTS, EXPUNGE) received at any point after this are buffered for
// PollNotifications.
func (s *IMAPSession) Authenticate(_ context.Context, username, password string) error {
	addr := s.host + ":" + s.port

	options := &imapclient.Options{
		UnilateralDataHandler: &imapclient.UnilateralDataHandler{
			Mailbox: func(data *imapclient.UnilateralDataMailbox) {
				if data.NumMessages != nil {
					s.pushEvent(NotificationEvent{
						Kind: EventExists,
						Seq:  *data.NumMessages,
					})
				}
			},
			Expunge: func(seqNum uint32) {
				s.pushEvent(NotificationEvent{Kind: EventExpunge, Seq: seqNum})
			},
		},
	}

	var client *imapclient.Client
	var err error
	if s.tls {
		client, err = imapclient.DialTLS(addr, options)
	} else {
		client, err = imapclient.DialStartTLS(addr, options)
	}
	if err != nil {
		return &ConnectionError{Op: "dial", Err: fmt.Errorf("connecting to %s: %w", addr, err)}
	}

	if err := client.Login(username, password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return &ConnectionError{
			Op:  "login",
			Err: fmt.Errorf("authentication failed for %s: %w", username, err),
		}
	}

	s.client = client
	return nil
}

// Select opens the given mailbox.
func (s *IMAPSession) Select(_ context.Context, mailbox string) error {
	if s.client == nil {
		return &ConnectionError{Op: "select", Err: errNotConnected}
	}
	if _, err := s.client.Select(mailbox, nil).Wait(); err != nil {
		return &ConnectionError{Op: "select", Err: fmt.Errorf("selecting %s: %w", mailbox, err)}
	}
	return nil
}

// Search returns all message sequence numbers in the selected mailbox in
// mailbox order.
func (s *IMAPSession) Search(_ context.Context) ([]uint32, error) {
	if s.client == nil {
		return nil, &ConnectionError{Op: "search", Err: errNotConnected}
	}
	data, err := s.client.Search(&imap.SearchCriteria{}, nil).Wait()
	if err != nil {
		return nil, &ConnectionError{Op: "search", Err: fmt.Errorf("searching messages: %w", err)}
	}
	return data.AllSeqNums(), nil
}

// Fetch retrieves the envelope, internal date, and full raw body for each
// requested sequence number. Messages the server omits from the response
// are simply absent from the result map.
func (s *IMAPSession) Fetch(_ context.Context, seqNums []uint32) (map[uint32]*MessageData, error) {
	if s.client == nil {
		return nil, &ConnectionError{Op: "fetch", Err: errNotConnected}
	}
	if len(seqNums) == 0 {
		return map[uint32]*MessageData{}, nil
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope:     true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{bodySection},
	}

	seqSet := imap.SeqSetNum(seqNums...)
	fetchCmd := s.client.Fetch(seqSet, fetchOpts)
	defer fetchCmd.Close()

	result := make(map[uint32]*MessageData, len(seqNums))
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		data := &MessageData{
			InternalDate: buf.InternalDate,
			Raw:          buf.FindBodySection(bodySection),
		}
		if buf.Envelope != nil {
			data.Envelope.Subject = buf.Envelope.Subject
			if len(buf.Envelope.From) > 0 {
				data.Envelope.Sender = buf.Envelope.From[0].Addr()
			}
		}
		result[buf.SeqNum] = data
	}

	if err := fetchCmd.Close(); err != nil {
		return result, &ConnectionError{Op: "fetch", Err: fmt.Errorf("fetching messages: %w", err)}
	}
	return result, nil
}

// EnterNotificationSession issues IDLE. The server pushes mailbox updates
// until EndNotificationSession.
func (s *IMAPSession) EnterNotificationSession(_ context.Context) error {
	if s.client == nil {
		return &ConnectionError{Op: "idle", Err: errNotConnected}
	}
	idleCmd, err := s.client.Idle()
	if err != nil {
		return &ConnectionError{Op: "idle", Err: fmt.Errorf("entering IDLE: %w", err)}
	}
	s.idleCmd = idleCmd
	return nil
}

// PollNotifications drains buffered notifications, waiting up to timeout
// for the first one.
func (s *IMAPSession) PollNotifications(ctx context.Context, timeout time.Duration) ([]NotificationEvent, error) {
	var events []NotificationEvent

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev := <-s.events:
		events = append(events, ev)
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// Drain whatever else arrived without waiting again.
	for {
		select {
		case ev := <-s.events:
			events = append(events, ev)
		default:
			return events, nil
		}
	}
}

// EndNotificationSession terminates the running IDLE command.
func (s *IMAPSession) EndNotificationSession(_ context.Context) error {
	if s.idleCmd == nil {
		return nil
	}
	idleCmd := s.idleCmd
	s.idleCmd = nil
	if err := idleCmd.Close(); err != nil {
		return &ConnectionError{Op: "idle", Err: fmt.Errorf("ending IDLE: %w", err)}
	}
	return idleCmd.Wait()
}

// Logout ends the session and closes the connection.
func (s *IMAPSession) Logout(_ context.Context) error {
	if s.client == nil {
		return nil
	}
	client := s.client
	s.client = nil
	if err := client.Logout().Wait(); err != nil {
		return &ConnectionError{Op: "logout", Err: err}
	}
	return nil
}

// pushEvent buffers a server notification, dropping it if the buffer is
// full. Called from the imapclient decoder goroutine.
func (s *IMAPSession) pushEvent(ev NotificationEvent) {
	select {
	case s.events <- ev:
	default:
	}
}

var errNotConnected = fmt.Errorf("not connected")
