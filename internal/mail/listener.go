package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	// defaultCheckInterval is how long one poll tick waits for server
	// notifications.
	defaultCheckInterval = 2 * time.Second

	// defaultMaxSessionLifetime is how long a single notification session
	// may run before it is proactively renewed. IMAP servers drop IDLE
	// commands that run longer than ~29 minutes; 15 minutes stays well
	// inside every implementation observed.
	defaultMaxSessionLifetime = 15 * time.Minute
)

// Listener owns a persistent session, converts server push notifications
// into queue batches, and renews its notification session before the server
// drops it. A Listener failure is fail-fast: it tears the session down,
// enqueues Stop so the Processor also exits, and returns. It is never
// retried internally.
type Listener struct {
	session  Session
	username string
	password string
	mailbox  string
	queue    *TaskQueue

	checkInterval      time.Duration
	maxSessionLifetime time.Duration
	sessionUptime      time.Duration

	log      *slog.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

// ListenerConfig holds the Listener's construction parameters. Zero
// durations fall back to defaults; a nil logger falls back to
// slog.Default().
type ListenerConfig struct {
	Username           string
	Password           string
	Mailbox            string
	CheckInterval      time.Duration
	MaxSessionLifetime time.Duration
	Logger             *slog.Logger
}

// NewListener creates a Listener over the given session and queue.
func NewListener(session Session, queue *TaskQueue, cfg ListenerConfig) (*Listener, error) {
	if cfg.Username == "" || cfg.Password == "" || cfg.Mailbox == "" {
		return nil, fmt.Errorf("username, password, and mailbox must not be empty")
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = defaultCheckInterval
	}
	if cfg.MaxSessionLifetime <= 0 {
		cfg.MaxSessionLifetime = defaultMaxSessionLifetime
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Listener{
		session:            session,
		username:           cfg.Username,
		password:           cfg.Password,
		mailbox:            cfg.Mailbox,
		queue:              queue,
		checkInterval:      cfg.CheckInterval,
		maxSessionLifetime: cfg.MaxSessionLifetime,
		log:                cfg.Logger,
		stopCh:             make(chan struct{}),
	}, nil
}

// Stop requests a cooperative shutdown. The listener observes it on its
// next loop iteration; an in-flight poll completes first.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// Listen authenticates, selects the mailbox, enters the notification
// session, and loops converting new-item notifications into queue batches
// until stopped or a session failure occurs. On any exit it ends the
// notification session, logs out, and enqueues Stop, then returns the
// fatal error if there was one.
func (l *Listener) Listen(ctx context.Context) error {
	defer l.teardown()

	if err := l.session.Authenticate(ctx, l.username, l.password); err != nil {
		return err
	}
	if err := l.session.Select(ctx, l.mailbox); err != nil {
		return err
	}
	if err := l.session.EnterNotificationSession(ctx); err != nil {
		return err
	}
	l.log.Info("entered notification session", "mailbox", l.mailbox)

	for {
		select {
		case <-ctx.Done():
			l.log.Info("listener shutting down", "reason", ctx.Err())
			return nil
		case <-l.stopCh:
			l.log.Info("listener shutting down", "reason", "stop requested")
			return nil
		default:
		}

		events, err := l.session.PollNotifications(ctx, l.checkInterval)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("polling notifications: %w", err)
		}
		l.sessionUptime += l.checkInterval

		l.handleEvents(events)

		if l.sessionUptime >= l.maxSessionLifetime {
			if err := l.renewSession(ctx); err != nil {
				return fmt.Errorf("renewing notification session: %w", err)
			}
		}
	}
}

// handleEvents filters new-item notifications and pushes their 1-based
// positions as one batch.
func (l *Listener) handleEvents(events []NotificationEvent) {
	if len(events) == 0 {
		return
	}

	var positions []uint32
	for _, ev := range events {
		if ev.Kind == EventExists {
			positions = append(positions, ev.Seq)
		}
	}
	if len(positions) == 0 {
		return
	}

	l.log.Info("new messages detected", "positions", positions)
	l.queue.PutBatch(positions)
}

// renewSession ends and restarts the notification session and resets the
// accumulated uptime.
func (l *Listener) renewSession(ctx context.Context) error {
	if err := l.session.EndNotificationSession(ctx); err != nil {
		return err
	}
	if err := l.session.EnterNotificationSession(ctx); err != nil {
		return err
	}
	l.sessionUptime = 0
	l.log.Info("notification session renewed", "mailbox", l.mailbox)
	return nil
}

// teardown ends the notification session, logs out, and propagates Stop to
// the Processor. Errors here are logged, not returned: the pipeline is
// already coming down.
func (l *Listener) teardown() {
	ctx := context.Background()
	if err := l.session.EndNotificationSession(ctx); err != nil {
		l.log.Error("ending notification session", "error", err)
	}
	if err := l.session.Logout(ctx); err != nil {
		l.log.Error("listener logout", "error", err)
	}
	l.queue.PutStop()
	l.log.Info("listener stopped")
}
