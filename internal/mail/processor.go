package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nhle/mailtrigger/internal/trigger"
)

// DeliveryFunc receives each successfully decoded message along with the
// raw fetch data and the message's sequence number.
type DeliveryFunc func(msg trigger.Message, data *MessageData, seq uint32)

// Processor consumes position batches from the task queue, resolves them
// against the freshest mailbox listing, decodes each message, and hands it
// to the delivery callback. It runs as its own goroutine, started before
// the Listener, and blocks indefinitely on the queue; shutdown is the Stop
// entry.
type Processor struct {
	session  Session
	username string
	password string
	mailbox  string
	queue    *TaskQueue

	onReceived DeliveryFunc
	log        *slog.Logger
}

// ProcessorConfig holds the Processor's construction parameters. A nil
// OnReceived falls back to a callback that only logs; a nil logger falls
// back to slog.Default().
type ProcessorConfig struct {
	Username   string
	Password   string
	Mailbox    string
	OnReceived DeliveryFunc
	Logger     *slog.Logger
}

// NewProcessor creates a Processor over the given session and queue.
func NewProcessor(session Session, queue *TaskQueue, cfg ProcessorConfig) (*Processor, error) {
	if cfg.Username == "" || cfg.Password == "" || cfg.Mailbox == "" {
		return nil, fmt.Errorf("username, password, and mailbox must not be empty")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	p := &Processor{
		session:    session,
		username:   cfg.Username,
		password:   cfg.Password,
		mailbox:    cfg.Mailbox,
		queue:      queue,
		onReceived: cfg.OnReceived,
		log:        cfg.Logger,
	}
	if p.onReceived == nil {
		p.onReceived = defaultDelivery(p.log)
	}
	return p, nil
}

// Run authenticates, then consumes the queue until the Stop entry arrives.
// The session is logged out exactly once on every exit path. Per-batch and
// per-item failures are logged and skipped; only a session-level failure
// before the loop is returned.
func (p *Processor) Run(ctx context.Context) error {
	if err := p.session.Authenticate(ctx, p.username, p.password); err != nil {
		return err
	}
	defer func() {
		if err := p.session.Logout(context.Background()); err != nil {
			p.log.Error("processor logout", "error", err)
		}
		p.log.Info("processor stopped")
	}()

	if err := p.session.Select(ctx, p.mailbox); err != nil {
		return err
	}

	for {
		batch, stop := p.queue.Get()
		if stop {
			p.log.Info("received stop signal, exiting processing loop")
			return nil
		}

		p.log.Info("processing message batch", "positions", batch)
		if err := p.fetchBatch(ctx, batch); err != nil {
			// Partial-failure semantics: the batch is abandoned, the
			// loop keeps consuming.
			p.log.Error("fetching batch", "error", err)
		}
	}
}

// fetchBatch re-selects the mailbox, re-fetches the current listing (never
// cached: positions are only meaningful against the most recent listing),
// and processes each requested position. Out-of-range positions and
// per-item failures are logged and skipped.
func (p *Processor) fetchBatch(ctx context.Context, positions []uint32) error {
	if err := p.session.Select(ctx, p.mailbox); err != nil {
		return err
	}

	seqNums, err := p.session.Search(ctx)
	if err != nil {
		return err
	}
	if len(seqNums) == 0 {
		return fmt.Errorf("no messages found in mailbox %q", p.mailbox)
	}

	for _, pos := range positions {
		if pos < 1 || pos > uint32(len(seqNums)) {
			p.log.Warn("position out of range, skipping",
				"position", pos,
				"mailbox_size", len(seqNums),
			)
			continue
		}
		seq := seqNums[pos-1]
		p.processOne(ctx, seq)
	}
	return nil
}

// processOne fetches and decodes a single message and invokes the delivery
// callback. Failures are logged, never fatal to the batch.
func (p *Processor) processOne(ctx context.Context, seq uint32) {
	fetched, err := p.session.Fetch(ctx, []uint32{seq})
	if err != nil {
		p.log.Error("fetching message", "seq", seq, "error", err)
		return
	}

	data, ok := fetched[seq]
	if !ok {
		p.log.Error("fetch response missing message",
			"seq", seq,
			"error", &ResponseError{Seq: seq, Reason: "absent from fetch response"},
		)
		return
	}

	msg, err := DecodeMessage(data, seq)
	if err != nil {
		p.log.Error("decoding message", "seq", seq, "error", err)
		return
	}

	p.log.Info("message decoded", "seq", seq, "sender", msg.Sender, "subject", msg.Subject)
	p.onReceived(msg, data, seq)
}

// defaultDelivery logs the received message and nothing else.
func defaultDelivery(log *slog.Logger) DeliveryFunc {
	return func(msg trigger.Message, _ *MessageData, seq uint32) {
		log.Info("new message received", "seq", seq, "message", msg.String())
	}
}
