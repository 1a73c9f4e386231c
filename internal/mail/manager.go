package mail

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Manager wires a Listener and a Processor around one task queue. The two
// run on independent session clones (sessions are stateful and must not be
// shared across goroutines) and communicate only through the queue.
type Manager struct {
	queue     *TaskQueue
	listener  *Listener
	processor *Processor
	log       *slog.Logger

	wg sync.WaitGroup
}

// ManagerConfig holds the Manager's construction parameters.
type ManagerConfig struct {
	Username           string
	Password           string
	Mailbox            string
	CheckInterval      time.Duration
	MaxSessionLifetime time.Duration

	// OnReceived is invoked for every decoded message. Nil falls back to
	// a log-only callback.
	OnReceived DeliveryFunc

	Logger *slog.Logger
}

// NewManager builds the pipeline: a queue, a Processor on one session
// clone, and a Listener on another.
func NewManager(session Session, cfg ManagerConfig) (*Manager, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	queue := NewTaskQueue()

	processor, err := NewProcessor(session.Clone(), queue, ProcessorConfig{
		Username:   cfg.Username,
		Password:   cfg.Password,
		Mailbox:    cfg.Mailbox,
		OnReceived: cfg.OnReceived,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	listener, err := NewListener(session.Clone(), queue, ListenerConfig{
		Username:           cfg.Username,
		Password:           cfg.Password,
		Mailbox:            cfg.Mailbox,
		CheckInterval:      cfg.CheckInterval,
		MaxSessionLifetime: cfg.MaxSessionLifetime,
		Logger:             cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &Manager{
		queue:     queue,
		listener:  listener,
		processor: processor,
		log:       cfg.Logger,
	}, nil
}

// Start runs the pipeline: the Processor in its own goroutine first, then
// the Listener on the calling goroutine. It blocks until the Listener
// returns and the Processor has drained its shutdown, then reports the
// Listener's fatal error, if any.
func (m *Manager) Start(ctx context.Context) error {
	m.log.Info("starting message processing")
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.processor.Run(ctx); err != nil {
			m.log.Error("processor failed", "error", err)
			m.listener.Stop()
		}
	}()

	m.log.Info("starting message listening")
	err := m.listener.Listen(ctx)

	m.wg.Wait()
	return err
}

// Stop requests a cooperative shutdown of the whole pipeline.
func (m *Manager) Stop() {
	m.listener.Stop()
}
