package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nhle/mailtrigger/internal/classify"
	"github.com/nhle/mailtrigger/internal/credential"
	"github.com/nhle/mailtrigger/internal/mail"
	"github.com/nhle/mailtrigger/internal/model"
	"github.com/nhle/mailtrigger/internal/store"
	"github.com/nhle/mailtrigger/internal/trigger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "mailtrigger: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", model.DefaultConfigPath(), "path to config file")
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if cfg.Mail.Username == "" {
		return fmt.Errorf("mail.username is not configured (see %s)", *configPath)
	}
	if len(cfg.Actions) == 0 {
		return fmt.Errorf("no actions configured (see %s)", *configPath)
	}

	imapPassword, err := credential.Get(credential.KeyIMAPPassword)
	if err != nil {
		return fmt.Errorf("IMAP password: %w", err)
	}
	apiKey, err := credential.Get(credential.KeyAnthropicAPI)
	if err != nil {
		return fmt.Errorf("API key: %w", err)
	}

	var archive store.Store
	var recorder *store.Recorder
	if cfg.Store.Path != "" {
		s, err := store.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer s.Close()
		archive = s
		recorder = store.NewRecorder(archive, log)
	}

	trig := buildTrigger(cfg.Actions, recorder, log)
	backend := classify.NewClaudeBackend(apiKey, cfg.AI.Model, cfg.AI.MaxTokens)
	engine := classify.NewEngine(trig, backend, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session := mail.NewIMAPSession(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.TLS)
	manager, err := mail.NewManager(session, mail.ManagerConfig{
		Username:           cfg.Mail.Username,
		Password:           imapPassword,
		Mailbox:            cfg.Mail.Mailbox,
		CheckInterval:      time.Duration(cfg.Mail.CheckIntervalSec) * time.Second,
		MaxSessionLifetime: time.Duration(cfg.Mail.MaxSessionLifetimeSec) * time.Second,
		OnReceived: func(msg trigger.Message, _ *mail.MessageData, seq uint32) {
			log.Info("dispatching message", "seq", seq, "subject", msg.Subject)
			engine.ProcessMessage(ctx, msg)
		},
		Logger: log,
	})
	if err != nil {
		return err
	}

	log.Info("mailtrigger starting",
		"mailbox", cfg.Mail.Mailbox,
		"actions", len(cfg.Actions),
		"model", cfg.AI.Model,
	)
	return manager.Start(ctx)
}

// buildTrigger turns the configured action declarations into a Trigger, in
// file order. Each action's perform callback logs its parameters; the
// Recorder, when an archive is configured, wraps all three callbacks with
// persistence.
func buildTrigger(actionCfgs []model.ActionConfig, recorder *store.Recorder, log *slog.Logger) *trigger.Trigger {
	actions := make([]*trigger.Action, 0, len(actionCfgs))
	for _, ac := range actionCfgs {
		ac := ac
		actions = append(actions, &trigger.Action{
			Title:             ac.Title,
			Description:       ac.Description,
			Task:              ac.Task,
			ParamsDescription: ac.Params,
			Perform: func(msg trigger.Message, params map[string]string) error {
				log.Info("action performed",
					"action", ac.Title,
					"sender", msg.Sender,
					"params", params,
				)
				return nil
			},
		})
	}

	if recorder == nil {
		return trigger.New(actions, trigger.WithLogger(log))
	}

	// Wrap every callback slot with persistence, delegating to the stock
	// behavior. The matched delegate resolves trig lazily: by dispatch
	// time the trigger exists.
	var trig *trigger.Trigger
	trig = trigger.New(actions,
		trigger.WithLogger(log),
		trigger.WithMatched(recorder.Matched(func(msg trigger.Message, action *trigger.Action, params map[string]string) {
			trigger.DefaultMatched(trig)(msg, action, params)
		})),
		trigger.WithNotMatched(recorder.NotMatched(func(msg trigger.Message) {
			trigger.DefaultNotMatched(trig)(msg)
		})),
		trigger.WithError(recorder.Error(func(msg trigger.Message, err error) {
			trigger.DefaultError(trig)(msg, err)
		})),
	)
	return trig
}
