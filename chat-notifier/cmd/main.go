package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-notifier/internal/client"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-notifier/internal/config"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-notifier/internal/reconciler"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/log"
)

// logSink prints surfaced messages. Escalated ones are logged at warn so a
// terminal user notices them.
type logSink struct {
	logger zerolog.Logger
}

func (s logSink) Notify(n reconciler.Notification) {
	evt := s.logger.Info()
	if n.Escalate {
		evt = s.logger.Warn()
	}
	evt.Str(log.FieldChatID, n.ChatID).
		Str(log.FieldMessageID, n.MessageID).
		Str("from", n.SenderName).
		Time("sent_at", n.CreatedAt).
		Msg(n.Preview)
}

func (s logSink) Unavailable(reason error) {
	s.logger.Error().Err(reason).Msg("notifications unavailable, send SIGHUP to retry")
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := log.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Init(log.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, ServiceName: "chat-notifier"})
	logger := log.L()
	cfg.WatchLogLevel(func(level string) {
		log.SetLevel(level)
		logger.Info().Str("level", level).Msg("log level changed")
	})

	if cfg.API.Token == "" {
		logger.Fatal().Msg("api.token is required")
	}
	if err := cfg.ResolveUserID(); err != nil {
		logger.Fatal().Err(err).Msg("cannot tell which messages are the user's own")
	}

	focus := reconciler.NewFocusPolicy(false)
	rec := reconciler.New(
		client.NewHTTPFetcher(cfg.API),
		logSink{logger: log.Component("notifications")},
		reconciler.Options{
			UserID:        cfg.Reconciler.UserID,
			Interval:      cfg.Reconciler.Interval,
			MaxErrors:     cfg.Reconciler.MaxErrors,
			FetchLimit:    cfg.Reconciler.FetchLimit,
			PreviewLength: cfg.Reconciler.PreviewLength,
			Policy:        focus,
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec.Start(ctx)
	logger.Info().
		Str("api", cfg.API.BaseURL).
		Str(log.FieldUserID, cfg.Reconciler.UserID).
		Dur("interval", cfg.Reconciler.Interval).
		Msg("chat notifier started")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGUSR1)

	for sig := range sigs {
		switch sig {
		case syscall.SIGHUP:
			rec.Reset()
		case syscall.SIGUSR1:
			logger.Info().Bool("focused", focus.Toggle()).Msg("focus toggled")
		default:
			logger.Info().Msg("shutting down chat notifier")
			rec.Stop()
			logger.Info().Msg("chat notifier stopped")
			return
		}
	}
}
