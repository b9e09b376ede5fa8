package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/antoniostano/contentdesk/internal/config"
	"github.com/antoniostano/contentdesk/internal/digest"
	"github.com/antoniostano/contentdesk/internal/httpapi"
	"github.com/antoniostano/contentdesk/internal/observability"
	"github.com/antoniostano/contentdesk/internal/tasks"
	"github.com/antoniostano/contentdesk/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config error")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal().Str("level", cfg.LogLevel).Msg("invalid LOG_LEVEL")
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	store, err := tasks.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	defer store.Close()
	if cfg.DatabaseURL == "" {
		log.Warn().Msg("DATABASE_URL not set, using in-memory store")
	}

	var messenger digest.Messenger
	if cfg.TelegramBotToken == "" {
		messenger = telegram.NewMock()
		log.Warn().Msg("TELEGRAM_BOT_TOKEN not set, outbound messages are dropped")
	} else {
		messenger = telegram.NewClient(cfg.TelegramBotToken, cfg.TelegramAPIBase)
	}
	if cfg.DigestChatID == 0 {
		log.Warn().Msg("DAILY_DIGEST_CHAT_ID not set, digests are generated but never dispatched")
	}

	svc := tasks.NewService(store)
	generator := digest.NewGenerator(store, messenger, cfg.DigestChatID, metrics)
	api := httpapi.New(svc, generator, messenger, metrics)

	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Info().Str("addr", cfg.BindAddr).Str("public_url", cfg.PublicAppURL).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		_ = httpServer.Close()
	}

	log.Info().Msg("shutdown complete")
}
