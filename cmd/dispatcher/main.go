package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/X1ag/PickupNotifier/internal/config"
	"github.com/X1ag/PickupNotifier/internal/infrastructure/line"
	"github.com/X1ag/PickupNotifier/internal/infrastructure/telegram"
	"github.com/X1ag/PickupNotifier/internal/infrastructure/twilio"
	"github.com/X1ag/PickupNotifier/internal/logger"
	"github.com/X1ag/PickupNotifier/internal/repository/postgres"
	"github.com/X1ag/PickupNotifier/internal/usecase"
	httpx "github.com/X1ag/PickupNotifier/transport/http"
	"github.com/X1ag/PickupNotifier/transport/worker"
)

func main() {
	cfg, err := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogPretty)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := postgres.RunMigrations(cfg.DatabaseURL, log); err != nil {
		log.Fatal().Err(err).Msg("cannot run migrations")
	}
	pool, gdb, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot connect to db")
	}
	defer pool.Close()

	pickupRepo := postgres.NewPickupRepository(pool)
	settingsRepo := postgres.NewSettingsRepository(gdb)

	callNotifier := usecase.NewCallNotifier(settingsRepo, twilio.NewClient(), cfg.DispatchLocation)
	messageNotifier := usecase.NewMessageNotifier(settingsRepo, map[string]usecase.ChatPusher{
		usecase.ProviderLine:     line.NewClient(cfg.SendTimeout),
		usecase.ProviderTelegram: telegram.NewClient(cfg.SendTimeout),
	}, cfg.DispatchLocation)

	dispatcher := worker.NewDispatcher([]usecase.Channel{
		usecase.NewWorkerCallChannel(pickupRepo, callNotifier),
		usecase.NewStaffMessageChannel(pickupRepo, messageNotifier),
	}, worker.Options{
		Interval:    cfg.DispatchInterval,
		Location:    cfg.DispatchLocation,
		MaxCatchUp:  cfg.DispatchMaxCatchUp,
		SendTimeout: cfg.SendTimeout,
	}, log)

	if cfg.DispatchEnabled {
		if err := dispatcher.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("cannot start dispatcher")
		}
	} else {
		log.Warn().Msg("dispatcher disabled by DISPATCH_ENABLED")
	}

	pickupUC := usecase.NewPickupUsecase(pickupRepo)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpx.NewRouter(cfg, log, dispatcher, settingsRepo, pickupUC),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	dispatcher.Stop()

	log.Info().Msg("shutdown complete")
}
