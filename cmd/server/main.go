package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/Consult/internal/adapters/http"
	"github.com/dkeye/Consult/internal/adapters/notify"
	"github.com/dkeye/Consult/internal/adapters/store"
	"github.com/dkeye/Consult/internal/adapters/summary"
	"github.com/dkeye/Consult/internal/app"
	"github.com/dkeye/Consult/internal/app/orch"
	"github.com/dkeye/Consult/internal/config"
	"github.com/dkeye/Consult/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", cfg.DBPath).Msg("failed to open database")
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("close database")
		}
	}()

	notifiers := notify.Multi{
		notify.NewEmail(notify.SMTPConfig{
			Host:    cfg.SMTPHost,
			Port:    cfg.SMTPPort,
			User:    cfg.SMTPUser,
			Pass:    cfg.SMTPPass,
			From:    cfg.SMTPFrom,
			Company: cfg.CompanyName,
		}, st),
	}
	if cfg.NATSURL != "" {
		nc, err := notify.Connect(cfg.NATSURL, "consult")
		if err != nil {
			log.Error().Err(err).Str("url", cfg.NATSURL).Msg("NATS unavailable, lifecycle events will not be published")
		} else {
			defer nc.Drain()
			notifiers = append(notifiers, &notify.NATS{Conn: nc, Prefix: cfg.NATSSubjectPrefix})
		}
	}

	var summarizer core.Summarizer
	if cfg.GeminiAPIKey != "" {
		summarizer = summary.NewGemini(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiEndpoint)
	} else {
		log.Warn().Msg("gemini_api_key not set, meetings will be finalized without a summary")
	}

	rooms := app.NewRoomManager()
	tasks := &app.Detached{}
	o := &orch.Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    rooms,
		Gate: &app.Gate{
			Rooms:   rooms,
			Limiter: app.NewSourceRateLimiter(cfg.RateLimitAttempts, cfg.RateLimitWindow),
			Tokens:  st,
		},
		Policy:              app.SimplePolicy{},
		Store:               st,
		Summarizer:          summarizer,
		Notifier:            notifiers,
		Tasks:               tasks,
		ICEServers:          cfg.WebRTCICEServers(),
		Capacity:            cfg.RoomCapacity,
		CollaboratorTimeout: cfg.CollaboratorTimeout,
	}
	go o.Run(ctx, cfg.PurgeInterval)

	r := router.SetupRouter(ctx, cfg, o, st)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Consult server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	// Hijacked WebSocket connections are not tracked by Shutdown, so live
	// meetings are finalized here before the collaborators are awaited.
	o.Shutdown()
	tasks.Close()
	log.Info().Msg("Server exited gracefully")
}
