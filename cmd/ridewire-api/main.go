// README: Entry point; loads config, wires services, starts the HTTP server and outbox relay.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ridewire/internal/config"
	"ridewire/internal/events"
	httptransport "ridewire/internal/http"
	"ridewire/internal/http/handlers"
	"ridewire/internal/infra"
	"ridewire/internal/maps"
	"ridewire/internal/migrate"
	"ridewire/internal/modules/geo"
	"ridewire/internal/modules/ride"
	"ridewire/internal/modules/stream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.Log.Level)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Error("postgres init", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	if err := migrate.Run(ctx, dbPool); err != nil {
		logger.Error("migrations", "error", err)
		os.Exit(1)
	}

	redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr)
	if err != nil {
		logger.Error("redis init", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	var bus events.Publisher = events.NopPublisher{}
	if cfg.AMQP.URL != "off" {
		amqpConn, amqpCh, err := infra.NewRabbit(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			logger.Error("rabbitmq init", "error", err)
			os.Exit(1)
		}
		defer amqpConn.Close()
		bus = events.NewAMQPPublisher(amqpCh, cfg.AMQP.Exchange, logger)
	} else {
		logger.Warn("event bus disabled, events are dropped")
	}

	rideStore := ride.NewPGStore(dbPool)
	rideSvc := ride.NewService(rideStore)
	relay := ride.NewRelay(rideStore, bus, logger, cfg.Outbox.PollInterval, cfg.Outbox.BatchSize)

	geoStore := geo.NewStore(redisClient)
	hub := stream.NewHub()
	streamSvc := stream.NewService(hub, geoStore, rideSvc, bus, logger)

	var routes handlers.TravelEstimator
	if cfg.Maps.APIKey != "" {
		routeSvc, err := maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			logger.Error("maps init", "error", err)
			os.Exit(1)
		}
		routes = routeSvc
	}

	handler := httptransport.NewRouter(httptransport.RouterDeps{
		Rides:    rideSvc,
		Stream:   streamSvc,
		Verifier: infra.NewJWTVerifier(cfg.Auth.JWTSecret),
		Routes:   routes,
		Log:      logger,
	})
	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	go relay.Run(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", "addr", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("http server", "error", err)
		os.Exit(1)
	}
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
