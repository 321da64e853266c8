package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mossy-p/classroom-signaling/config"
	"github.com/mossy-p/classroom-signaling/internal/broker"
	"github.com/mossy-p/classroom-signaling/internal/discovery"
	"github.com/mossy-p/classroom-signaling/internal/handlers"
	"github.com/mossy-p/classroom-signaling/internal/logging"
	"github.com/mossy-p/classroom-signaling/internal/redis"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log := logging.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := broker.Options{Logger: log}

	// Presence mirror is optional
	if cfg.Redis.Enabled() {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			log.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()

		presence := redis.NewPresence(client, cfg.Redis, log)
		if err := presence.Reset(ctx); err != nil {
			log.Error("failed to reset presence", "error", err)
			os.Exit(1)
		}
		done := make(chan struct{})
		go func() {
			presence.Run(context.Background())
			close(done)
		}()
		defer func() {
			presence.Close()
			<-done
		}()

		opts.Presence = presence
		log.Info("Redis presence mirror enabled", "key", presence.Key())
	}

	b := broker.New(opts)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(cfg, b, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.MDNS.Enabled {
		port, err := strconv.Atoi(cfg.Port)
		if err != nil {
			log.Error("invalid port for mDNS", "port", cfg.Port, "error", err)
			os.Exit(1)
		}
		advertiser := discovery.NewAdvertiser(nil, log)
		if err := advertiser.Start(cfg.MDNS.Instance, port, "/ws"); err != nil {
			// the broker still works without discovery
			log.Warn("mDNS advertisement failed", "error", err)
		}
		defer advertiser.Stop()
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("Starting WebRTC signaling server", "port", cfg.Port, "environment", cfg.Environment)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "error", err)
	}
	log.Info("stopped", "open_connections", b.Connections())
}
