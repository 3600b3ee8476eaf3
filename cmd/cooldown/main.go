package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tracklift/config"
	"tracklift/internal/database"
	"tracklift/internal/events"
	"tracklift/internal/logger"
	"tracklift/internal/metrics"
	"tracklift/internal/pipeline"
	"tracklift/internal/repositories"
	"tracklift/internal/resolver"
)

// DefaultCooldownPollInterval is used when the deployment leaves
// COOLDOWN_POLL_INTERVAL_SECONDS unset.
const DefaultCooldownPollInterval = 15 * time.Minute

func main() {
	log := logger.New("cooldown").Function("main")

	cfg, err := config.InitConfig()
	if err != nil {
		log.Er("failed to initialize config", err)
		os.Exit(1)
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Er("failed to create database", err)
		os.Exit(1)
	}
	defer db.Close()

	repos := repositories.New(db)
	registry := metrics.New()
	metricsSrv := metrics.NewServer(fmt.Sprintf(":%d", cfg.ServerPort), registry)
	metricsSrv.StartAsync()
	bus := events.New(db.Cache.Events, cfg)
	genres := pipeline.NewGenreNormalizer(nil, cfg.ResolverGenreSimilarityThreshold)

	res := resolver.New(cfg, repos, db.Cache.Resolver, bus, registry, genres)
	worker := resolver.NewCooldownWorker(repos, res)

	interval := DefaultCooldownPollInterval
	if cfg.CooldownPollIntervalSeconds > 0 {
		interval = time.Duration(cfg.CooldownPollIntervalSeconds) * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info("cooldown worker started", "pollInterval", interval)

	for {
		select {
		case s := <-sig:
			log.Info("received shutdown signal", "signal", s.String())
			cancel()
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := metricsSrv.Stop(stopCtx); err != nil {
				log.Er("metrics server shutdown failed", err)
			}
			stopCancel()
			log.Info("cooldown worker stopped")
			return
		case <-ticker.C:
			requeued, err := worker.Sweep(ctx)
			if err != nil {
				log.Warn("cool-down sweep failed", "error", err)
				continue
			}
			log.Info("cool-down sweep complete", "requeued", requeued)
		}
	}
}
