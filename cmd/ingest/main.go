package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tracklift/config"
	"tracklift/internal/challenge"
	"tracklift/internal/database"
	"tracklift/internal/dedup"
	"tracklift/internal/events"
	"tracklift/internal/extractors"
	"tracklift/internal/fetcher"
	"tracklift/internal/headers"
	"tracklift/internal/logger"
	"tracklift/internal/metrics"
	"tracklift/internal/orchestrator"
	"tracklift/internal/pipeline"
	"tracklift/internal/proxypool"
	"tracklift/internal/ratelimit"
	"tracklift/internal/repositories"
	"tracklift/internal/resolver"
)

// IntakeSweepInterval controls how often newly persisted tracks are handed
// to the resolver, independent of the orchestrator's own scrape cadence.
const IntakeSweepInterval = 60 * time.Second

func main() {
	log := logger.New("ingest").Function("main")

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

	dedupStore := dedup.New(db.Cache.Dedup)
	limiter := ratelimit.New(db.Cache.RateLimit)
	pool := proxypool.New(splitCSV(cfg.ProxyPoolURLs))
	headerGen := headers.New(true)
	detector := challenge.New(pool, challenge.NewDefaultSolver())
	f := fetcher.New(limiter, pool, headerGen, detector)

	genres := pipeline.NewGenreNormalizer(splitCSV(cfg.GenreVocabularyCSV), cfg.ResolverGenreSimilarityThreshold)

	var llm *extractors.LLMExtractor
	if cfg.AnthropicAPIKey != "" {
		llm = extractors.NewLLMExtractor(cfg.AnthropicAPIKey)
	} else {
		log.Warn("ANTHROPIC_API_KEY not set, tier-3 llm extraction fallback disabled")
	}

	validator := pipeline.NewValidator(registry, splitCSV(cfg.RecognizedSourcesCSV))
	var salvager pipeline.Salvager
	if llm != nil {
		salvager = llm
	}
	enricher := pipeline.NewEnricher(registry, genres, salvager)
	persister := pipeline.NewPersister(db, repos, registry)
	pl := pipeline.New(validator, enricher, persister, registry)

	res := resolver.New(cfg, repos, db.Cache.Resolver, bus, registry, genres)
	intake := resolver.NewIntakeWorker(repos, res)

	orch := orchestrator.New(dedupStore, bus, registry)
	registerExtractors(orch, pl, f, llm, cfg, log)

	if err := orch.Start(); err != nil {
		log.Er("failed to start orchestrator", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runIntakeLoop(ctx, intake, log)
	go func() {
		ticker := time.NewTicker(pipeline.DefaultFlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if stageErr := pl.Flush(context.Background()); stageErr != nil {
					log.Warn("periodic pipeline flush failed", "error", stageErr)
				}
			}
		}
	}()

	log.Info("ingest service started")
	waitForShutdown(log)

	log.Info("shutting down, draining pipeline")
	orch.Stop()
	cancel()

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer flushCancel()
	if stageErr := pl.Flush(flushCtx); stageErr != nil {
		log.Er("final pipeline flush failed", stageErr)
	}
	if err := metricsSrv.Stop(flushCtx); err != nil {
		log.Er("metrics server shutdown failed", err)
	}
	log.Info("ingest service stopped")
}

// registerExtractors wires the built-in extractors whose index URL is
// configured; a deployment that leaves one unset simply runs without that
// source rather than failing startup.
func registerExtractors(orch *orchestrator.Orchestrator, pl *pipeline.Pipeline, f *fetcher.Fetcher, llm *extractors.LLMExtractor, cfg config.Config, log logger.Logger) {
	if cfg.DJSetIndexURL != "" {
		ext := extractors.NewDJSetIndexExtractor(f, llm, cfg.DJSetIndexURL, splitCSV(cfg.DJSetIndexAllowedHosts))
		orch.Register(extractors.NewExtractorJob(ext, pl))
		log.Info("registered extractor", "source", ext.Source())
	}
	if cfg.FestivalArchiveURL != "" {
		ext := extractors.NewFestivalArchiveExtractor(f, llm, cfg.FestivalArchiveURL, splitCSV(cfg.FestivalArchiveAllowedHosts))
		orch.Register(extractors.NewExtractorJob(ext, pl))
		log.Info("registered extractor", "source", ext.Source())
	}
}

// runIntakeLoop periodically resolves tracks the pipeline has persisted
// since the last sweep, independent of the orchestrator's own scrape tick.
func runIntakeLoop(ctx context.Context, intake *resolver.IntakeWorker, log logger.Logger) {
	ticker := time.NewTicker(IntakeSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := intake.Sweep(ctx); err != nil {
				log.Warn("intake sweep failed", "error", err)
			}
		}
	}
}

func waitForShutdown(log logger.Logger) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	log.Info("received shutdown signal", "signal", s.String())
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
