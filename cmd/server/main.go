// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

// Package main is the entry point for the Curator server.
//
// Curator learns recommendation models for an AI-tool directory from user
// feedback, continuously and privately. One process runs the whole loop:
//
//  1. Configuration: layered via Koanf v2 (defaults, YAML file,
//     CURATOR_-prefixed environment variables)
//  2. Storage: embedded badger stores for signals, profiles, models, and
//     the audit log (in memory when no data directory is configured)
//  3. Ingestion: the signal collector behind POST /api/v1/feedback,
//     publishing to the in-process event bus
//  4. Aggregation: windowed consensus batches, outlier-filtered
//  5. Privacy: Laplace noise and re-pseudonymization under a per-window
//     epsilon budget
//  6. Learning: the staged training pipeline, gated by held-out validation
//  7. Rollout: staged canary with automatic guardrail rollback
//  8. Serving: vector-similarity recommendations with the active model
//
// Everything long-running sits in a suture supervision tree; the process
// shuts down gracefully on SIGINT and SIGTERM.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dgraph-io/badger/v4"

	"github.com/aitoolsdir/curator/internal/aggregate"
	"github.com/aitoolsdir/curator/internal/api"
	"github.com/aitoolsdir/curator/internal/audit"
	"github.com/aitoolsdir/curator/internal/canary"
	"github.com/aitoolsdir/curator/internal/config"
	"github.com/aitoolsdir/curator/internal/embedding"
	"github.com/aitoolsdir/curator/internal/eventbus"
	"github.com/aitoolsdir/curator/internal/experiment"
	"github.com/aitoolsdir/curator/internal/learning"
	"github.com/aitoolsdir/curator/internal/logging"
	"github.com/aitoolsdir/curator/internal/model"
	"github.com/aitoolsdir/curator/internal/privacy"
	"github.com/aitoolsdir/curator/internal/profile"
	"github.com/aitoolsdir/curator/internal/recommend"
	sig "github.com/aitoolsdir/curator/internal/signal"
	"github.com/aitoolsdir/curator/internal/supervisor"
	"github.com/aitoolsdir/curator/internal/supervisor/services"
)

// embeddingDim is the item and profile vector dimension the external
// embedding sync produces.
const embeddingDim = 8

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("curator failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	logger := logging.With("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage. One badger handle backs every store; an empty data dir means
	// ephemeral in-memory operation.
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	if cfg.Storage.DataDir != "" {
		opts = badger.DefaultOptions(filepath.Join(cfg.Storage.DataDir, "curator")).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer db.Close()

	signalLog := sig.NewBadgerLog(db)
	profiles := profile.NewBadgerStore(db)
	auditlog := audit.NewLogger(audit.NewBadgerStore(db), 256, true)
	defer auditlog.Close()

	registry, err := model.NewRegistry(ctx, model.NewBadgerStore(db))
	if err != nil {
		return fmt.Errorf("restore model registry: %w", err)
	}
	registry.WithAudit(auditlog)

	// Ingestion.
	pseudo, err := sig.NewPseudonymizer(cfg.Collector.PseudonymKey)
	if err != nil {
		return fmt.Errorf("create pseudonymizer: %w", err)
	}
	busCfg := eventbus.DefaultConfig()
	busCfg.BufferSize = cfg.Bus.BufferSize
	bus, err := eventbus.New(busCfg)
	if err != nil {
		return fmt.Errorf("create event bus: %w", err)
	}
	defer bus.Close()

	embeddings := embedding.NewStaticProvider(embeddingDim)
	updater := profile.NewUpdater(profiles)
	collector := sig.NewCollector(sig.CollectorConfig{
		RealtimeThreshold: cfg.Collector.RealtimeThreshold,
		MaxRetries:        cfg.Collector.MaxRetries,
		RetryBaseDelay:    cfg.Collector.RetryBaseDelay,
		RatePerSecond:     cfg.Collector.RatePerSecond,
		RateBurst:         cfg.Collector.RateBurst,
		DedupeTTL:         cfg.Collector.DedupeTTL,
	}, pseudo, signalLog, bus).
		WithRealtime(updater, embeddings).
		WithAudit(auditlog)

	// Serving.
	index := recommend.NewIndex(embeddingDim)
	pop := recommend.NewPopularity(cfg.Recommend.FreshnessHalfLife)
	engine := recommend.NewEngine(recommend.Config{
		ShortlistSize:     cfg.Recommend.ShortlistSize,
		MaxPerCategory:    cfg.Recommend.MaxPerCategory,
		DefaultLimit:      cfg.Recommend.DefaultLimit,
		MaxLimit:          cfg.Recommend.MaxLimit,
		FreshnessHalfLife: cfg.Recommend.FreshnessHalfLife,
	}, index, pop, profiles, registry, nil)

	// Aggregation feeds the training queue. Signals are archived as soon as
	// their batch is accepted; popularity learns from the same batches.
	queue := services.NewBatchQueue(0)
	aggregator := aggregate.New(aggregate.Config{
		Window:        cfg.Aggregate.Window,
		MaxSignals:    cfg.Aggregate.MaxSignals,
		MinGroupCount: cfg.Aggregate.MinGroupCount,
		OutlierZ:      cfg.Aggregate.ZScoreThreshold,
		MinConfidence: cfg.Aggregate.MinConfidence,
	}, func(ctx context.Context, batch *aggregate.Batch) error {
		if err := signalLog.MarkArchived(ctx, batch.SignalIDs); err != nil {
			return fmt.Errorf("archive batch %s: %w", batch.ID, err)
		}
		for _, g := range batch.Groups {
			pop.Record(g.Key.TargetID, float64(g.Count)*g.AvgStrength)
		}
		queue.Push(batch)
		return nil
	})
	bus.AddHandler("aggregator", eventbus.TopicSignals, aggregator.HandleMessage)

	// Learning and rollout.
	accountant := privacy.NewAccountant(cfg.Privacy.BudgetPerWindow, cfg.Aggregate.Window)
	processor := privacy.NewProcessor(privacy.Config{
		EpsilonLow:      cfg.Privacy.EpsilonLow,
		EpsilonMedium:   cfg.Privacy.EpsilonMedium,
		EpsilonHigh:     cfg.Privacy.EpsilonHigh,
		BudgetPerWindow: cfg.Privacy.BudgetPerWindow,
	}, accountant)

	drafts := make(chan string, 8)
	rollouts := make(chan string, 8)
	pipeline := learning.New(learning.Config{
		MinBatchSize:       cfg.Learning.MinBatchSize,
		StageConfidence:    cfg.Learning.StageConfidence,
		ValidationAccuracy: cfg.Learning.ValidationAccuracy,
		BaseLearningRate:   cfg.Learning.BaseLearningRate,
		MinConsensus:       cfg.Learning.MinConsensus,
		PersonalizationDim: cfg.Learning.PersonalizationDim,
	}, registry, learning.NewPairwiseEvaluator(learning.DefaultHoldout()),
		func(ctx context.Context, v *model.Version) error {
			select {
			case drafts <- v.ID:
			default:
				logger.Warn().Str("version_id", v.ID).Msg("draft queue full, draft parked in registry")
			}
			return nil
		})

	recorder := canary.NewRecorder()
	controller := canary.NewController(canary.Config{
		Stages:        cfg.Canary.Stages,
		DwellPerStage: cfg.Canary.DwellPerStage,
		CheckInterval: cfg.Canary.CheckInterval,
		MaxErrorRate:  cfg.Canary.MaxErrorRate,
		MaxLatency:    cfg.Canary.MaxLatency,
		MinRequests:   cfg.Canary.MinRequests,
	}, registry, recorder, auditlog)

	experiments := experiment.NewManager(experiment.Config{
		MinSampleSize:          cfg.Experiment.MinSampleSize,
		SignificanceLevel:      cfg.Experiment.SignificanceLevel,
		MaxErrorRateRegression: cfg.Experiment.MaxErrorRateRegression,
		MaxLatencyRegression:   cfg.Experiment.MaxLatencyRegression,
	}, auditlog)

	// Serving-time routing. The canary router is consulted first so an
	// active rollout supersedes any running experiment for its share of
	// traffic; outcomes flow back to whichever router served the request.
	expRouter := experiment.NewRouter(experiments)
	canaryRouter := canary.NewRouter(controller, recorder)
	engine.WithRouters(canaryRouter, expRouter)
	catalog := recommend.NewCatalog(index, embeddings)

	// HTTP edge.
	eraser := privacy.NewEraser(signalLog, profiles, experiments, auditlog)
	ready := func() bool {
		select {
		case <-bus.Running():
			return true
		default:
			return false
		}
	}
	handler := api.NewHandler(collector, pseudo, engine, eraser, catalog, ready)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(handler, cfg.Server.RequestsPerMinute),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Supervision tree.
	tree := supervisor.NewTree(supervisor.DefaultTreeConfig())
	tree.AddPipelineService(services.NewBusService(bus))
	tree.AddPipelineService(services.NewFlushService(aggregator, cfg.Aggregate.Window))
	tree.AddPipelineService(services.NewTrainingService(queue, processor, pipeline, auditlog, cfg.Learning.Interval))
	tree.AddPipelineService(services.NewExperimentService(experiments, expRouter, registry, drafts, rollouts, cfg.Experiment.EvalInterval, cfg.Experiment.TreatmentShare))
	tree.AddPipelineService(services.NewCanaryService(controller, rollouts))
	tree.AddPipelineService(services.NewSweepService(signalLog, cfg.Storage.SignalRetention, cfg.Storage.SweepInterval))
	tree.AddAPIService(services.NewHTTPService(server, cfg.Server.ShutdownTimeout))

	logger.Info().
		Str("addr", server.Addr).
		Bool("persistent", cfg.Storage.DataDir != "").
		Msg("curator starting")

	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("supervisor exited: %w", err)
	}
	logger.Info().Msg("curator stopped")
	return nil
}
