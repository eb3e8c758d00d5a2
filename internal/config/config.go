// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

// Package config loads and validates Curator configuration.
//
// Configuration is resolved in three layers, later layers overriding earlier
// ones: built-in defaults, an optional YAML file, and CURATOR_-prefixed
// environment variables (CURATOR_SERVER_PORT=9090 overrides server.port).
package config

import "time"

// Config is the root configuration for the Curator service.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Log        LogConfig        `koanf:"log"`
	Storage    StorageConfig    `koanf:"storage"`
	Collector  CollectorConfig  `koanf:"collector"`
	Bus        BusConfig        `koanf:"bus"`
	Aggregate  AggregateConfig  `koanf:"aggregate"`
	Privacy    PrivacyConfig    `koanf:"privacy"`
	Learning   LearningConfig   `koanf:"learning"`
	Recommend  RecommendConfig  `koanf:"recommend"`
	Experiment ExperimentConfig `koanf:"experiment"`
	Canary     CanaryConfig     `koanf:"canary"`
}

// ServerConfig controls the HTTP edge.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	// RequestsPerMinute is the per-client httprate limit.
	RequestsPerMinute int `koanf:"requests_per_minute"`

	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LogConfig controls global logging.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// StorageConfig controls the embedded badger stores.
type StorageConfig struct {
	// DataDir is the root directory for badger databases. Empty means
	// in-memory stores (tests, ephemeral deployments).
	DataDir string `koanf:"data_dir"`

	// SignalRetention is how long archived signals are kept before the
	// retention sweeper removes them.
	SignalRetention time.Duration `koanf:"signal_retention"`

	// SweepInterval is how often the retention sweeper runs.
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// CollectorConfig controls signal ingestion.
type CollectorConfig struct {
	// PseudonymKey is the secret key for the keyed hash that pseudonymizes
	// subject tokens. Must be set in production; a random key is generated
	// when empty, which breaks pseudonym stability across restarts.
	PseudonymKey string `koanf:"pseudonym_key"`

	// RealtimeThreshold is the strength above which a signal triggers an
	// immediate profile update in addition to the batch path.
	RealtimeThreshold float64 `koanf:"realtime_threshold"`

	// DedupeTTL bounds how long idempotency keys are remembered.
	DedupeTTL time.Duration `koanf:"dedupe_ttl"`

	// RatePerSecond and RateBurst bound overall ingest throughput.
	RatePerSecond float64 `koanf:"rate_per_second"`
	RateBurst     int     `koanf:"rate_burst"`

	// MaxRetries and RetryBaseDelay bound the storage retry loop before a
	// signal is dead-lettered.
	MaxRetries     int           `koanf:"max_retries"`
	RetryBaseDelay time.Duration `koanf:"retry_base_delay"`
}

// BusConfig controls the in-process event bus.
type BusConfig struct {
	// BufferSize is the bounded queue capacity between the collector and
	// the aggregator. Publishing to a full buffer fails (reject-new).
	BufferSize int `koanf:"buffer_size"`
}

// AggregateConfig controls signal batching and quality filtering.
type AggregateConfig struct {
	// Window is the time-based flush trigger.
	Window time.Duration `koanf:"window"`

	// MaxSignals is the count-based flush trigger.
	MaxSignals int `koanf:"max_signals"`

	// MinGroupCount drops groups with fewer signals.
	MinGroupCount int `koanf:"min_group_count"`

	// ZScoreThreshold flags statistical outlier groups.
	ZScoreThreshold float64 `koanf:"z_score_threshold"`

	// MinConfidence aborts the batch when stage confidence falls below it.
	MinConfidence float64 `koanf:"min_confidence"`
}

// PrivacyConfig controls the differential-privacy processor.
type PrivacyConfig struct {
	// Epsilon budgets per sensitivity level. Lower epsilon, more noise.
	EpsilonLow    float64 `koanf:"epsilon_low"`
	EpsilonMedium float64 `koanf:"epsilon_medium"`
	EpsilonHigh   float64 `koanf:"epsilon_high"`

	// BudgetPerWindow is the total epsilon spendable per aggregation
	// window. Exhaustion defers the batch instead of under-protecting it.
	BudgetPerWindow float64 `koanf:"budget_per_window"`
}

// LearningConfig controls the batch training pipeline.
type LearningConfig struct {
	// Interval between scheduled pipeline runs.
	Interval time.Duration `koanf:"interval"`

	// MinBatchSize is the minimum aggregated-signal count to start a run.
	MinBatchSize int `koanf:"min_batch_size"`

	// StageConfidence aborts a run when any stage reports less.
	StageConfidence float64 `koanf:"stage_confidence"`

	// ValidationAccuracy is the held-out accuracy gate for candidates.
	ValidationAccuracy float64 `koanf:"validation_accuracy"`

	// BaseLearningRate anchors the adaptive learning-rate schedule.
	BaseLearningRate float64 `koanf:"base_learning_rate"`

	// MinConsensus drops aggregated groups whose agreement score falls
	// below it during feature filtering.
	MinConsensus float64 `koanf:"min_consensus"`

	// PersonalizationDim is the per-subject preference vector size.
	PersonalizationDim int `koanf:"personalization_dim"`
}

// RecommendConfig controls recommendation serving.
type RecommendConfig struct {
	// ShortlistSize is the top-K taken from the similarity search before
	// rescoring.
	ShortlistSize int `koanf:"shortlist_size"`

	// MaxPerCategory caps same-category items in a result page.
	MaxPerCategory int `koanf:"max_per_category"`

	// DefaultLimit is used when a query omits limit.
	DefaultLimit int `koanf:"default_limit"`

	// MaxLimit bounds requested result size.
	MaxLimit int `koanf:"max_limit"`

	// FreshnessHalfLife controls the recency score decay.
	FreshnessHalfLife time.Duration `koanf:"freshness_half_life"`
}

// ExperimentConfig controls A/B evaluation.
type ExperimentConfig struct {
	// MinSampleSize per variant before significance is tested.
	MinSampleSize int `koanf:"min_sample_size"`

	// SignificanceLevel is the p-value threshold for promotion.
	SignificanceLevel float64 `koanf:"significance_level"`

	// MaxErrorRateRegression and MaxLatencyRegression are the guardrail
	// allowances relative to baseline (fractional, 0.1 = +10%).
	MaxErrorRateRegression float64 `koanf:"max_error_rate_regression"`
	MaxLatencyRegression   float64 `koanf:"max_latency_regression"`

	// EvalInterval is how often a running experiment is re-evaluated.
	EvalInterval time.Duration `koanf:"eval_interval"`

	// TreatmentShare is the percentage of traffic bucketed to the
	// candidate variant.
	TreatmentShare int `koanf:"treatment_share"`
}

// CanaryConfig controls staged rollout of promoted model versions.
type CanaryConfig struct {
	// Stages are the traffic percentages walked during rollout.
	Stages []int `koanf:"stages"`

	// DwellPerStage is how long each stage holds before advancing.
	DwellPerStage time.Duration `koanf:"dwell_per_stage"`

	// CheckInterval is how often guardrails are evaluated during dwell.
	CheckInterval time.Duration `koanf:"check_interval"`

	// MaxErrorRate and MaxLatency are absolute guardrail ceilings during
	// rollout; breaching either reverts the rollout.
	MaxErrorRate float64       `koanf:"max_error_rate"`
	MaxLatency   time.Duration `koanf:"max_latency"`

	// MinRequests gates guardrail judgment: health readings with fewer
	// requests than this are not judged.
	MinRequests int `koanf:"min_requests"`
}

// Default returns a Config populated with all default values. These are
// applied first, then overridden by the config file and environment.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8080,
			RequestsPerMinute: 600,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Storage: StorageConfig{
			DataDir:         "",
			SignalRetention: 30 * 24 * time.Hour,
			SweepInterval:   time.Hour,
		},
		Collector: CollectorConfig{
			PseudonymKey:      "",
			RealtimeThreshold: 0.7,
			DedupeTTL:         24 * time.Hour,
			RatePerSecond:     500,
			RateBurst:         1000,
			MaxRetries:        5,
			RetryBaseDelay:    50 * time.Millisecond,
		},
		Bus: BusConfig{
			BufferSize: 4096,
		},
		Aggregate: AggregateConfig{
			Window:          time.Minute,
			MaxSignals:      500,
			MinGroupCount:   3,
			ZScoreThreshold: 3.0,
			MinConfidence:   0.3,
		},
		Privacy: PrivacyConfig{
			EpsilonLow:      1.0,
			EpsilonMedium:   0.5,
			EpsilonHigh:     0.1,
			BudgetPerWindow: 10.0,
		},
		Learning: LearningConfig{
			Interval:           15 * time.Minute,
			MinBatchSize:       10,
			StageConfidence:    0.3,
			ValidationAccuracy: 0.8,
			BaseLearningRate:   0.05,
			MinConsensus:       0.4,
			PersonalizationDim: 8,
		},
		Recommend: RecommendConfig{
			ShortlistSize:     100,
			MaxPerCategory:    2,
			DefaultLimit:      10,
			MaxLimit:          50,
			FreshnessHalfLife: 14 * 24 * time.Hour,
		},
		Experiment: ExperimentConfig{
			MinSampleSize:          200,
			SignificanceLevel:      0.05,
			MaxErrorRateRegression: 0.1,
			MaxLatencyRegression:   0.1,
			EvalInterval:           time.Minute,
			TreatmentShare:         10,
		},
		Canary: CanaryConfig{
			Stages:        []int{5, 25, 50, 100},
			DwellPerStage: 10 * time.Minute,
			CheckInterval: 15 * time.Second,
			MaxErrorRate:  0.05,
			MaxLatency:    500 * time.Millisecond,
			MinRequests:   20,
		},
	}
}
