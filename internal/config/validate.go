// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for values that would misbehave at
// runtime. It returns the first problem found with enough context to fix it.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}

	if c.Collector.RealtimeThreshold < 0 || c.Collector.RealtimeThreshold > 1 {
		return fmt.Errorf("collector.realtime_threshold must be in [0,1], got %f", c.Collector.RealtimeThreshold)
	}
	if c.Collector.MaxRetries < 0 {
		return errors.New("collector.max_retries must not be negative")
	}
	if c.Collector.RatePerSecond <= 0 {
		return errors.New("collector.rate_per_second must be positive")
	}

	if c.Bus.BufferSize < 1 {
		return fmt.Errorf("bus.buffer_size must be at least 1, got %d", c.Bus.BufferSize)
	}

	if c.Aggregate.Window <= 0 {
		return errors.New("aggregate.window must be positive")
	}
	if c.Aggregate.MaxSignals < 1 {
		return errors.New("aggregate.max_signals must be at least 1")
	}
	if c.Aggregate.MinConfidence < 0 || c.Aggregate.MinConfidence > 1 {
		return fmt.Errorf("aggregate.min_confidence must be in [0,1], got %f", c.Aggregate.MinConfidence)
	}

	for name, eps := range map[string]float64{
		"privacy.epsilon_low":    c.Privacy.EpsilonLow,
		"privacy.epsilon_medium": c.Privacy.EpsilonMedium,
		"privacy.epsilon_high":   c.Privacy.EpsilonHigh,
	} {
		if eps <= 0 {
			return fmt.Errorf("%s must be positive, got %f", name, eps)
		}
	}
	if c.Privacy.BudgetPerWindow <= 0 {
		return errors.New("privacy.budget_per_window must be positive")
	}

	if c.Learning.ValidationAccuracy < 0 || c.Learning.ValidationAccuracy > 1 {
		return fmt.Errorf("learning.validation_accuracy must be in [0,1], got %f", c.Learning.ValidationAccuracy)
	}
	if c.Learning.MinBatchSize < 1 {
		return errors.New("learning.min_batch_size must be at least 1")
	}
	if c.Learning.BaseLearningRate <= 0 || c.Learning.BaseLearningRate >= 1 {
		return fmt.Errorf("learning.base_learning_rate must be in (0,1), got %f", c.Learning.BaseLearningRate)
	}

	if c.Recommend.ShortlistSize < 1 {
		return errors.New("recommend.shortlist_size must be at least 1")
	}
	if c.Recommend.MaxPerCategory < 1 {
		return errors.New("recommend.max_per_category must be at least 1")
	}
	if c.Recommend.DefaultLimit < 1 || c.Recommend.DefaultLimit > c.Recommend.MaxLimit {
		return fmt.Errorf("recommend.default_limit must be in [1,%d], got %d",
			c.Recommend.MaxLimit, c.Recommend.DefaultLimit)
	}

	if c.Experiment.SignificanceLevel <= 0 || c.Experiment.SignificanceLevel >= 1 {
		return fmt.Errorf("experiment.significance_level must be in (0,1), got %f", c.Experiment.SignificanceLevel)
	}
	if c.Experiment.MinSampleSize < 2 {
		return errors.New("experiment.min_sample_size must be at least 2")
	}

	if len(c.Canary.Stages) == 0 {
		return errors.New("canary.stages must not be empty")
	}
	prev := 0
	for _, pct := range c.Canary.Stages {
		if pct <= prev || pct > 100 {
			return fmt.Errorf("canary.stages must be strictly increasing percentages up to 100, got %v", c.Canary.Stages)
		}
		prev = pct
	}
	if c.Canary.Stages[len(c.Canary.Stages)-1] != 100 {
		return fmt.Errorf("canary.stages must end at 100, got %v", c.Canary.Stages)
	}
	if c.Canary.CheckInterval <= 0 || c.Canary.DwellPerStage <= 0 {
		return errors.New("canary.check_interval and canary.dwell_per_stage must be positive")
	}
	if c.Canary.CheckInterval > c.Canary.DwellPerStage {
		return errors.New("canary.check_interval must not exceed canary.dwell_per_stage")
	}

	return nil
}
