package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/compatspectre/internal/analyzer"
	"github.com/ppiankov/compatspectre/internal/checker"
	"github.com/ppiankov/compatspectre/internal/collector"
	"github.com/ppiankov/compatspectre/internal/k8s"
	"github.com/ppiankov/compatspectre/internal/metrics"
	"github.com/ppiankov/compatspectre/internal/models"
	"github.com/ppiankov/compatspectre/internal/registry"
	"github.com/ppiankov/compatspectre/pkg/config"
)

// openSource builds the registry source named by cfg.RegistrySource.
// The returned close func is never nil.
func openSource(ctx context.Context, cfg *config.Config) (registry.Source, func() error, error) {
	noop := func() error { return nil }

	switch cfg.RegistrySource {
	case config.SourceFile, "":
		return registry.NewFileSource(cfg.RegistryFile), noop, nil
	case config.SourceKubernetes:
		discoverer, err := k8s.NewDiscoverer(cfg)
		if err != nil {
			return nil, noop, err
		}
		return discoverer, noop, nil
	case config.SourceClickHouse:
		source, err := collector.NewClickHouseSource(ctx, cfg)
		if err != nil {
			return nil, noop, err
		}
		return source, source.Close, nil
	default:
		return nil, noop, fmt.Errorf("invalid registry source %q", cfg.RegistrySource)
	}
}

// newChecker wraps the rule checker with retries, rate limiting and a
// circuit breaker whose state is mirrored into metrics.
func newChecker(cfg *config.Config, recorder *metrics.Recorder) *checker.Resilient {
	return checker.NewResilient(checker.NewRuleChecker(), checker.ResilientOptions{
		RateLimit:        cfg.CheckRateLimit,
		Retries:          cfg.CheckRetries,
		BreakerThreshold: cfg.BreakerThreshold,
		BreakerCooldown:  cfg.BreakerCooldown,
		OnStateChange: func(_, to string) {
			recorder.SetBreakerState(to)
		},
	})
}

func newEngine(cfg *config.Config, snapshot *registry.Snapshot, chk checker.Checker, recorder *metrics.Recorder) *analyzer.Engine {
	return analyzer.New(cfg, snapshot, chk, analyzer.WithMetrics(recorder))
}

// resolveServices picks the names to analyze: explicit names when given,
// otherwise every registered service, minus excluded patterns.
func resolveServices(cfg *config.Config, requested []string, snapshot *registry.Snapshot) []string {
	names := requested
	if len(names) == 0 {
		names = snapshot.Names()
	}

	kept, excluded := cfg.FilterServices(names)
	if len(excluded) > 0 {
		slog.Debug("excluded services", slog.Any("services", excluded))
	}
	return kept
}

func buildOutput(
	source string,
	snapshot *registry.Snapshot,
	requested int,
	report *models.Report,
	strategy *models.RecommendedStrategy,
	started time.Time,
) *models.Output {
	return &models.Output{
		Tool:    "compatspectre",
		Version: version,
		Metadata: models.Metadata{
			GeneratedAt:      report.GeneratedAt,
			RegistrySource:   source,
			RegisteredCount:  snapshot.Len(),
			RequestedCount:   requested,
			AnalysisDuration: time.Since(started).Round(time.Millisecond).String(),
			Version:          version,
		},
		Report:   report,
		Strategy: strategy,
	}
}
