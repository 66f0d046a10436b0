package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ppiankov/compatspectre/internal/reporter"
	"github.com/ppiankov/compatspectre/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// runOptions holds the config shared by analyze, strategy and serve plus
// the raw duration flags, which accept day units and are parsed late.
type runOptions struct {
	cfg        *config.Config
	configPath string
	durations  []durationFlag
}

type durationFlag struct {
	name   string
	raw    *string
	target *time.Duration
}

func newRunOptions() *runOptions {
	return &runOptions{cfg: config.DefaultConfig()}
}

func (o *runOptions) durationVar(cmd *cobra.Command, target *time.Duration, name, usage string) {
	raw := new(string)
	cmd.Flags().StringVar(raw, name, target.String(), usage)
	o.durations = append(o.durations, durationFlag{name: name, raw: raw, target: target})
}

func (o *runOptions) bindRegistryFlags(cmd *cobra.Command) {
	cfg := o.cfg
	cmd.Flags().StringVar(&o.configPath, "config", "", "Path to config file (default: .compatspectre.yaml in CWD, then HOME)")

	cmd.Flags().StringVar(&cfg.RegistrySource, "registry-source", cfg.RegistrySource, "Registry source: file, k8s or clickhouse")
	cmd.Flags().StringVar(&cfg.RegistryFile, "registry", cfg.RegistryFile, "Registry YAML file (registry-source=file)")

	cmd.Flags().StringVar(&cfg.ClickHouseDSN, "clickhouse-dsn", "", "ClickHouse DSN (registry-source=clickhouse)")
	cmd.Flags().StringVar(&cfg.ClickHouseDSN, "clickhouse-url", "", "Alias for --clickhouse-dsn")
	cmd.Flags().StringVar(&cfg.RegistryTable, "registry-table", cfg.RegistryTable, "ClickHouse table holding the registry")
	cmd.Flags().IntVar(&cfg.ClickHouseLimit, "clickhouse-limit", cfg.ClickHouseLimit, "Max registry rows read from ClickHouse (0 = unlimited)")
	o.durationVar(cmd, &cfg.QueryTimeout, "query-timeout", "Registry load timeout (e.g., 30s, 5m)")

	cmd.Flags().StringVar(&cfg.KubeConfig, "kubeconfig", "", "Path to kubeconfig (default: in-cluster, then ~/.kube/config)")
	cmd.Flags().StringSliceVar(&cfg.Namespaces, "namespace", cfg.Namespaces, "Namespaces to discover (repeatable; default: all)")
	cmd.Flags().StringVar(&cfg.LabelSelector, "selector", "", "Label selector for discovered Services")
	o.durationVar(cmd, &cfg.K8sCacheTTL, "k8s-cache-ttl", "Kubernetes listing cache TTL (e.g., 5m, 1h)")
	cmd.Flags().IntVar(&cfg.K8sRateLimit, "k8s-rate-limit", cfg.K8sRateLimit, "Kubernetes API rate limit (requests/sec)")
}

func (o *runOptions) bindAnalysisFlags(cmd *cobra.Command) {
	cfg := o.cfg
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Concurrent compatibility checks")
	o.durationVar(cmd, &cfg.CheckTimeout, "check-timeout", "Per-service check timeout (0 = none)")
	o.durationVar(cmd, &cfg.AnalysisTimeout, "analysis-timeout", "Whole analysis deadline (0 = none)")
	cmd.Flags().IntVar(&cfg.CheckRetries, "check-retries", cfg.CheckRetries, "Attempts per compatibility check")
	cmd.Flags().IntVar(&cfg.CheckRateLimit, "check-rate-limit", cfg.CheckRateLimit, "Compatibility checks per second (0 = unlimited)")
	cmd.Flags().Uint32Var(&cfg.BreakerThreshold, "breaker-threshold", cfg.BreakerThreshold, "Consecutive check failures that open the circuit")
	o.durationVar(cmd, &cfg.BreakerCooldown, "breaker-cooldown", "How long an open circuit waits before probing")

	cmd.Flags().StringSliceVar(&cfg.CriticalServices, "critical", cfg.CriticalServices, "Services that must be part of every rollout")
	cmd.Flags().StringSliceVar(&cfg.CanaryServices, "canary", cfg.CanaryServices, "Services rolled out first by a canary strategy")
	cmd.Flags().StringSliceVar(&cfg.ExcludeServices, "exclude", cfg.ExcludeServices, "Glob patterns of services to skip")
	cmd.Flags().StringVar(&cfg.ScoringAlgorithm, "scoring-algorithm", cfg.ScoringAlgorithm, "Scoring algorithm (simple)")
	o.durationVar(cmd, &cfg.UnitCost, "unit-cost", "Estimated rollout time per service")
}

func (o *runOptions) bindOutputFlags(cmd *cobra.Command) {
	cfg := o.cfg
	cmd.Flags().StringVar(&cfg.OutputDir, "output", cfg.OutputDir, "Output directory")
	cmd.Flags().StringVar(&cfg.Format, "format", cfg.Format, "Output format (text, json, sarif, all)")
	cmd.Flags().StringVar(&cfg.BaselinePath, "baseline", "", "Baseline file of accepted findings")
	cmd.Flags().BoolVar(&cfg.UpdateBaseline, "update-baseline", false, "Write current findings to the baseline file")
	cmd.Flags().BoolVar(&cfg.FailOnFindings, "fail-on-findings", false, "Exit with code 6 when non-baselined findings remain")
	cmd.Flags().BoolVar(&cfg.DryRun, "dry-run", false, "Dry run mode (don't write output)")
}

// prepare merges the config file under the command-line flags, parses
// durations and validates the result.
func (o *runOptions) prepare(cmd *cobra.Command) error {
	fileConfig, path, err := o.loadConfigFile()
	if err != nil {
		return err
	}

	if fileConfig != nil {
		changed := captureChangedFlags(cmd.Flags())
		if err := fileConfig.ApplyTo(o.cfg); err != nil {
			return err
		}
		if err := changed.restore(cmd.Flags()); err != nil {
			return err
		}
		slog.Debug("loaded config file", slog.String("path", path))
	}

	for _, d := range o.durations {
		if !cmd.Flags().Changed(d.name) {
			continue
		}
		parsed, err := config.ParseDuration(*d.raw)
		if err != nil {
			return fmt.Errorf("invalid --%s duration: %w", d.name, err)
		}
		*d.target = parsed
	}

	o.cfg.Verbose = verbose
	o.cfg.Normalize()
	return validateConfig(o.cfg)
}

func (o *runOptions) loadConfigFile() (*config.FileConfig, string, error) {
	if path := strings.TrimSpace(o.configPath); path != "" {
		fc, err := config.LoadFile(path)
		return fc, path, err
	}
	return config.AutoLoadFile()
}

func validateConfig(cfg *config.Config) error {
	switch cfg.RegistrySource {
	case config.SourceFile:
		if strings.TrimSpace(cfg.RegistryFile) == "" {
			return fmt.Errorf("--registry is required when --registry-source=file")
		}
	case config.SourceKubernetes:
	case config.SourceClickHouse:
		if strings.TrimSpace(cfg.ClickHouseDSN) == "" {
			return fmt.Errorf("--clickhouse-dsn is required when --registry-source=clickhouse")
		}
	default:
		return fmt.Errorf("invalid --registry-source value %q (want file, k8s or clickhouse)", cfg.RegistrySource)
	}

	if cfg.Format != "" && !reporter.ValidFormat(cfg.Format) {
		return fmt.Errorf("invalid --format value %q (want text, json, sarif or all)", cfg.Format)
	}
	if cfg.Concurrency <= 0 {
		return fmt.Errorf("--concurrency must be positive, got %d", cfg.Concurrency)
	}
	if cfg.CheckTimeout < 0 || cfg.AnalysisTimeout < 0 {
		return fmt.Errorf("timeouts must be zero or positive")
	}
	if cfg.ScoringAlgorithm != "simple" {
		return fmt.Errorf("invalid --scoring-algorithm value %q (want simple)", cfg.ScoringAlgorithm)
	}
	return nil
}

// changedFlags remembers explicitly set flag values so they win over the
// config file, which writes to the same config fields.
type changedFlags map[string]any

func captureChangedFlags(flags *pflag.FlagSet) changedFlags {
	captured := changedFlags{}
	flags.Visit(func(f *pflag.Flag) {
		if slice, ok := f.Value.(pflag.SliceValue); ok {
			captured[f.Name] = append([]string(nil), slice.GetSlice()...)
			return
		}
		captured[f.Name] = f.Value.String()
	})
	return captured
}

func (c changedFlags) restore(flags *pflag.FlagSet) error {
	var firstErr error
	flags.Visit(func(f *pflag.Flag) {
		value, ok := c[f.Name]
		if !ok || firstErr != nil {
			return
		}
		var err error
		switch v := value.(type) {
		case []string:
			err = f.Value.(pflag.SliceValue).Replace(v)
		case string:
			err = f.Value.Set(v)
		}
		if err != nil {
			firstErr = fmt.Errorf("invalid --%s value: %w", f.Name, err)
		}
	})
	return firstErr
}
