package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ppiankov/compatspectre/internal/baseline"
	"github.com/ppiankov/compatspectre/internal/models"
	"github.com/ppiankov/compatspectre/internal/reporter"
	"github.com/ppiankov/compatspectre/pkg/config"
	"github.com/spf13/cobra"
)

// NewAnalyzeCmd creates the analyze command
func NewAnalyzeCmd() *cobra.Command {
	opts := newRunOptions()

	cmd := &cobra.Command{
		Use:     "analyze [services...]",
		Aliases: []string{"check"},
		Short:   "Analyze service compatibility and write a report",
		Long: `Analyze checks every named service (or every registered service when none
are named) against the registry: version constraints, API versions and declared
dependencies. It maps cross-service dependencies, detects fleet-wide issues and
writes a report with migration recommendations.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.prepare(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalysis(cmd.Context(), opts.cfg, args, false, cmd.OutOrStdout())
		},
	}

	opts.bindRegistryFlags(cmd)
	opts.bindAnalysisFlags(cmd)
	opts.bindOutputFlags(cmd)
	return cmd
}

// runAnalysis executes the analysis workflow; withStrategy adds a rollout recommendation
func runAnalysis(ctx context.Context, cfg *config.Config, args []string, withStrategy bool, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	startTime := time.Now()

	// 1. Load the registry
	source, closeSource, err := openSource(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open registry source: %w", err)
	}
	defer func() { _ = closeSource() }()

	fmt.Fprintf(out, "📚 Loading registry from %s...\n", source.Name())
	snapshot, err := source.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	fmt.Fprintf(out, "✓ Loaded %d registered services\n", snapshot.Len())

	names := resolveServices(cfg, args, snapshot)
	if len(names) == 0 {
		return fmt.Errorf("no services to analyze: expected service names or a non-empty registry")
	}

	// 2. Analyze
	fmt.Fprintf(out, "🔍 Analyzing %d services...\n", len(names))
	engine := newEngine(cfg, snapshot, newChecker(cfg, nil), nil)

	var (
		report   *models.Report
		strategy *models.RecommendedStrategy
	)
	if withStrategy {
		r, s := engine.RecommendStrategy(ctx, names)
		report, strategy = r, &s
	} else {
		report = engine.Analyze(ctx, names)
	}
	fmt.Fprintln(out, summaryLine(report))
	if strategy != nil {
		fmt.Fprintf(out, "🎯 Strategy: %s (confidence %.2f, ~%s)\n",
			strategy.Strategy, strategy.Confidence, time.Duration(strategy.EstimatedDuration))
	}

	// 3. Baseline
	fresh, err := applyBaseline(cfg, report, out)
	if err != nil {
		return err
	}

	// 4. Write output
	output := buildOutput(source.Name(), snapshot, len(names), report, strategy, startTime)
	if !cfg.DryRun {
		fmt.Fprintln(out, "📝 Writing report...")
		if err := reporter.NewWithWriter(cfg, out).Generate(output); err != nil {
			return fmt.Errorf("failed to generate report: %w", err)
		}
		fmt.Fprintf(out, "✓ Report written to: %s\n", cfg.OutputDir)
	} else {
		fmt.Fprintln(out, "🏃 Dry run mode - skipping output")
	}

	fmt.Fprintf(out, "\n✅ Analysis complete in %s\n", time.Since(startTime).Round(time.Millisecond))

	if cfg.FailOnFindings && len(fresh) > 0 {
		return &FindingsError{Count: len(fresh)}
	}
	return nil
}

func applyBaseline(cfg *config.Config, report *models.Report, out io.Writer) ([]baseline.Finding, error) {
	path := cfg.BaselinePath
	if path == "" && cfg.UpdateBaseline {
		path = baseline.DefaultPath
	}

	known := baseline.Set{}
	if path != "" {
		loaded, err := baseline.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load baseline: %w", err)
		}
		known = loaded
	}

	fresh, suppressed := baseline.NewFindings(report, known)
	if suppressed > 0 {
		fmt.Fprintf(out, "✓ Baseline suppressed %d known findings\n", suppressed)
	}

	if cfg.UpdateBaseline {
		baseline.AddAll(known, baseline.CollectFingerprints(report))
		if err := baseline.Save(path, known); err != nil {
			return nil, fmt.Errorf("failed to update baseline: %w", err)
		}
		fmt.Fprintf(out, "✓ Baseline updated: %s (%d fingerprints)\n", path, len(known))
		fresh, _ = baseline.NewFindings(report, known)
	}

	return fresh, nil
}

func summaryLine(report *models.Report) string {
	levels := make(map[models.CompatibilityLevel]int)
	for _, analysis := range report.ServiceAnalysis {
		levels[analysis.CompatibilityLevel]++
	}
	return fmt.Sprintf("✓ Analyzed %d services: %d full, %d partial, %d incompatible, %d unknown; %d issues, %d dependencies",
		len(report.ServiceAnalysis),
		levels[models.CompatibilityFull],
		levels[models.CompatibilityPartial],
		levels[models.CompatibilityIncompatible],
		levels[models.CompatibilityUnknown],
		report.TotalIssueCount(),
		len(report.CrossServiceDependencies),
	)
}
