package analyzer

import (
	"context"
	"log/slog"
	"time"

	"github.com/ppiankov/compatspectre/internal/checker"
	"github.com/ppiankov/compatspectre/internal/metrics"
	"github.com/ppiankov/compatspectre/internal/models"
	"github.com/ppiankov/compatspectre/internal/registry"
	"github.com/ppiankov/compatspectre/internal/retry"
	"github.com/ppiankov/compatspectre/internal/scorer"
	"github.com/ppiankov/compatspectre/pkg/config"
)

// Engine analyzes fleets of services against a registry snapshot.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	cfg         *config.Config
	registry    registry.Accessor
	checker     checker.Checker
	recommender *scorer.Recommender
	globalRules []GlobalIssueRule
	metrics     *metrics.Recorder
	now         func() time.Time
}

// Option customizes an Engine
type Option func(*Engine)

// WithMetrics records analysis metrics on r
func WithMetrics(r *metrics.Recorder) Option {
	return func(e *Engine) {
		e.metrics = r
	}
}

// WithClock overrides the report timestamp source
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithGlobalIssueRules replaces the default fleet-wide rules
func WithGlobalIssueRules(rules []GlobalIssueRule) Option {
	return func(e *Engine) {
		e.globalRules = rules
	}
}

// WithRecommender replaces the default strategy recommender
func WithRecommender(r *scorer.Recommender) Option {
	return func(e *Engine) {
		if r != nil {
			e.recommender = r
		}
	}
}

// New creates a new engine over shared, read-only registry and checker handles
func New(cfg *config.Config, reg registry.Accessor, chk checker.Checker, opts ...Option) *Engine {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if reg == nil {
		reg = (*registry.Snapshot)(nil)
	}
	if chk == nil {
		chk = checker.NewRuleChecker()
	}
	e := &Engine{
		cfg:         cfg,
		registry:    reg,
		checker:     chk,
		recommender: scorer.NewRecommender(cfg),
		globalRules: DefaultGlobalIssueRules(cfg.CriticalServices),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyze produces a complete report for serviceNames. It never fails:
// unregistered services and checker failures are folded into the report.
func (e *Engine) Analyze(ctx context.Context, serviceNames []string) *models.Report {
	started := time.Now()
	names := distinct(serviceNames)

	slog.Debug("starting analysis",
		slog.Int("requested", len(serviceNames)),
		slog.Int("distinct", len(names)),
	)

	analysisCtx, cancel := retry.WithTotalTimeout(ctx, e.cfg.AnalysisTimeout)
	defer cancel()

	// 1. Per-service analysis
	analyses := runAll(analysisCtx, e.cfg.Concurrency, names, e.analyzeService)

	// 2. Dependency graph
	graph := e.buildEdges(names)
	for i := range analyses {
		if analyses[i].Status == models.StatusNotFound {
			continue
		}
		analyses[i].Dependencies = append([]string{}, graph.dependencies[analyses[i].ServiceName]...)
	}

	// 3. Fleet-wide issues
	globalIssues := e.detectGlobalIssues(analyses, names)

	// 4. Recommendations
	recommendations := scorer.GenerateRecommendations(analyses, graph.edges, globalIssues)

	serviceAnalysis := make(map[string]models.ServiceCompatibilityAnalysis, len(analyses))
	for _, analysis := range analyses {
		serviceAnalysis[analysis.ServiceName] = analysis
		e.metrics.ObserveService(string(analysis.Status))
	}

	report := &models.Report{
		TotalServices:            len(serviceNames),
		ServiceAnalysis:          serviceAnalysis,
		CrossServiceDependencies: graph.edges,
		GlobalIssues:             globalIssues,
		Recommendations:          recommendations,
		GeneratedAt:              e.now().UTC(),
	}

	e.metrics.ObserveAnalysis(time.Since(started))
	slog.Debug("analysis complete",
		slog.Int("services", len(serviceAnalysis)),
		slog.Int("edges", len(graph.edges)),
		slog.Int("global_issues", len(globalIssues)),
		slog.Int("recommendations", len(recommendations)),
		slog.Duration("elapsed", time.Since(started)),
	)
	return report
}

// RecommendStrategy analyzes serviceNames and proposes a rollout strategy for them
func (e *Engine) RecommendStrategy(ctx context.Context, serviceNames []string) (*models.Report, models.RecommendedStrategy) {
	report := e.Analyze(ctx, serviceNames)
	strategy := e.recommender.Recommend(report, len(serviceNames))
	e.metrics.ObserveStrategy(string(strategy.Strategy.Kind))
	return report, strategy
}

// distinct keeps the first occurrence of every name
func distinct(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
