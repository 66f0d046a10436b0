package scorer

import (
	"log/slog"
	"time"

	"github.com/ppiankov/compatspectre/internal/models"
	"github.com/ppiankov/compatspectre/pkg/config"
)

// Facts are the report features the strategy rules look at
type Facts struct {
	ServiceCount      int
	EdgeCount         int
	SevereGlobalIssue bool
	Unverified        int
}

// FactsFrom extracts strategy facts from a report
func FactsFrom(report *models.Report, serviceCount int) Facts {
	facts := Facts{ServiceCount: serviceCount}
	if report != nil {
		facts.EdgeCount = len(report.CrossServiceDependencies)
		facts.SevereGlobalIssue = report.HasGlobalIssueAtLeast(models.SeverityError)
		facts.Unverified = report.UnverifiedCount()
	}
	return facts
}

func (f Facts) sparse() bool {
	return float64(f.EdgeCount) <= float64(f.ServiceCount)/2
}

// StrategyRule is one row of the decision table
type StrategyRule struct {
	Name     string
	Matches  func(Facts) bool
	Strategy func() models.Strategy
	Reason   string
}

// DefaultStrategyRules returns the decision table in evaluation order
func DefaultStrategyRules(canaryServices []string) []StrategyRule {
	canaries := append([]string(nil), canaryServices...)
	return []StrategyRule{
		{
			Name: "unverified",
			Matches: func(f Facts) bool {
				return f.Unverified > 0
			},
			Strategy: func() models.Strategy { return models.Canary(canaries) },
			Reason:   "some services have no compatibility verdict, validate on canary services first",
		},
		{
			Name: "immediate",
			Matches: func(f Facts) bool {
				return f.ServiceCount <= 5 && !f.SevereGlobalIssue && f.sparse()
			},
			Strategy: models.Immediate,
			Reason:   "small fleet with sparse dependencies and no blocking global issues",
		},
		{
			Name: "gradual",
			Matches: func(f Facts) bool {
				return f.ServiceCount >= 6 && f.ServiceCount <= 20 && !f.SevereGlobalIssue && f.sparse()
			},
			Strategy: func() models.Strategy { return models.Gradual(5, 30*time.Second) },
			Reason:   "medium fleet with sparse dependencies, roll out in batches",
		},
		{
			Name: "canary",
			Matches: func(f Facts) bool {
				return f.SevereGlobalIssue
			},
			Strategy: func() models.Strategy { return models.Canary(canaries) },
			Reason:   "critical or error global issues present, validate on canary services first",
		},
		{
			Name: "blue_green",
			Matches: func(f Facts) bool {
				return !f.sparse()
			},
			Strategy: func() models.Strategy { return models.BlueGreen(true) },
			Reason:   "dense dependency graph, switch the whole fleet after validation",
		},
		{
			Name:     "fallback",
			Matches:  func(Facts) bool { return true },
			Strategy: func() models.Strategy { return models.Gradual(3, 60*time.Second) },
			Reason:   "large fleet, roll out in small batches",
		},
	}
}

// Recommender picks a rollout strategy from an analysis report
type Recommender struct {
	rules  []StrategyRule
	scorer Scorer
}

// NewRecommender builds the default decision table and scoring policy from cfg
func NewRecommender(cfg *config.Config) *Recommender {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return NewRecommenderWith(DefaultStrategyRules(cfg.CanaryServices), NewScorer(cfg.ScoringAlgorithm, cfg.UnitCost))
}

// NewRecommenderWith uses explicit rules and scorer
func NewRecommenderWith(rules []StrategyRule, scorer Scorer) *Recommender {
	return &Recommender{rules: rules, scorer: scorer}
}

// Recommend evaluates the rules top to bottom; the first match wins
func (r *Recommender) Recommend(report *models.Report, serviceCount int) models.RecommendedStrategy {
	facts := FactsFrom(report, serviceCount)

	rule := r.match(facts)
	strategy := rule.Strategy()

	recommended := models.RecommendedStrategy{
		Strategy:          strategy,
		Reason:            rule.Reason,
		Confidence:        r.scorer.Confidence(report, serviceCount),
		EstimatedDuration: models.Duration(r.scorer.Duration(strategy, serviceCount)),
	}

	slog.Debug("strategy selected",
		slog.String("rule", rule.Name),
		slog.String("strategy", strategy.String()),
		slog.Int("services", facts.ServiceCount),
		slog.Int("edges", facts.EdgeCount),
		slog.Int("unverified", facts.Unverified),
		slog.Float64("confidence", recommended.Confidence),
	)
	return recommended
}

func (r *Recommender) match(facts Facts) StrategyRule {
	for _, rule := range r.rules {
		if rule.Matches(facts) {
			return rule
		}
	}
	return StrategyRule{
		Name:     "fallback",
		Strategy: func() models.Strategy { return models.Gradual(3, 60*time.Second) },
		Reason:   "large fleet, roll out in small batches",
	}
}
