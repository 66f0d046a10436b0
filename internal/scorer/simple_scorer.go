package scorer

import (
	"math"
	"time"

	"github.com/ppiankov/compatspectre/internal/models"
)

const (
	MinConfidence = 0.1
	MaxConfidence = 0.95

	baseConfidence     = 0.8
	issuePenalty       = 0.05
	maxIssuePenalty    = 0.3
	edgeRatioPenalty   = 0.1
	maxEdgeRatioImpact = 0.2
	unverifiedPenalty  = 0.15
	maxUnverified      = 0.45
)

// SimpleScorer implements the linear penalty heuristic
type SimpleScorer struct {
	UnitCost time.Duration
}

// NewSimpleScorer creates a SimpleScorer; non-positive unit cost falls back to DefaultUnitCost
func NewSimpleScorer(unitCost time.Duration) *SimpleScorer {
	if unitCost <= 0 {
		unitCost = DefaultUnitCost
	}
	return &SimpleScorer{UnitCost: unitCost}
}

// Confidence starts at 0.8, subtracts capped penalties for issues, services
// without a verdict and dependency density, then clamps to [0.1, 0.95].
func (s *SimpleScorer) Confidence(report *models.Report, serviceCount int) float64 {
	score := baseConfidence

	issues := report.TotalIssueCount()
	score -= math.Min(issuePenalty*float64(issues), maxIssuePenalty)
	score -= math.Min(unverifiedPenalty*float64(report.UnverifiedCount()), maxUnverified)

	if serviceCount > 0 && report != nil {
		ratio := float64(len(report.CrossServiceDependencies)) / float64(serviceCount)
		score -= math.Min(edgeRatioPenalty*ratio, maxEdgeRatioImpact)
	}

	return clamp(score, MinConfidence, MaxConfidence)
}

// Duration: immediate B×N, gradual B×N + delay×(⌈N/batch⌉−1),
// canary and blue-green 2×B×N.
func (s *SimpleScorer) Duration(strategy models.Strategy, serviceCount int) time.Duration {
	if serviceCount < 0 {
		serviceCount = 0
	}
	base := s.UnitCost * time.Duration(serviceCount)

	switch strategy.Kind {
	case models.StrategyImmediate:
		return base
	case models.StrategyGradual:
		if strategy.Gradual == nil || strategy.Gradual.BatchSize <= 0 {
			return base
		}
		batches := (serviceCount + strategy.Gradual.BatchSize - 1) / strategy.Gradual.BatchSize
		if batches <= 1 {
			return base
		}
		return base + time.Duration(strategy.Gradual.DelayBetweenBatches)*time.Duration(batches-1)
	case models.StrategyCanary, models.StrategyBlueGreen:
		return 2 * base
	default:
		return base
	}
}

func clamp(value, low, high float64) float64 {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
