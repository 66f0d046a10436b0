package scorer

import (
	"time"

	"github.com/ppiankov/compatspectre/internal/models"
)

// DefaultUnitCost is the per-service rollout cost used when none is configured.
// It is a placeholder and should be calibrated per environment.
const DefaultUnitCost = 5 * time.Minute

// Scorer is the swappable policy behind strategy confidence and duration estimates
type Scorer interface {
	// Confidence returns a heuristic score in [0.1, 0.95]; it is not a calibrated probability.
	Confidence(report *models.Report, serviceCount int) float64
	// Duration estimates wall-clock rollout time for the strategy.
	Duration(strategy models.Strategy, serviceCount int) time.Duration
}

// NewScorer creates a scorer based on the algorithm name
func NewScorer(algorithm string, unitCost time.Duration) Scorer {
	switch algorithm {
	case "simple":
		return NewSimpleScorer(unitCost)
	default:
		return NewSimpleScorer(unitCost)
	}
}
