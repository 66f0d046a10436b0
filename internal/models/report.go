package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Report is the immutable result of one analysis pass
type Report struct {
	TotalServices            int                                     `json:"total_services"`
	ServiceAnalysis          map[string]ServiceCompatibilityAnalysis `json:"service_analysis"`
	CrossServiceDependencies []CrossServiceDependency                `json:"cross_service_dependencies"`
	GlobalIssues             []GlobalIssue                           `json:"global_issues"`
	Recommendations          []MigrationRecommendation               `json:"recommendations"`
	GeneratedAt              time.Time                               `json:"generated_at"`
}

// TotalIssueCount sums per-service issues and global issues
func (r *Report) TotalIssueCount() int {
	if r == nil {
		return 0
	}
	total := len(r.GlobalIssues)
	for _, analysis := range r.ServiceAnalysis {
		total += len(analysis.Issues)
	}
	return total
}

// UnverifiedCount counts services whose compatibility check failed
func (r *Report) UnverifiedCount() int {
	if r == nil {
		return 0
	}
	count := 0
	for _, analysis := range r.ServiceAnalysis {
		if analysis.Status == StatusError {
			count++
		}
	}
	return count
}

// HasGlobalIssueAtLeast reports whether any global issue reaches the given severity
func (r *Report) HasGlobalIssueAtLeast(severity IssueSeverity) bool {
	if r == nil {
		return false
	}
	for _, issue := range r.GlobalIssues {
		if issue.Severity.AtLeast(severity) {
			return true
		}
	}
	return false
}

// StrategyKind tags the Strategy variant
type StrategyKind string

const (
	StrategyImmediate StrategyKind = "immediate"
	StrategyGradual   StrategyKind = "gradual"
	StrategyCanary    StrategyKind = "canary"
	StrategyBlueGreen StrategyKind = "blue_green"
)

// GradualParams configures batched rollout
type GradualParams struct {
	BatchSize           int      `json:"batch_size"`
	DelayBetweenBatches Duration `json:"delay_between_batches"`
}

// CanaryParams lists the services rolled out first
type CanaryParams struct {
	CanaryServices []string `json:"canary_services"`
}

// BlueGreenParams configures a dual-environment switch
type BlueGreenParams struct {
	ValidateBeforeSwitch bool `json:"validate_before_switch"`
}

// Strategy is a tagged variant: exactly the payload matching Kind is set
type Strategy struct {
	Kind      StrategyKind     `json:"kind"`
	Gradual   *GradualParams   `json:"gradual,omitempty"`
	Canary    *CanaryParams    `json:"canary,omitempty"`
	BlueGreen *BlueGreenParams `json:"blue_green,omitempty"`
}

// Immediate builds an immediate strategy
func Immediate() Strategy {
	return Strategy{Kind: StrategyImmediate}
}

// Gradual builds a batched strategy
func Gradual(batchSize int, delay time.Duration) Strategy {
	return Strategy{
		Kind:    StrategyGradual,
		Gradual: &GradualParams{BatchSize: batchSize, DelayBetweenBatches: Duration(delay)},
	}
}

// Canary builds a canary strategy; the service list is copied
func Canary(services []string) Strategy {
	canaries := make([]string, len(services))
	copy(canaries, services)
	return Strategy{
		Kind:   StrategyCanary,
		Canary: &CanaryParams{CanaryServices: canaries},
	}
}

// BlueGreen builds a blue-green strategy
func BlueGreen(validateBeforeSwitch bool) Strategy {
	return Strategy{
		Kind:      StrategyBlueGreen,
		BlueGreen: &BlueGreenParams{ValidateBeforeSwitch: validateBeforeSwitch},
	}
}

// String renders the strategy with its parameters
func (s Strategy) String() string {
	switch s.Kind {
	case StrategyGradual:
		if s.Gradual == nil {
			return string(s.Kind)
		}
		return fmt.Sprintf("gradual(batch=%d, delay=%s)", s.Gradual.BatchSize, time.Duration(s.Gradual.DelayBetweenBatches))
	case StrategyCanary:
		if s.Canary == nil {
			return string(s.Kind)
		}
		return fmt.Sprintf("canary(%v)", s.Canary.CanaryServices)
	case StrategyBlueGreen:
		if s.BlueGreen == nil {
			return string(s.Kind)
		}
		return fmt.Sprintf("blue_green(validate=%t)", s.BlueGreen.ValidateBeforeSwitch)
	default:
		return string(s.Kind)
	}
}

// RecommendedStrategy is the rollout proposal for a fleet.
//
// Confidence is a heuristic in [0.1, 0.95], not a calibrated probability.
type RecommendedStrategy struct {
	Strategy          Strategy `json:"strategy"`
	Reason            string   `json:"reason"`
	Confidence        float64  `json:"confidence"`
	EstimatedDuration Duration `json:"estimated_duration"`
}

// Duration is a time.Duration that marshals as a Go duration string
type Duration time.Duration

// MarshalJSON renders the duration as e.g. "2m0s"
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts a duration string or integer nanoseconds
func (d *Duration) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		parsed, err := time.ParseDuration(text)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", text, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var nanos int64
	if err := json.Unmarshal(data, &nanos); err != nil {
		return fmt.Errorf("invalid duration %s", string(data))
	}
	*d = Duration(nanos)
	return nil
}

// Output is the envelope written by reporters
type Output struct {
	Tool     string               `json:"tool"`
	Version  string               `json:"version"`
	Metadata Metadata             `json:"metadata"`
	Report   *Report              `json:"report"`
	Strategy *RecommendedStrategy `json:"strategy,omitempty"`
}

// Metadata contains report generation info
type Metadata struct {
	GeneratedAt      time.Time `json:"generated_at"`
	RegistrySource   string    `json:"registry_source"`
	RegisteredCount  int       `json:"registered_services"`
	RequestedCount   int       `json:"requested_services"`
	AnalysisDuration string    `json:"analysis_duration"`
	Version          string    `json:"version"`
}
