package models

import "fmt"

// ServiceVersion is a semantic version triple
type ServiceVersion struct {
	Major uint64 `json:"major"`
	Minor uint64 `json:"minor"`
	Patch uint64 `json:"patch"`
}

// String renders the version as "major.minor.patch"
func (v ServiceVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// CompatibilityLevel is the coarse verdict for a single service
type CompatibilityLevel string

const (
	CompatibilityFull         CompatibilityLevel = "full"
	CompatibilityPartial      CompatibilityLevel = "partial"
	CompatibilityIncompatible CompatibilityLevel = "incompatible"
	// CompatibilityUnknown is used when the checker could not produce a verdict.
	CompatibilityUnknown CompatibilityLevel = "unknown"
)

// IssueSeverity is totally ordered: critical > error > warning > info
type IssueSeverity string

const (
	SeverityCritical IssueSeverity = "critical"
	SeverityError    IssueSeverity = "error"
	SeverityWarning  IssueSeverity = "warning"
	SeverityInfo     IssueSeverity = "info"
)

// Rank returns a comparable weight, higher is more severe
func (s IssueSeverity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityError:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether s is as severe as other or more
func (s IssueSeverity) AtLeast(other IssueSeverity) bool {
	return s.Rank() >= other.Rank()
}

// IssueType identifies the kind of a compatibility issue
type IssueType string

const (
	IssueVersionMismatch    IssueType = "version_mismatch"
	IssueAPIChange          IssueType = "api_change"
	IssueDependencyMissing  IssueType = "dependency_missing"
	IssueVersionUnparseable IssueType = "version_unparseable"
	IssueInvalidConstraint  IssueType = "invalid_constraint"
)

// CompatibilityIssue is a single finding produced by a compatibility checker
type CompatibilityIssue struct {
	IssueType        IssueType     `json:"issue_type"`
	Severity         IssueSeverity `json:"severity"`
	Description      string        `json:"description"`
	AffectedServices []string      `json:"affected_services"`
}

// CompatibilityResult is the checker verdict for one service
type CompatibilityResult struct {
	IsCompatible    bool                 `json:"is_compatible"`
	Level           CompatibilityLevel   `json:"level"`
	Issues          []CompatibilityIssue `json:"issues"`
	Recommendations []string             `json:"recommendations"`
}

// RiskType classifies a derived service risk
type RiskType string

const (
	RiskVersionConflict    RiskType = "version_conflict"
	RiskAPIIncompatibility RiskType = "api_incompatibility"
	RiskDependencyIssue    RiskType = "dependency_issue"
	RiskMissingService     RiskType = "missing_service"
	RiskConfigurationIssue RiskType = "configuration_issue"
	RiskCheckerUnavailable RiskType = "checker_unavailable"
)

// ServiceRisk is derived from issues (or from checker failures)
type ServiceRisk struct {
	RiskType    RiskType      `json:"risk_type"`
	Severity    IssueSeverity `json:"severity"`
	Description string        `json:"description"`
	Impact      string        `json:"impact"`
	Mitigation  string        `json:"mitigation"`
}

// ServiceStatus is the registry-level state of a service
type ServiceStatus string

const (
	StatusActive      ServiceStatus = "active"
	StatusNotFound    ServiceStatus = "not_found"
	StatusError       ServiceStatus = "error"
	StatusMaintenance ServiceStatus = "maintenance"
)

// ServiceCompatibilityAnalysis is the per-service result of an analysis pass
type ServiceCompatibilityAnalysis struct {
	ServiceName        string               `json:"service_name"`
	CurrentVersion     string               `json:"current_version"`
	CompatibilityLevel CompatibilityLevel   `json:"compatibility_level"`
	Issues             []CompatibilityIssue `json:"issues"`
	Risks              []ServiceRisk        `json:"risks"`
	Status             ServiceStatus        `json:"status"`
	Dependencies       []string             `json:"dependencies"`
}

// DependencyType describes the nature of a service→service relationship
type DependencyType string

const (
	DependencyServiceCall   DependencyType = "service_call"
	DependencyData          DependencyType = "data_dependency"
	DependencyConfiguration DependencyType = "configuration_dependency"
)

// Criticality of a dependency edge
type Criticality string

const (
	CriticalityHigh   Criticality = "high"
	CriticalityMedium Criticality = "medium"
	CriticalityLow    Criticality = "low"
)

// CrossServiceDependency is a directed edge between two analyzed services
type CrossServiceDependency struct {
	FromService    string         `json:"from_service"`
	ToService      string         `json:"to_service"`
	DependencyType DependencyType `json:"dependency_type"`
	Criticality    Criticality    `json:"criticality"`
}

// GlobalIssueType identifies fleet-wide concerns
type GlobalIssueType string

const (
	GlobalVersionInconsistency   GlobalIssueType = "version_inconsistency"
	GlobalMissingCriticalService GlobalIssueType = "missing_critical_service"
	GlobalConfigurationConflict  GlobalIssueType = "configuration_conflict"
	GlobalPerformanceIssue       GlobalIssueType = "performance_issue"
	GlobalSecurityIssue          GlobalIssueType = "security_issue"
)

// GlobalIssue is a concern not attributable to a single service
type GlobalIssue struct {
	IssueType        GlobalIssueType `json:"issue_type"`
	Severity         IssueSeverity   `json:"severity"`
	Description      string          `json:"description"`
	AffectedServices []string        `json:"affected_services"`
	Impact           string          `json:"impact"`
	Resolution       string          `json:"resolution"`
}

// RecommendationCategory groups migration recommendations
type RecommendationCategory string

const (
	CategoryServiceSpecific      RecommendationCategory = "service_specific"
	CategoryDependencyManagement RecommendationCategory = "dependency_management"
	CategoryGlobalOptimization   RecommendationCategory = "global_optimization"
	CategoryBestPractice         RecommendationCategory = "best_practice"
)

// Priority is ordered: critical > high > medium > low
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// MigrationRecommendation is a prioritized action item
type MigrationRecommendation struct {
	Category        RecommendationCategory `json:"category"`
	Priority        Priority               `json:"priority"`
	Title           string                 `json:"title"`
	Description     string                 `json:"description"`
	Actions         []string               `json:"actions"`
	EstimatedEffort string                 `json:"estimated_effort"`
}
