package scorer

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/ppiankov/compatspectre/internal/models"
	"github.com/ppiankov/compatspectre/pkg/config"
	"pgregory.net/rapid"
)

func reportWith(issues, edges, globalIssues int, severity models.IssueSeverity) *models.Report {
	report := &models.Report{
		ServiceAnalysis:          map[string]models.ServiceCompatibilityAnalysis{},
		CrossServiceDependencies: []models.CrossServiceDependency{},
		GlobalIssues:             []models.GlobalIssue{},
	}
	if issues > 0 {
		analysis := models.ServiceCompatibilityAnalysis{ServiceName: "svc"}
		for i := 0; i < issues; i++ {
			analysis.Issues = append(analysis.Issues, models.CompatibilityIssue{IssueType: models.IssueVersionMismatch, Severity: models.SeverityWarning})
		}
		report.ServiceAnalysis["svc"] = analysis
	}
	for i := 0; i < edges; i++ {
		report.CrossServiceDependencies = append(report.CrossServiceDependencies, models.CrossServiceDependency{
			FromService: fmt.Sprintf("s%d", i),
			ToService:   fmt.Sprintf("s%d", i+1),
		})
	}
	for i := 0; i < globalIssues; i++ {
		report.GlobalIssues = append(report.GlobalIssues, models.GlobalIssue{Severity: severity})
	}
	return report
}

func withUnverified(report *models.Report, n int) *models.Report {
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("unverified-%d", i)
		report.ServiceAnalysis[name] = models.ServiceCompatibilityAnalysis{
			ServiceName:        name,
			CompatibilityLevel: models.CompatibilityUnknown,
			Status:             models.StatusError,
		}
	}
	return report
}

func TestSimpleScorerConfidence(t *testing.T) {
	s := NewSimpleScorer(time.Second)
	cases := []struct {
		name   string
		report *models.Report
		n      int
		want   float64
	}{
		{name: "clean", report: reportWith(0, 0, 0, ""), n: 2, want: 0.8},
		{name: "two_issues", report: reportWith(2, 0, 0, ""), n: 2, want: 0.7},
		{name: "issue_penalty_capped", report: reportWith(100, 0, 0, ""), n: 2, want: 0.5},
		{name: "edge_ratio", report: reportWith(0, 4, 0, ""), n: 12, want: 0.8 - 0.1*4.0/12.0},
		{name: "edge_ratio_capped", report: reportWith(0, 50, 0, ""), n: 5, want: 0.6},
		{name: "global_issues_count", report: reportWith(1, 0, 1, models.SeverityCritical), n: 1, want: 0.7},
		{name: "zero_services", report: reportWith(0, 0, 0, ""), n: 0, want: 0.8},
		{name: "both_penalties_capped", report: reportWith(1000, 1000, 0, ""), n: 1, want: 0.3},
		{name: "nil_report", report: nil, n: 3, want: 0.8},
		{name: "unverified_services", report: withUnverified(reportWith(0, 0, 0, ""), 2), n: 2, want: 0.5},
		{name: "unverified_penalty_capped", report: withUnverified(reportWith(0, 0, 0, ""), 10), n: 10, want: 0.35},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := s.Confidence(tc.report, tc.n)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("Confidence = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSimpleScorerDuration(t *testing.T) {
	s := NewSimpleScorer(5 * time.Second)
	cases := []struct {
		name     string
		strategy models.Strategy
		n        int
		want     time.Duration
	}{
		{name: "immediate", strategy: models.Immediate(), n: 2, want: 10 * time.Second},
		{name: "gradual_12", strategy: models.Gradual(5, 30*time.Second), n: 12, want: 120 * time.Second},
		{name: "gradual_single_batch", strategy: models.Gradual(5, 30*time.Second), n: 5, want: 25 * time.Second},
		{name: "gradual_empty", strategy: models.Gradual(5, 30*time.Second), n: 0, want: 0},
		{name: "fallback_gradual", strategy: models.Gradual(3, time.Minute), n: 25, want: 125*time.Second + 8*time.Minute},
		{name: "canary", strategy: models.Canary([]string{"auth-service"}), n: 3, want: 30 * time.Second},
		{name: "blue_green", strategy: models.BlueGreen(true), n: 4, want: 40 * time.Second},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := s.Duration(tc.strategy, tc.n); got != tc.want {
				t.Fatalf("Duration = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestNewScorerDefaults(t *testing.T) {
	s, ok := NewScorer("unknown", 0).(*SimpleScorer)
	if !ok {
		t.Fatal("expected SimpleScorer fallback")
	}
	if s.UnitCost != DefaultUnitCost {
		t.Fatalf("expected default unit cost, got %s", s.UnitCost)
	}
}

func TestConfidenceAlwaysWithinBounds(t *testing.T) {
	s := NewSimpleScorer(time.Second)
	rapid.Check(t, func(t *rapid.T) {
		issues := rapid.IntRange(0, 500).Draw(t, "issues")
		edges := rapid.IntRange(0, 500).Draw(t, "edges")
		globals := rapid.IntRange(0, 50).Draw(t, "globals")
		n := rapid.IntRange(0, 300).Draw(t, "n")

		got := s.Confidence(reportWith(issues, edges, globals, models.SeverityWarning), n)
		if got < MinConfidence || got > MaxConfidence {
			t.Fatalf("confidence %v out of bounds", got)
		}
	})
}

func TestRecommendDecisionTable(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.UnitCost = 5 * time.Second
	recommender := NewRecommender(cfg)

	cases := []struct {
		name     string
		report   *models.Report
		n        int
		wantKind models.StrategyKind
	}{
		{name: "small_clean", report: reportWith(0, 0, 0, ""), n: 2, wantKind: models.StrategyImmediate},
		{name: "small_with_warning", report: reportWith(0, 0, 1, models.SeverityWarning), n: 5, wantKind: models.StrategyImmediate},
		{name: "medium_sparse", report: reportWith(0, 4, 0, ""), n: 12, wantKind: models.StrategyGradual},
		{name: "critical_global", report: reportWith(0, 0, 1, models.SeverityCritical), n: 3, wantKind: models.StrategyCanary},
		{name: "error_global_large", report: reportWith(0, 0, 1, models.SeverityError), n: 40, wantKind: models.StrategyCanary},
		{name: "dense_small", report: reportWith(0, 3, 0, ""), n: 4, wantKind: models.StrategyBlueGreen},
		{name: "large_sparse", report: reportWith(0, 2, 0, ""), n: 30, wantKind: models.StrategyGradual},
		{name: "empty_fleet", report: reportWith(0, 0, 0, ""), n: 0, wantKind: models.StrategyImmediate},
		{name: "small_unverified", report: withUnverified(reportWith(0, 0, 0, ""), 1), n: 2, wantKind: models.StrategyCanary},
		{name: "medium_unverified", report: withUnverified(reportWith(0, 4, 0, ""), 1), n: 12, wantKind: models.StrategyCanary},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := recommender.Recommend(tc.report, tc.n)
			if got.Strategy.Kind != tc.wantKind {
				t.Fatalf("expected %s, got %s (%s)", tc.wantKind, got.Strategy.Kind, got.Reason)
			}
			if got.Reason == "" {
				t.Fatal("expected a reason")
			}
		})
	}
}

func TestRecommendStrategyParameters(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.UnitCost = 5 * time.Second
	recommender := NewRecommender(cfg)

	gradual := recommender.Recommend(reportWith(0, 4, 0, ""), 12)
	if gradual.Strategy.Gradual == nil || gradual.Strategy.Gradual.BatchSize != 5 {
		t.Fatalf("expected gradual batch size 5, got %+v", gradual.Strategy)
	}
	if time.Duration(gradual.Strategy.Gradual.DelayBetweenBatches) != 30*time.Second {
		t.Fatalf("expected 30s delay, got %s", time.Duration(gradual.Strategy.Gradual.DelayBetweenBatches))
	}
	if time.Duration(gradual.EstimatedDuration) != 120*time.Second {
		t.Fatalf("expected 120s estimate, got %s", time.Duration(gradual.EstimatedDuration))
	}

	large := recommender.Recommend(reportWith(0, 0, 0, ""), 21)
	if large.Strategy.Gradual == nil || large.Strategy.Gradual.BatchSize != 3 {
		t.Fatalf("expected fallback gradual batch size 3, got %+v", large.Strategy)
	}

	canary := recommender.Recommend(reportWith(0, 0, 1, models.SeverityCritical), 2)
	if canary.Strategy.Canary == nil || len(canary.Strategy.Canary.CanaryServices) != 1 || canary.Strategy.Canary.CanaryServices[0] != "auth-service" {
		t.Fatalf("expected auth-service canary, got %+v", canary.Strategy)
	}
	if time.Duration(canary.EstimatedDuration) != 20*time.Second {
		t.Fatalf("expected 20s canary estimate, got %s", time.Duration(canary.EstimatedDuration))
	}

	blueGreen := recommender.Recommend(reportWith(0, 10, 0, ""), 4)
	if blueGreen.Strategy.BlueGreen == nil || !blueGreen.Strategy.BlueGreen.ValidateBeforeSwitch {
		t.Fatalf("expected validating blue-green, got %+v", blueGreen.Strategy)
	}
}

func TestGenerateRecommendations(t *testing.T) {
	analyses := []models.ServiceCompatibilityAnalysis{
		{ServiceName: "orders", Issues: []models.CompatibilityIssue{{IssueType: models.IssueAPIChange, Severity: models.SeverityError}}},
		{ServiceName: "payments"},
		{ServiceName: "billing", Issues: []models.CompatibilityIssue{{IssueType: models.IssueVersionMismatch, Severity: models.SeverityWarning}}},
	}
	edges := []models.CrossServiceDependency{{FromService: "orders", ToService: "payments"}}
	globals := []models.GlobalIssue{
		{IssueType: models.GlobalVersionInconsistency, Severity: models.SeverityWarning, Resolution: "consider unifying service versions"},
		{IssueType: models.GlobalMissingCriticalService, Severity: models.SeverityCritical, Resolution: "ensure all critical services are registered"},
	}

	got := GenerateRecommendations(analyses, edges, globals)
	want := []struct {
		category models.RecommendationCategory
		priority models.Priority
		effort   string
	}{
		{models.CategoryServiceSpecific, models.PriorityHigh, "medium"},
		{models.CategoryServiceSpecific, models.PriorityHigh, "medium"},
		{models.CategoryDependencyManagement, models.PriorityMedium, "high"},
		{models.CategoryGlobalOptimization, models.PriorityMedium, "depends on context"},
		{models.CategoryGlobalOptimization, models.PriorityCritical, "depends on context"},
		{models.CategoryBestPractice, models.PriorityMedium, "low"},
	}

	if len(got) != len(want) {
		t.Fatalf("expected %d recommendations, got %d: %+v", len(want), len(got), got)
	}
	for i, w := range want {
		if got[i].Category != w.category || got[i].Priority != w.priority || got[i].EstimatedEffort != w.effort {
			t.Fatalf("recommendation %d: expected %s/%s/%s, got %+v", i, w.category, w.priority, w.effort, got[i])
		}
	}
	if got[0].Title != "resolve compatibility issues for orders" || got[1].Title != "resolve compatibility issues for billing" {
		t.Fatalf("expected service recommendations in input order, got %q, %q", got[0].Title, got[1].Title)
	}
	if len(got[4].Actions) != 1 || got[4].Actions[0] != "ensure all critical services are registered" {
		t.Fatalf("expected resolution as the only action, got %v", got[4].Actions)
	}
}

func TestGenerateRecommendationsForUnverifiedServices(t *testing.T) {
	analyses := []models.ServiceCompatibilityAnalysis{
		{ServiceName: "orders", Status: models.StatusError, CompatibilityLevel: models.CompatibilityUnknown},
		{ServiceName: "payments", Status: models.StatusActive},
		{
			ServiceName: "billing",
			Status:      models.StatusError,
			Issues:      []models.CompatibilityIssue{{IssueType: models.IssueVersionUnparseable, Severity: models.SeverityWarning}},
		},
	}

	got := GenerateRecommendations(analyses, nil, nil)
	wantTitles := []string{
		"re-run the compatibility check for orders",
		"re-run the compatibility check for billing",
		"resolve compatibility issues for billing",
		"follow migration best practices",
	}
	if len(got) != len(wantTitles) {
		t.Fatalf("expected %d recommendations, got %d: %+v", len(wantTitles), len(got), got)
	}
	for i, title := range wantTitles {
		if got[i].Title != title {
			t.Fatalf("recommendation %d: expected %q, got %q", i, title, got[i].Title)
		}
	}
	if got[0].Category != models.CategoryServiceSpecific || got[0].Priority != models.PriorityHigh {
		t.Fatalf("expected service_specific/high, got %s/%s", got[0].Category, got[0].Priority)
	}
}

func TestGenerateRecommendationsNeverEmpty(t *testing.T) {
	got := GenerateRecommendations(nil, nil, nil)
	if len(got) != 1 || got[0].Category != models.CategoryBestPractice {
		t.Fatalf("expected only the best-practice recommendation, got %+v", got)
	}
	if len(got[0].Actions) != 4 {
		t.Fatalf("expected 4 best-practice actions, got %v", got[0].Actions)
	}
}

func TestPriorityFor(t *testing.T) {
	cases := []struct {
		severity models.IssueSeverity
		want     models.Priority
	}{
		{models.SeverityCritical, models.PriorityCritical},
		{models.SeverityError, models.PriorityHigh},
		{models.SeverityWarning, models.PriorityMedium},
		{models.SeverityInfo, models.PriorityLow},
	}
	for _, tc := range cases {
		t.Run(string(tc.severity), func(t *testing.T) {
			if got := PriorityFor(tc.severity); got != tc.want {
				t.Fatalf("PriorityFor(%s) = %s, want %s", tc.severity, got, tc.want)
			}
		})
	}
}
