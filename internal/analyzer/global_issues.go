package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/compatspectre/internal/models"
)

// GlobalIssueRule inspects the whole fleet. Rules are evaluated in order and
// independently; each may emit any number of issues.
type GlobalIssueRule struct {
	Name   string
	Detect func(analyses []models.ServiceCompatibilityAnalysis, requested []string) []models.GlobalIssue
}

// DefaultGlobalIssueRules returns the version-consistency and critical-service rules
func DefaultGlobalIssueRules(criticalServices []string) []GlobalIssueRule {
	critical := append([]string(nil), criticalServices...)
	return []GlobalIssueRule{
		{Name: "version_consistency", Detect: detectVersionInconsistency},
		{
			Name: "critical_service_presence",
			Detect: func(_ []models.ServiceCompatibilityAnalysis, requested []string) []models.GlobalIssue {
				return detectMissingCriticalServices(critical, requested)
			},
		},
	}
}

func (e *Engine) detectGlobalIssues(analyses []models.ServiceCompatibilityAnalysis, requested []string) []models.GlobalIssue {
	issues := make([]models.GlobalIssue, 0)
	for _, rule := range e.globalRules {
		found := rule.Detect(analyses, requested)
		for _, issue := range found {
			e.metrics.ObserveGlobalIssue(string(issue.IssueType))
		}
		issues = append(issues, found...)
	}
	return issues
}

func detectVersionInconsistency(analyses []models.ServiceCompatibilityAnalysis, requested []string) []models.GlobalIssue {
	versions := make(map[string]struct{})
	for _, analysis := range analyses {
		if analysis.CurrentVersion == "" {
			continue
		}
		versions[analysis.CurrentVersion] = struct{}{}
	}
	if len(versions) <= 1 {
		return nil
	}

	distinct := make([]string, 0, len(versions))
	for version := range versions {
		distinct = append(distinct, version)
	}
	sort.Strings(distinct)

	return []models.GlobalIssue{{
		IssueType:        models.GlobalVersionInconsistency,
		Severity:         models.SeverityWarning,
		Description:      fmt.Sprintf("analyzed services run %d different versions: %s", len(distinct), strings.Join(distinct, ", ")),
		AffectedServices: append([]string(nil), requested...),
		Impact:           "mixed versions may behave inconsistently across the fleet",
		Resolution:       "consider unifying service versions",
	}}
}

func detectMissingCriticalServices(critical, requested []string) []models.GlobalIssue {
	present := make(map[string]struct{}, len(requested))
	for _, name := range requested {
		present[name] = struct{}{}
	}

	var issues []models.GlobalIssue
	for _, name := range critical {
		if _, ok := present[name]; ok {
			continue
		}
		issues = append(issues, models.GlobalIssue{
			IssueType:        models.GlobalMissingCriticalService,
			Severity:         models.SeverityCritical,
			Description:      fmt.Sprintf("critical service %s is not part of the analyzed set", name),
			AffectedServices: []string{name},
			Impact:           fmt.Sprintf("platform functionality provided by %s is not covered by this migration", name),
			Resolution:       "ensure all critical services are registered",
		})
	}
	return issues
}
