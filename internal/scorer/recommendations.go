package scorer

import (
	"fmt"
	"strings"

	"github.com/ppiankov/compatspectre/internal/models"
)

// GenerateRecommendations turns per-service, dependency and global findings into
// a prioritized action list. analyses must be in first-occurrence input order.
// The result always ends with the best-practice entry, so it is never empty.
func GenerateRecommendations(
	analyses []models.ServiceCompatibilityAnalysis,
	edges []models.CrossServiceDependency,
	globalIssues []models.GlobalIssue,
) []models.MigrationRecommendation {
	recommendations := make([]models.MigrationRecommendation, 0, len(analyses)+len(globalIssues)+2)

	for _, analysis := range analyses {
		if analysis.Status == models.StatusError {
			recommendations = append(recommendations, models.MigrationRecommendation{
				Category:    models.CategoryServiceSpecific,
				Priority:    models.PriorityHigh,
				Title:       fmt.Sprintf("re-run the compatibility check for %s", analysis.ServiceName),
				Description: fmt.Sprintf("the compatibility of %s could not be verified", analysis.ServiceName),
				Actions: []string{
					"verify the compatibility checker is reachable",
					"re-run the analysis",
				},
				EstimatedEffort: "low",
			})
		}
		if len(analysis.Issues) == 0 {
			continue
		}
		recommendations = append(recommendations, models.MigrationRecommendation{
			Category:    models.CategoryServiceSpecific,
			Priority:    models.PriorityHigh,
			Title:       fmt.Sprintf("resolve compatibility issues for %s", analysis.ServiceName),
			Description: fmt.Sprintf("%s has %d compatibility %s: %s", analysis.ServiceName, len(analysis.Issues), plural(len(analysis.Issues), "issue", "issues"), summarizeIssues(analysis.Issues)),
			Actions: []string{
				"check service version",
				"verify dependencies",
				"test API compatibility",
			},
			EstimatedEffort: "medium",
		})
	}

	if len(edges) > 0 {
		recommendations = append(recommendations, models.MigrationRecommendation{
			Category:    models.CategoryDependencyManagement,
			Priority:    models.PriorityMedium,
			Title:       "manage cross-service dependencies",
			Description: fmt.Sprintf("%d cross-service %s found among the analyzed services", len(edges), plural(len(edges), "dependency", "dependencies")),
			Actions: []string{
				"migrate services in dependency order",
				"consider decoupling tightly bound services",
				"add circuit breaking between dependent services",
			},
			EstimatedEffort: "high",
		})
	}

	for _, issue := range globalIssues {
		recommendations = append(recommendations, models.MigrationRecommendation{
			Category:        models.CategoryGlobalOptimization,
			Priority:        PriorityFor(issue.Severity),
			Title:           fmt.Sprintf("address %s", strings.ReplaceAll(string(issue.IssueType), "_", " ")),
			Description:     issue.Description,
			Actions:         []string{issue.Resolution},
			EstimatedEffort: "depends on context",
		})
	}

	recommendations = append(recommendations, models.MigrationRecommendation{
		Category:    models.CategoryBestPractice,
		Priority:    models.PriorityMedium,
		Title:       "follow migration best practices",
		Description: "general safeguards for any fleet migration",
		Actions: []string{
			"prepare a rollback plan",
			"migrate in phases",
			"monitor the migration",
			"back up critical data",
		},
		EstimatedEffort: "low",
	})

	return recommendations
}

// PriorityFor maps issue severity onto recommendation priority
func PriorityFor(severity models.IssueSeverity) models.Priority {
	switch severity {
	case models.SeverityCritical:
		return models.PriorityCritical
	case models.SeverityError:
		return models.PriorityHigh
	case models.SeverityWarning:
		return models.PriorityMedium
	case models.SeverityInfo:
		return models.PriorityLow
	default:
		return models.PriorityLow
	}
}

func summarizeIssues(issues []models.CompatibilityIssue) string {
	kinds := make([]string, 0, len(issues))
	seen := make(map[models.IssueType]struct{}, len(issues))
	for _, issue := range issues {
		if _, ok := seen[issue.IssueType]; ok {
			continue
		}
		seen[issue.IssueType] = struct{}{}
		kinds = append(kinds, string(issue.IssueType))
	}
	return strings.Join(kinds, ", ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
