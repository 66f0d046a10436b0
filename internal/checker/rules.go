package checker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ppiankov/compatspectre/internal/models"
	"github.com/ppiankov/compatspectre/internal/registry"
	"github.com/ppiankov/compatspectre/internal/semver"
)

// RuleChecker evaluates the declared requirements of a service against the
// versions and API revisions currently published in the registry.
type RuleChecker struct{}

// NewRuleChecker creates the default registry-driven checker
func NewRuleChecker() *RuleChecker {
	return &RuleChecker{}
}

// Check implements Checker
func (c *RuleChecker) Check(ctx context.Context, name string, version models.ServiceVersion, reg registry.Accessor) (*models.CompatibilityResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, ok := reg.GetServiceInfo(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", registry.ErrNotFound, name)
	}

	issues := make([]models.CompatibilityIssue, 0)
	recommendations := make([]string, 0)

	required := make(map[string]struct{}, len(info.Requires))
	for _, req := range info.Requires {
		required[req.Service] = struct{}{}
		found := c.checkRequirement(name, req, reg)
		issues = append(issues, found...)
		for _, issue := range found {
			if hint := hintFor(issue.IssueType, req); hint != "" {
				recommendations = append(recommendations, hint)
			}
		}
	}

	for _, dep := range info.Dependencies {
		if _, ok := required[dep]; ok || dep == "" {
			continue
		}
		if _, registered := reg.GetServiceInfo(dep); !registered {
			issues = append(issues, missingDependency(name, dep))
			recommendations = append(recommendations, fmt.Sprintf("register %s or remove it from the dependency list", dep))
		}
	}

	level := LevelFor(issues)
	slog.Debug("rule check complete",
		slog.String("service", name),
		slog.String("version", version.String()),
		slog.Int("issues", len(issues)),
		slog.String("level", string(level)),
	)

	return &models.CompatibilityResult{
		IsCompatible:    level == models.CompatibilityFull || level == models.CompatibilityPartial,
		Level:           level,
		Issues:          issues,
		Recommendations: recommendations,
	}, nil
}

func (c *RuleChecker) checkRequirement(name string, req models.Requirement, reg registry.Accessor) []models.CompatibilityIssue {
	dep, ok := reg.GetServiceInfo(req.Service)
	if !ok {
		return []models.CompatibilityIssue{missingDependency(name, req.Service)}
	}

	var issues []models.CompatibilityIssue

	constraint, err := semver.ParseConstraint(req.Constraint)
	if err != nil {
		issues = append(issues, models.CompatibilityIssue{
			IssueType:        models.IssueInvalidConstraint,
			Severity:         models.SeverityInfo,
			Description:      fmt.Sprintf("constraint %q on %s cannot be parsed", req.Constraint, req.Service),
			AffectedServices: []string{name},
		})
	} else if strings.TrimSpace(req.Constraint) != "" {
		depVersion, err := semver.ParseServiceVersion(dep.Version)
		if err != nil {
			issues = append(issues, models.CompatibilityIssue{
				IssueType: models.IssueVersionUnparseable,
				Severity:  models.SeverityWarning,
				Description: fmt.Sprintf("%s requires %s %s, but its registry version %q cannot be parsed",
					name, req.Service, req.Constraint, dep.Version),
				AffectedServices: []string{name, req.Service},
			})
		} else if !semver.Satisfies(semver.FromServiceVersion(depVersion), constraint) {
			issues = append(issues, models.CompatibilityIssue{
				IssueType: models.IssueVersionMismatch,
				Severity:  models.SeverityWarning,
				Description: fmt.Sprintf("%s requires %s %s, registry has %s",
					name, req.Service, req.Constraint, depVersion),
				AffectedServices: []string{name, req.Service},
			})
		}
	}

	if req.API != "" && dep.APIVersion != "" && req.API != dep.APIVersion {
		issues = append(issues, models.CompatibilityIssue{
			IssueType: models.IssueAPIChange,
			Severity:  models.SeverityError,
			Description: fmt.Sprintf("%s expects %s API %s, registry publishes %s",
				name, req.Service, req.API, dep.APIVersion),
			AffectedServices: []string{name, req.Service},
		})
	}

	return issues
}

func missingDependency(name, dep string) models.CompatibilityIssue {
	return models.CompatibilityIssue{
		IssueType:        models.IssueDependencyMissing,
		Severity:         models.SeverityError,
		Description:      fmt.Sprintf("dependency %s of %s is not registered", dep, name),
		AffectedServices: []string{name, dep},
	}
}

func hintFor(issueType models.IssueType, req models.Requirement) string {
	switch issueType {
	case models.IssueVersionMismatch:
		return fmt.Sprintf("upgrade %s to satisfy %s", req.Service, req.Constraint)
	case models.IssueAPIChange:
		return fmt.Sprintf("migrate client code to the %s API currently published by %s", req.API, req.Service)
	case models.IssueDependencyMissing:
		return fmt.Sprintf("register %s or remove the requirement", req.Service)
	case models.IssueInvalidConstraint:
		return fmt.Sprintf("fix the version constraint declared for %s", req.Service)
	case models.IssueVersionUnparseable:
		return fmt.Sprintf("publish a valid semantic version for %s", req.Service)
	default:
		return ""
	}
}
