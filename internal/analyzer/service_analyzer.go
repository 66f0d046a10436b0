package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/compatspectre/internal/checker"
	"github.com/ppiankov/compatspectre/internal/models"
	"github.com/ppiankov/compatspectre/internal/semver"
)

const (
	outcomeOK      = "ok"
	outcomeError   = "error"
	outcomeTimeout = "timeout"
)

// analyzeService turns one name into its analysis; it never fails
func (e *Engine) analyzeService(ctx context.Context, name string) models.ServiceCompatibilityAnalysis {
	info, ok := e.registry.GetServiceInfo(name)
	if !ok {
		return notFound(name)
	}

	status := models.StatusActive
	if info.Status == models.RegistryMaintenance {
		status = models.StatusMaintenance
	}

	issues := make([]models.CompatibilityIssue, 0)
	version, err := semver.ParseServiceVersion(info.Version)
	assumedVersion := err != nil
	if assumedVersion {
		slog.Debug("unparseable service version",
			slog.String("service", name),
			slog.String("version", info.Version),
		)
		issues = append(issues, models.CompatibilityIssue{
			IssueType:        models.IssueVersionUnparseable,
			Severity:         models.SeverityWarning,
			Description:      fmt.Sprintf("version %q cannot be parsed, assuming %s", info.Version, version),
			AffectedServices: []string{name},
		})
	}

	result, err := e.check(ctx, name, version)
	if err != nil {
		slog.Debug("compatibility check failed",
			slog.String("service", name),
			slog.String("error", err.Error()),
		)
		return checkerFailure(name, info.Version, models.StatusError, issues, err)
	}

	issues = append(issues, result.Issues...)
	level := result.Level
	if level == "" {
		level = checker.LevelFor(issues)
	}
	if assumedVersion && level == models.CompatibilityFull {
		level = models.CompatibilityPartial
	}

	return models.ServiceCompatibilityAnalysis{
		ServiceName:        name,
		CurrentVersion:     info.Version,
		CompatibilityLevel: level,
		Issues:             issues,
		Risks:              risksFor(issues),
		Status:             status,
		Dependencies:       []string{},
	}
}

// check calls the checker under the per-service timeout. The call runs in its
// own goroutine so a checker that ignores ctx cannot stall the analysis.
func (e *Engine) check(ctx context.Context, name string, version models.ServiceVersion) (*models.CompatibilityResult, error) {
	started := time.Now()

	checkCtx := ctx
	cancel := func() {}
	if e.cfg.CheckTimeout > 0 {
		checkCtx, cancel = context.WithTimeout(ctx, e.cfg.CheckTimeout)
	}
	defer cancel()

	type outcome struct {
		result *models.CompatibilityResult
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("checker panic: %v", r)}
			}
		}()
		result, err := e.checker.Check(checkCtx, name, version, e.registry)
		done <- outcome{result: result, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-checkCtx.Done():
		out = outcome{err: checkCtx.Err()}
	}

	if out.err == nil && out.result == nil {
		out.err = errors.New("checker returned no result")
	}

	if out.err != nil {
		out.err = e.describeCheckError(ctx, checkCtx, out.err)
		if errors.Is(out.err, context.DeadlineExceeded) {
			e.metrics.ObserveCheck(outcomeTimeout, time.Since(started))
		} else {
			e.metrics.ObserveCheck(outcomeError, time.Since(started))
		}
		return nil, out.err
	}

	e.metrics.ObserveCheck(outcomeOK, time.Since(started))
	return out.result, nil
}

func (e *Engine) describeCheckError(analysisCtx, checkCtx context.Context, err error) error {
	switch {
	case analysisCtx.Err() != nil:
		if errors.Is(context.Cause(analysisCtx), context.DeadlineExceeded) {
			return fmt.Errorf("analysis deadline exceeded: %w", context.DeadlineExceeded)
		}
		return fmt.Errorf("analysis canceled: %w", analysisCtx.Err())
	case errors.Is(checkCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("check timed out after %s: %w", e.cfg.CheckTimeout, context.DeadlineExceeded)
	default:
		return err
	}
}

func notFound(name string) models.ServiceCompatibilityAnalysis {
	return models.ServiceCompatibilityAnalysis{
		ServiceName:        name,
		CurrentVersion:     "",
		CompatibilityLevel: models.CompatibilityIncompatible,
		Issues: []models.CompatibilityIssue{{
			IssueType:        models.IssueDependencyMissing,
			Severity:         models.SeverityCritical,
			Description:      "service not found in registry",
			AffectedServices: []string{name},
		}},
		Risks: []models.ServiceRisk{{
			RiskType:    models.RiskMissingService,
			Severity:    models.SeverityCritical,
			Description: fmt.Sprintf("%s is not registered", name),
			Impact:      "service completely unavailable",
			Mitigation:  "register the service or verify the name",
		}},
		Status:       models.StatusNotFound,
		Dependencies: []string{},
	}
}

// checkerFailure reports a service whose verdict could not be obtained
func checkerFailure(name, version string, status models.ServiceStatus, issues []models.CompatibilityIssue, cause error) models.ServiceCompatibilityAnalysis {
	if issues == nil {
		issues = []models.CompatibilityIssue{}
	}
	risks := risksFor(issues)
	risks = append(risks, models.ServiceRisk{
		RiskType:    models.RiskCheckerUnavailable,
		Severity:    models.SeverityError,
		Description: fmt.Sprintf("compatibility check failed: %v", cause),
		Impact:      "compatibility could not be verified",
		Mitigation:  "retry the analysis once the compatibility checker is reachable",
	})

	return models.ServiceCompatibilityAnalysis{
		ServiceName:        name,
		CurrentVersion:     version,
		CompatibilityLevel: models.CompatibilityUnknown,
		Issues:             issues,
		Risks:              risks,
		Status:             status,
		Dependencies:       []string{},
	}
}

func risksFor(issues []models.CompatibilityIssue) []models.ServiceRisk {
	risks := make([]models.ServiceRisk, 0, len(issues))
	for _, issue := range issues {
		if risk, ok := riskFor(issue); ok {
			risks = append(risks, risk)
		}
	}
	return risks
}

// riskFor maps an issue to its derived risk; invalid constraints carry no risk
func riskFor(issue models.CompatibilityIssue) (models.ServiceRisk, bool) {
	risk := models.ServiceRisk{
		Severity:    issue.Severity,
		Description: issue.Description,
	}

	switch issue.IssueType {
	case models.IssueVersionMismatch:
		risk.RiskType = models.RiskVersionConflict
		risk.Impact = "may break inter-service communication"
		risk.Mitigation = "consider version upgrade or an adapter layer"
	case models.IssueAPIChange:
		risk.RiskType = models.RiskAPIIncompatibility
		risk.Impact = "API calls may fail"
		risk.Mitigation = "update client code or introduce a compatibility shim"
	case models.IssueDependencyMissing:
		risk.RiskType = models.RiskDependencyIssue
		risk.Impact = "service may fail to start"
		risk.Mitigation = "ensure the dependency is available"
	case models.IssueVersionUnparseable:
		risk.RiskType = models.RiskConfigurationIssue
		risk.Impact = "compatibility verdict is based on an assumed version"
		risk.Mitigation = "publish a valid semantic version for the service"
	case models.IssueInvalidConstraint:
		return models.ServiceRisk{}, false
	default:
		return models.ServiceRisk{}, false
	}
	return risk, true
}
