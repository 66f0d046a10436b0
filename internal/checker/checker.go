package checker

import (
	"context"

	"github.com/ppiankov/compatspectre/internal/models"
	"github.com/ppiankov/compatspectre/internal/registry"
)

// Checker produces a compatibility verdict for one service version.
// Implementations must be safe for concurrent use.
type Checker interface {
	Check(ctx context.Context, name string, version models.ServiceVersion, reg registry.Accessor) (*models.CompatibilityResult, error)
}

// Func adapts a plain function to the Checker interface
type Func func(ctx context.Context, name string, version models.ServiceVersion, reg registry.Accessor) (*models.CompatibilityResult, error)

// Check calls f
func (f Func) Check(ctx context.Context, name string, version models.ServiceVersion, reg registry.Accessor) (*models.CompatibilityResult, error) {
	return f(ctx, name, version, reg)
}

// FullyCompatible is a verdict with no issues
func FullyCompatible() *models.CompatibilityResult {
	return &models.CompatibilityResult{
		IsCompatible:    true,
		Level:           models.CompatibilityFull,
		Issues:          []models.CompatibilityIssue{},
		Recommendations: []string{},
	}
}

// LevelFor derives the coarse verdict from a set of issues:
// any error or critical issue is incompatible, a warning is partial.
func LevelFor(issues []models.CompatibilityIssue) models.CompatibilityLevel {
	level := models.CompatibilityFull
	for _, issue := range issues {
		if issue.Severity.AtLeast(models.SeverityError) {
			return models.CompatibilityIncompatible
		}
		if issue.Severity == models.SeverityWarning {
			level = models.CompatibilityPartial
		}
	}
	return level
}
