package reporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/compatspectre/internal/models"
	"github.com/ppiankov/compatspectre/pkg/config"
)

const (
	textANSIReset = "\x1b[0m"
	textANSIBold  = "\x1b[1m"
)

// WriteText writes a human-readable text report to report.txt and stdout.
func WriteText(output *models.Output, cfg *config.Config) error {
	return writeText(output, cfg, os.Stdout)
}

func writeText(output *models.Output, cfg *config.Config, out io.Writer) error {
	if output == nil || output.Report == nil {
		return fmt.Errorf("report is nil")
	}
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if out == nil {
		return fmt.Errorf("writer is nil")
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	rendered := RenderText(output, supportsANSI(out))
	outputPath := filepath.Join(cfg.OutputDir, "report.txt")

	if err := os.WriteFile(outputPath, []byte(rendered), 0644); err != nil {
		return fmt.Errorf("failed to write report.txt: %w", err)
	}

	if _, err := io.WriteString(out, rendered); err != nil {
		return fmt.Errorf("failed to write text report to output: %w", err)
	}

	logWritten(outputPath)
	return nil
}

// SeverityIcon returns the marker printed before a finding
func SeverityIcon(severity models.IssueSeverity) string {
	switch severity {
	case models.SeverityCritical:
		return "🔴"
	case models.SeverityError:
		return "🟠"
	case models.SeverityWarning:
		return "🟡"
	case models.SeverityInfo:
		return "🔵"
	default:
		return "⚪"
	}
}

// RenderText formats the output envelope as plain text
func RenderText(output *models.Output, useANSI bool) string {
	var b strings.Builder
	report := output.Report

	generatedAt := "unknown"
	switch {
	case !output.Metadata.GeneratedAt.IsZero():
		generatedAt = output.Metadata.GeneratedAt.UTC().Format(time.RFC3339)
	case !report.GeneratedAt.IsZero():
		generatedAt = report.GeneratedAt.UTC().Format(time.RFC3339)
	}

	source := strings.TrimSpace(output.Metadata.RegistrySource)
	if source == "" {
		source = "unknown"
	}

	writeTextSectionHeader(&b, "CompatSpectre Compatibility Report", useANSI)
	fmt.Fprintf(&b, "Generated: %s\n", generatedAt)
	fmt.Fprintf(&b, "Registry source: %s (%d services registered)\n", source, output.Metadata.RegisteredCount)
	if output.Metadata.AnalysisDuration != "" {
		fmt.Fprintf(&b, "Analysis duration: %s\n", output.Metadata.AnalysisDuration)
	}
	b.WriteString("\n")

	names := sortedServiceNames(report)
	levels, statuses := countLevels(report)
	writeTextSectionHeader(&b, "Summary", useANSI)
	fmt.Fprintf(&b, "Services requested: %d (distinct: %d)\n", report.TotalServices, len(names))
	fmt.Fprintf(&b, "Compatibility: full=%d partial=%d incompatible=%d unknown=%d\n",
		levels[models.CompatibilityFull],
		levels[models.CompatibilityPartial],
		levels[models.CompatibilityIncompatible],
		levels[models.CompatibilityUnknown],
	)
	fmt.Fprintf(&b, "Not found: %d, errors: %d, maintenance: %d\n",
		statuses[models.StatusNotFound],
		statuses[models.StatusError],
		statuses[models.StatusMaintenance],
	)
	fmt.Fprintf(&b, "Issues: %d (global: %d)\n", report.TotalIssueCount(), len(report.GlobalIssues))
	fmt.Fprintf(&b, "Dependencies: %d\n", len(report.CrossServiceDependencies))
	b.WriteString("\n")

	writeTextSectionHeader(&b, "Services", useANSI)
	if len(names) == 0 {
		b.WriteString("No services analyzed.\n")
	} else {
		b.WriteString("SERVICE                          VERSION          LEVEL          STATUS       ISSUES\n")
		b.WriteString("------------------------------------------------------------------------------------\n")
		for _, name := range names {
			analysis := report.ServiceAnalysis[name]
			version := analysis.CurrentVersion
			if version == "" {
				version = "-"
			}
			fmt.Fprintf(&b, "%-32s %-16s %-14s %-12s %d\n",
				truncateTextValue(name, 32),
				truncateTextValue(version, 16),
				analysis.CompatibilityLevel,
				analysis.Status,
				len(analysis.Issues),
			)
		}
	}

	details := servicesWithFindings(report, names)
	if len(details) > 0 {
		b.WriteString("\n")
		writeTextSectionHeader(&b, "Details", useANSI)
		for _, name := range details {
			analysis := report.ServiceAnalysis[name]
			fmt.Fprintf(&b, "%s | level=%s | status=%s\n", name, analysis.CompatibilityLevel, analysis.Status)
			if len(analysis.Issues) > 0 {
				b.WriteString("  issues:\n")
				for _, issue := range analysis.Issues {
					fmt.Fprintf(&b, "    %s [%s] %s: %s\n", SeverityIcon(issue.Severity), issue.Severity, issue.IssueType, issue.Description)
				}
			}
			if len(analysis.Risks) > 0 {
				b.WriteString("  risks:\n")
				for _, risk := range analysis.Risks {
					fmt.Fprintf(&b, "    %s [%s] %s: %s\n", SeverityIcon(risk.Severity), risk.Severity, risk.RiskType, risk.Description)
					fmt.Fprintf(&b, "      impact: %s\n", risk.Impact)
					fmt.Fprintf(&b, "      mitigation: %s\n", risk.Mitigation)
				}
			}
			b.WriteString("\n")
		}
	}

	if len(report.CrossServiceDependencies) > 0 {
		if len(details) == 0 {
			b.WriteString("\n")
		}
		writeTextSectionHeader(&b, "Dependencies", useANSI)
		for _, edge := range report.CrossServiceDependencies {
			fmt.Fprintf(&b, "- %s -> %s (%s, criticality=%s)\n", edge.FromService, edge.ToService, edge.DependencyType, edge.Criticality)
		}
		b.WriteString("\n")
	}

	if len(report.GlobalIssues) > 0 {
		writeTextSectionHeader(&b, "Global Issues", useANSI)
		for _, issue := range report.GlobalIssues {
			fmt.Fprintf(&b, "%s [%s] %s: %s\n", SeverityIcon(issue.Severity), issue.Severity, issue.IssueType, issue.Description)
			fmt.Fprintf(&b, "  affected: %s\n", strings.Join(issue.AffectedServices, ", "))
			fmt.Fprintf(&b, "  resolution: %s\n", issue.Resolution)
		}
		b.WriteString("\n")
	}

	if len(report.Recommendations) > 0 {
		writeTextSectionHeader(&b, "Recommendations", useANSI)
		for _, rec := range report.Recommendations {
			fmt.Fprintf(&b, "[%s] %s (%s)\n", rec.Priority, rec.Title, rec.Category)
			for _, action := range rec.Actions {
				fmt.Fprintf(&b, "  - %s\n", action)
			}
		}
	}

	if output.Strategy != nil {
		b.WriteString("\n")
		writeTextSectionHeader(&b, "Rollout Strategy", useANSI)
		fmt.Fprintf(&b, "Strategy: %s\n", output.Strategy.Strategy)
		fmt.Fprintf(&b, "Reason: %s\n", output.Strategy.Reason)
		fmt.Fprintf(&b, "Confidence: %.2f\n", output.Strategy.Confidence)
		fmt.Fprintf(&b, "Estimated duration: %s\n", time.Duration(output.Strategy.EstimatedDuration))
	}

	return b.String()
}

func writeTextSectionHeader(b *strings.Builder, title string, useANSI bool) {
	header := title
	if useANSI {
		header = textANSIBold + title + textANSIReset
	}
	fmt.Fprintf(b, "%s\n", header)
	fmt.Fprintf(b, "%s\n", strings.Repeat("-", len(title)))
}

func supportsANSI(out io.Writer) bool {
	file, ok := out.(*os.File)
	if !ok {
		return false
	}

	info, err := file.Stat()
	if err != nil {
		return false
	}

	return info.Mode()&os.ModeCharDevice != 0
}

func sortedServiceNames(report *models.Report) []string {
	names := make([]string, 0, len(report.ServiceAnalysis))
	for name := range report.ServiceAnalysis {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func countLevels(report *models.Report) (map[models.CompatibilityLevel]int, map[models.ServiceStatus]int) {
	levels := make(map[models.CompatibilityLevel]int)
	statuses := make(map[models.ServiceStatus]int)
	for _, analysis := range report.ServiceAnalysis {
		levels[analysis.CompatibilityLevel]++
		statuses[analysis.Status]++
	}
	return levels, statuses
}

func servicesWithFindings(report *models.Report, names []string) []string {
	result := make([]string, 0)
	for _, name := range names {
		analysis := report.ServiceAnalysis[name]
		if len(analysis.Issues) > 0 || len(analysis.Risks) > 0 {
			result = append(result, name)
		}
	}
	return result
}

func truncateTextValue(value string, width int) string {
	if width <= 0 || len(value) <= width {
		return value
	}
	if width <= 3 {
		return value[:width]
	}
	return value[:width-3] + "..."
}
