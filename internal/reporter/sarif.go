package reporter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ppiankov/compatspectre/internal/baseline"
	"github.com/ppiankov/compatspectre/internal/models"
	"github.com/ppiankov/compatspectre/pkg/config"
)

const (
	toolName                 = "compatspectre"
	ruleGeneric              = "compatspectre/FINDING"
	fingerprintKey           = "compatspectre/findingHash"
	sarifFallbackLocationURI = "README.md"
	sarifSchemaURI           = "https://docs.oasis-open.org/sarif/sarif/v2.1.0/cs01/schemas/sarif-schema-2.1.0.json"
)

var semanticVersionPattern = regexp.MustCompile(`^(0|[1-9]\d*)\.(0|[1-9]\d*)\.(0|[1-9]\d*)(?:-[0-9A-Za-z.-]+)?(?:\+[0-9A-Za-z.-]+)?$`)

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool              sarifTool               `json:"tool"`
	Results           []sarifResult           `json:"results"`
	AutomationDetails *sarifAutomationDetails `json:"automationDetails,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifAutomationDetails struct {
	ID string `json:"id"`
}

type sarifDriver struct {
	Name            string       `json:"name"`
	Version         string       `json:"version,omitempty"`
	InformationURI  string       `json:"informationUri,omitempty"`
	ShortDesc       sarifMessage `json:"shortDescription"`
	FullDesc        sarifMessage `json:"fullDescription"`
	Rules           []sarifRule  `json:"rules"`
	DownloadURI     string       `json:"downloadUri,omitempty"`
	SemanticVersion string       `json:"semanticVersion,omitempty"`
}

type sarifRule struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	ShortDesc     sarifMessage `json:"shortDescription"`
	FullDesc      sarifMessage `json:"fullDescription"`
	DefaultConfig sarifConfig  `json:"defaultConfiguration"`
}

type sarifConfig struct {
	Level string `json:"level"`
}

type sarifResult struct {
	RuleID              string            `json:"ruleId"`
	RuleIndex           *int              `json:"ruleIndex,omitempty"`
	Level               string            `json:"level,omitempty"`
	Message             sarifMessage      `json:"message"`
	Locations           []sarifLocation   `json:"locations,omitempty"`
	PartialFingerprints map[string]string `json:"partialFingerprints,omitempty"`
	Properties          map[string]any    `json:"properties,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation  `json:"physicalLocation,omitempty"`
	LogicalLocations []sarifLogicalLocation `json:"logicalLocations,omitempty"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine,omitempty"`
}

type sarifLogicalLocation struct {
	Name               string `json:"name,omitempty"`
	FullyQualifiedName string `json:"fullyQualifiedName,omitempty"`
	Kind               string `json:"kind,omitempty"`
}

// sarifRules is the fixed catalog; result ruleIndex points into it
var sarifRules = []sarifRule{
	rule(string(models.IssueVersionMismatch), "Version constraint not satisfied", "A service requires a version of a dependency that is not deployed.", "warning"),
	rule(string(models.IssueAPIChange), "API version mismatch", "A service expects an API version its dependency does not serve.", "error"),
	rule(string(models.IssueDependencyMissing), "Dependency missing from registry", "A declared or required dependency is not registered.", "error"),
	rule(string(models.IssueVersionUnparseable), "Version is not semver", "The registered version could not be parsed; 1.0.0 was assumed for the check.", "warning"),
	rule(string(models.IssueInvalidConstraint), "Invalid version constraint", "A declared requirement has a constraint that could not be parsed.", "note"),
	rule(string(models.RiskMissingService), "Service not registered", "A requested service is absent from the registry.", "error"),
	rule(string(models.RiskCheckerUnavailable), "Compatibility check failed", "The compatibility checker failed or timed out for a service.", "error"),
	rule(string(models.GlobalVersionInconsistency), "Versions diverge across fleet", "The requested services run different versions.", "warning"),
	rule(string(models.GlobalMissingCriticalService), "Critical service not requested", "A configured critical service is not part of the analysis.", "error"),
	{
		ID:            ruleGeneric,
		Name:          "FINDING",
		ShortDesc:     sarifMessage{Text: "Compatibility finding"},
		FullDesc:      sarifMessage{Text: "A compatibility finding without a dedicated rule."},
		DefaultConfig: sarifConfig{Level: "warning"},
	},
}

func rule(findingType, short, full, level string) sarifRule {
	name := strings.ToUpper(findingType)
	return sarifRule{
		ID:            toolName + "/" + name,
		Name:          name,
		ShortDesc:     sarifMessage{Text: short},
		FullDesc:      sarifMessage{Text: full},
		DefaultConfig: sarifConfig{Level: level},
	}
}

// WriteSARIF writes SARIF 2.1.0 output to report.sarif.
func WriteSARIF(output *models.Output, cfg *config.Config) error {
	if output == nil || output.Report == nil {
		return fmt.Errorf("report is nil")
	}
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := json.MarshalIndent(buildSARIF(output), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal SARIF: %w", err)
	}

	outputPath := filepath.Join(cfg.OutputDir, "report.sarif")
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write report.sarif: %w", err)
	}

	logWritten(outputPath)
	return nil
}

func buildSARIF(output *models.Output) sarifLog {
	version := output.Version
	if version == "" {
		version = output.Metadata.Version
	}

	return sarifLog{
		Version: "2.1.0",
		Schema:  sarifSchemaURI,
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:            toolName,
						Version:         version,
						SemanticVersion: normalizeSemanticVersion(version),
						InformationURI:  "https://github.com/ppiankov/compatspectre",
						DownloadURI:     "https://github.com/ppiankov/compatspectre/releases/latest",
						ShortDesc:       sarifMessage{Text: "Microservice compatibility analyzer"},
						FullDesc:        sarifMessage{Text: "Detects version, API and dependency incompatibilities across a service fleet before rollout."},
						Rules:           sarifRules,
					},
				},
				Results: buildSARIFResults(output.Report),
				AutomationDetails: &sarifAutomationDetails{
					ID: toolName + "/analyze",
				},
			},
		},
	}
}

func buildSARIFResults(report *models.Report) []sarifResult {
	findings := baseline.Findings(report)
	results := make([]sarifResult, 0, len(findings))

	for _, finding := range findings {
		index := ruleIndexFor(finding.Type)
		results = append(results, sarifResult{
			RuleID:    sarifRules[index].ID,
			RuleIndex: &index,
			Level:     sarifLevel(finding.Severity),
			Message:   sarifMessage{Text: findingMessage(finding)},
			Locations: findingLocation(finding),
			PartialFingerprints: map[string]string{
				fingerprintKey: finding.Fingerprint,
			},
			Properties: map[string]any{
				"kind":              finding.Kind,
				"type":              finding.Type,
				"severity":          string(finding.Severity),
				"service":           finding.Service,
				"affected_services": finding.Affected,
			},
		})
	}

	return results
}

func ruleIndexFor(findingType string) int {
	id := toolName + "/" + strings.ToUpper(findingType)
	for i, r := range sarifRules {
		if r.ID == id {
			return i
		}
	}
	return len(sarifRules) - 1
}

func findingMessage(finding baseline.Finding) string {
	if message := strings.TrimSpace(finding.Message); message != "" {
		return message
	}
	return strings.ReplaceAll(finding.Type, "_", " ")
}

func findingLocation(finding baseline.Finding) []sarifLocation {
	logical := sarifLogicalLocation{
		Name:               "fleet",
		FullyQualifiedName: toolName + ".fleet",
		Kind:               "fleet",
	}
	if service := strings.TrimSpace(finding.Service); service != "" {
		logical = sarifLogicalLocation{
			Name:               service,
			FullyQualifiedName: service,
			Kind:               "service",
		}
	}

	return []sarifLocation{
		{
			PhysicalLocation: sarifPhysicalLocation{
				ArtifactLocation: sarifArtifactLocation{URI: sarifFallbackLocationURI},
				Region: &sarifRegion{
					StartLine: 1,
				},
			},
			LogicalLocations: []sarifLogicalLocation{logical},
		},
	}
}

func sarifLevel(severity models.IssueSeverity) string {
	switch severity {
	case models.SeverityCritical, models.SeverityError:
		return "error"
	case models.SeverityInfo:
		return "note"
	default:
		return "warning"
	}
}

func normalizeSemanticVersion(version string) string {
	normalized := strings.TrimSpace(strings.TrimPrefix(version, "v"))
	if semanticVersionPattern.MatchString(normalized) {
		return normalized
	}
	return ""
}
