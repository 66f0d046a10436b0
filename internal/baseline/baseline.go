package baseline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/compatspectre/internal/models"
)

const (
	// DefaultPath is used when --update-baseline is enabled without an explicit --baseline path.
	DefaultPath = ".compatspectre-baseline.json"
	fileVersion = 1
)

// Finding kinds
const (
	KindIssue       = "issue"
	KindGlobalIssue = "global_issue"
	KindRisk        = "risk"
)

// Set stores baseline fingerprints.
type Set map[string]struct{}

// File is the persisted baseline JSON payload.
type File struct {
	Version      int      `json:"version"`
	Fingerprints []string `json:"fingerprints"`
}

// Finding is one reportable problem flattened out of a report.
type Finding struct {
	Kind        string
	Type        string
	Severity    models.IssueSeverity
	Service     string
	Affected    []string
	Message     string
	Fingerprint string
}

// Load reads a baseline file. Missing files return an empty set.
func Load(path string) (Set, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, errors.New("baseline path is empty")
	}

	data, err := os.ReadFile(trimmed)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Set{}, nil
		}
		return nil, fmt.Errorf("read baseline file: %w", err)
	}

	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse baseline file: %w", err)
	}
	if file.Version != 0 && file.Version != fileVersion {
		return nil, fmt.Errorf("unsupported baseline version: %d", file.Version)
	}

	set := Set{}
	AddAll(set, file.Fingerprints)
	return set, nil
}

// Save writes a baseline file with sorted, unique fingerprints.
func Save(path string, set Set) error {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return errors.New("baseline path is empty")
	}

	dir := filepath.Dir(trimmed)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create baseline directory: %w", err)
		}
	}

	payload := File{
		Version:      fileVersion,
		Fingerprints: Sorted(set),
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal baseline file: %w", err)
	}

	if err := os.WriteFile(trimmed, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write baseline file: %w", err)
	}

	return nil
}

// AddAll inserts fingerprints into the target set.
func AddAll(target Set, fingerprints []string) {
	for _, fingerprint := range fingerprints {
		if fingerprint == "" {
			continue
		}
		target[fingerprint] = struct{}{}
	}
}

// Sorted returns sorted fingerprints from a set.
func Sorted(set Set) []string {
	fingerprints := make([]string, 0, len(set))
	for fingerprint := range set {
		fingerprints = append(fingerprints, fingerprint)
	}
	sort.Strings(fingerprints)
	return fingerprints
}

// Findings flattens a report into findings, services in name order then
// global issues in report order.
//
// Per-service issues and global issues are findings. Risks only count when
// no issue backs them (missing services, checker failures), since every
// other risk restates an issue.
func Findings(report *models.Report) []Finding {
	findings := make([]Finding, 0)
	if report == nil {
		return findings
	}

	names := make([]string, 0, len(report.ServiceAnalysis))
	for name := range report.ServiceAnalysis {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		analysis := report.ServiceAnalysis[name]
		for _, issue := range analysis.Issues {
			findings = append(findings, Finding{
				Kind:        KindIssue,
				Type:        string(issue.IssueType),
				Severity:    issue.Severity,
				Service:     name,
				Affected:    issue.AffectedServices,
				Message:     issue.Description,
				Fingerprint: FingerprintIssue(name, issue),
			})
		}
		for _, risk := range analysis.Risks {
			if !standaloneRisk(risk.RiskType) {
				continue
			}
			findings = append(findings, Finding{
				Kind:        KindRisk,
				Type:        string(risk.RiskType),
				Severity:    risk.Severity,
				Service:     name,
				Affected:    []string{name},
				Message:     risk.Description,
				Fingerprint: FingerprintRisk(name, risk),
			})
		}
	}

	for _, issue := range report.GlobalIssues {
		findings = append(findings, Finding{
			Kind:        KindGlobalIssue,
			Type:        string(issue.IssueType),
			Severity:    issue.Severity,
			Affected:    issue.AffectedServices,
			Message:     issue.Description,
			Fingerprint: FingerprintGlobalIssue(issue),
		})
	}

	return findings
}

func standaloneRisk(riskType models.RiskType) bool {
	switch riskType {
	case models.RiskMissingService, models.RiskCheckerUnavailable:
		return true
	default:
		return false
	}
}

// CountFindings returns the number of report items treated as findings.
func CountFindings(report *models.Report) int {
	return len(Findings(report))
}

// CollectFingerprints extracts fingerprints for all current findings in the report.
func CollectFingerprints(report *models.Report) []string {
	set := Set{}
	for _, finding := range Findings(report) {
		set[finding.Fingerprint] = struct{}{}
	}
	return Sorted(set)
}

// NewFindings returns the findings absent from the baseline, leaving the
// report untouched.
func NewFindings(report *models.Report, known Set) (fresh []Finding, suppressed int) {
	all := Findings(report)
	if len(known) == 0 {
		return all, 0
	}

	fresh = make([]Finding, 0, len(all))
	for _, finding := range all {
		if _, exists := known[finding.Fingerprint]; exists {
			suppressed++
			continue
		}
		fresh = append(fresh, finding)
	}
	return fresh, suppressed
}

// FingerprintIssue returns a stable fingerprint for a per-service issue.
// Descriptions carry versions and are left out so a finding survives a bump.
func FingerprintIssue(service string, issue models.CompatibilityIssue) string {
	return hash(KindIssue, service, string(issue.IssueType), string(issue.Severity), sortedJoin(issue.AffectedServices))
}

// FingerprintGlobalIssue returns a stable fingerprint for a global issue.
func FingerprintGlobalIssue(issue models.GlobalIssue) string {
	return hash(KindGlobalIssue, string(issue.IssueType), string(issue.Severity), sortedJoin(issue.AffectedServices))
}

// FingerprintRisk returns a stable fingerprint for a standalone risk.
func FingerprintRisk(service string, risk models.ServiceRisk) string {
	return hash(KindRisk, service, string(risk.RiskType), string(risk.Severity))
}

func sortedJoin(values []string) string {
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

func hash(parts ...string) string {
	canonical := strings.Join(parts, "\x1f")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
