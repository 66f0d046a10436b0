package baseline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/compatspectre/internal/models"
)

func sampleReport(orderVersion string, generatedAt time.Time) *models.Report {
	return &models.Report{
		TotalServices: 3,
		ServiceAnalysis: map[string]models.ServiceCompatibilityAnalysis{
			"orders": {
				ServiceName:    "orders",
				CurrentVersion: orderVersion,
				Issues: []models.CompatibilityIssue{{
					IssueType:        models.IssueVersionMismatch,
					Severity:         models.SeverityWarning,
					Description:      "orders " + orderVersion + " requires auth-service >=2.0.0",
					AffectedServices: []string{"orders", "auth-service"},
				}},
				Risks: []models.ServiceRisk{{
					RiskType: models.RiskVersionConflict,
					Severity: models.SeverityWarning,
				}},
				Status: models.StatusActive,
			},
			"ghost": {
				ServiceName: "ghost",
				Status:      models.StatusNotFound,
				Risks: []models.ServiceRisk{{
					RiskType: models.RiskMissingService,
					Severity: models.SeverityCritical,
				}},
			},
			"auth-service": {ServiceName: "auth-service", Status: models.StatusActive},
		},
		GlobalIssues: []models.GlobalIssue{{
			IssueType:        models.GlobalVersionInconsistency,
			Severity:         models.SeverityWarning,
			AffectedServices: []string{"orders", "auth-service", "ghost"},
		}},
		GeneratedAt: generatedAt,
	}
}

func TestCollectFingerprintsDeterministic(t *testing.T) {
	reportA := sampleReport("1.0.0", time.Date(2026, 2, 17, 10, 0, 0, 0, time.UTC))
	reportB := sampleReport("1.1.0", time.Date(2026, 2, 18, 10, 0, 0, 0, time.UTC))

	fingerprintsA := CollectFingerprints(reportA)
	fingerprintsB := CollectFingerprints(reportB)
	if !reflect.DeepEqual(fingerprintsA, fingerprintsB) {
		t.Fatalf("expected deterministic fingerprints, got %v vs %v", fingerprintsA, fingerprintsB)
	}
	if len(fingerprintsA) != 3 {
		t.Fatalf("expected issue, standalone risk and global issue fingerprints, got %d", len(fingerprintsA))
	}
}

func TestFindingsOrderAndKinds(t *testing.T) {
	findings := Findings(sampleReport("1.0.0", time.Time{}))

	cases := []struct {
		kind    string
		service string
		typ     string
	}{
		{kind: KindRisk, service: "ghost", typ: string(models.RiskMissingService)},
		{kind: KindIssue, service: "orders", typ: string(models.IssueVersionMismatch)},
		{kind: KindGlobalIssue, service: "", typ: string(models.GlobalVersionInconsistency)},
	}
	if len(findings) != len(cases) {
		t.Fatalf("expected %d findings, got %+v", len(cases), findings)
	}
	for i, tc := range cases {
		got := findings[i]
		if got.Kind != tc.kind || got.Service != tc.service || got.Type != tc.typ {
			t.Fatalf("finding %d: expected %s/%s/%s, got %+v", i, tc.kind, tc.service, tc.typ, got)
		}
	}
	if CountFindings(nil) != 0 {
		t.Fatal("expected no findings for nil report")
	}
}

func TestNewFindingsSuppressesKnown(t *testing.T) {
	report := sampleReport("1.0.0", time.Time{})
	known := Set{
		FingerprintRisk("ghost", models.ServiceRisk{RiskType: models.RiskMissingService, Severity: models.SeverityCritical}): {},
		FingerprintGlobalIssue(models.GlobalIssue{
			IssueType:        models.GlobalVersionInconsistency,
			Severity:         models.SeverityWarning,
			AffectedServices: []string{"ghost", "auth-service", "orders"},
		}): {},
	}

	fresh, suppressed := NewFindings(report, known)
	if suppressed != 2 {
		t.Fatalf("expected 2 suppressed findings, got %d", suppressed)
	}
	if len(fresh) != 1 || fresh[0].Kind != KindIssue {
		t.Fatalf("expected only the issue to remain, got %+v", fresh)
	}
	if CountFindings(report) != 3 {
		t.Fatal("expected report to be left untouched")
	}

	all, suppressed := NewFindings(report, nil)
	if suppressed != 0 || len(all) != 3 {
		t.Fatalf("expected every finding without a baseline, got %d suppressed %d", len(all), suppressed)
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "baseline.json")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("expected missing baseline file to be allowed, got %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected empty set for missing baseline, got %d", len(loaded))
	}

	set := Set{
		"b": {},
		"a": {},
	}
	if err := Save(path, set); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err = Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 fingerprints, got %d", len(loaded))
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read baseline file: %v", err)
	}
	var file File
	if err := json.Unmarshal(raw, &file); err != nil {
		t.Fatalf("failed to unmarshal baseline file: %v", err)
	}
	if file.Version != fileVersion {
		t.Fatalf("expected version %d, got %d", fileVersion, file.Version)
	}
	if !reflect.DeepEqual(file.Fingerprints, []string{"a", "b"}) {
		t.Fatalf("expected sorted fingerprints [a b], got %+v", file.Fingerprints)
	}
}

func TestLoadRejectsUnsupportedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.json")
	payload := `{"version":999,"fingerprints":[]}`
	if err := os.WriteFile(path, []byte(payload), 0644); err != nil {
		t.Fatalf("failed to write baseline file: %v", err)
	}

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "unsupported baseline version") {
		t.Fatalf("expected unsupported version error, got %v", err)
	}
}
