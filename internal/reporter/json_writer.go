package reporter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ppiankov/compatspectre/internal/models"
	"github.com/ppiankov/compatspectre/pkg/config"
)

// WriteJSON writes the output envelope to report.json
func WriteJSON(output *models.Output, cfg *config.Config) error {
	if output == nil || output.Report == nil {
		return fmt.Errorf("report is nil")
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report to JSON: %w", err)
	}

	outputPath := filepath.Join(cfg.OutputDir, "report.json")
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write report.json: %w", err)
	}

	logWritten(outputPath)
	return nil
}
