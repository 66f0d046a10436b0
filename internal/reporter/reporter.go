package reporter

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ppiankov/compatspectre/internal/models"
	"github.com/ppiankov/compatspectre/pkg/config"
)

// Supported output formats
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatSARIF = "sarif"
	FormatAll   = "all"
)

// Reporter writes analysis output in the configured format
type Reporter interface {
	Generate(output *models.Output) error
}

// reporter implements the Reporter interface
type reporter struct {
	config *config.Config
	stdout io.Writer
}

// New creates a new reporter instance
func New(cfg *config.Config) Reporter {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter creates a reporter that prints text output to w
func NewWithWriter(cfg *config.Config, w io.Writer) Reporter {
	return &reporter{
		config: cfg,
		stdout: w,
	}
}

// Generate writes every file the configured format calls for
func (r *reporter) Generate(output *models.Output) error {
	switch r.config.Format {
	case FormatText, "":
		return writeText(output, r.config, r.stdout)
	case FormatJSON:
		return WriteJSON(output, r.config)
	case FormatSARIF:
		return WriteSARIF(output, r.config)
	case FormatAll:
		if err := WriteJSON(output, r.config); err != nil {
			return err
		}
		if err := WriteSARIF(output, r.config); err != nil {
			return err
		}
		return writeText(output, r.config, r.stdout)
	default:
		return fmt.Errorf("unsupported format %q (want text, json, sarif or all)", r.config.Format)
	}
}

// ValidFormat reports whether format is one Generate understands
func ValidFormat(format string) bool {
	switch format {
	case FormatText, FormatJSON, FormatSARIF, FormatAll:
		return true
	default:
		return false
	}
}

func logWritten(path string) {
	slog.Debug("report written", slog.String("path", path))
}
