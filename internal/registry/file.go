package registry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ppiankov/compatspectre/internal/models"
	"gopkg.in/yaml.v3"
)

// Document is the on-disk registry layout (YAML or JSON)
type Document struct {
	Services []models.ServiceInfo `yaml:"services"`
}

// FileSource loads a snapshot from a YAML/JSON registry file
type FileSource struct {
	Path string
}

// NewFileSource creates a file-backed registry source
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Name identifies the source in report metadata
func (f *FileSource) Name() string {
	return "file:" + f.Path
}

// Load reads and parses the registry file
func (f *FileSource) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadFile(f.Path)
}

// LoadFile reads a registry document from path
func LoadFile(path string) (*Snapshot, error) {
	filename := strings.TrimSpace(path)
	if filename == "" {
		return nil, fmt.Errorf("registry path is empty")
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file %q: %w", filename, err)
	}

	snapshot, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry file %q: %w", filename, err)
	}

	slog.Debug("loaded registry file",
		slog.String("path", filename),
		slog.Int("services", snapshot.Len()),
	)
	return snapshot, nil
}

// Parse decodes a registry document
func Parse(data []byte) (*Snapshot, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	for i := range doc.Services {
		for dep, depType := range doc.Services[i].DependencyTypes {
			if !validDependencyType(depType) {
				return nil, fmt.Errorf("service %q: invalid dependency type %q for %q",
					doc.Services[i].Name, depType, dep)
			}
		}
	}

	return NewSnapshot(doc.Services)
}

func validDependencyType(depType models.DependencyType) bool {
	switch depType {
	case models.DependencyServiceCall, models.DependencyData, models.DependencyConfiguration:
		return true
	default:
		return false
	}
}
