package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFileYAML is the canonical config filename.
	DefaultConfigFileYAML = ".compatspectre.yaml"
	// DefaultConfigFileYML is a compatible alternate config filename.
	DefaultConfigFileYML = ".compatspectre.yml"
)

// FileConfig represents values loaded from a .compatspectre.yaml file.
type FileConfig struct {
	RegistrySource   string   `yaml:"registry_source"`
	RegistryFile     string   `yaml:"registry_file"`
	ClickHouseURL    string   `yaml:"clickhouse_url"`
	ClickHouseDSN    string   `yaml:"clickhouse_dsn"`
	RegistryTable    string   `yaml:"registry_table"`
	KubeConfig       string   `yaml:"kubeconfig"`
	Namespaces       []string `yaml:"namespaces"`
	LabelSelector    string   `yaml:"label_selector"`
	CriticalServices []string `yaml:"critical_services"`
	CanaryServices   []string `yaml:"canary_services"`
	ExcludeServices  []string `yaml:"exclude_services"`
	Concurrency      *int     `yaml:"concurrency"`
	CheckRetries     *int     `yaml:"check_retries"`
	CheckTimeout     string   `yaml:"check_timeout"`
	AnalysisTimeout  string   `yaml:"analysis_timeout"`
	Timeout          string   `yaml:"timeout"`
	UnitCost         string   `yaml:"unit_cost"`
	Format           string   `yaml:"format"`
	BaselinePath     string   `yaml:"baseline"`
}

// ClickHouseEndpoint returns the first configured ClickHouse endpoint.
func (fc *FileConfig) ClickHouseEndpoint() string {
	if fc == nil {
		return ""
	}
	if dsn := strings.TrimSpace(fc.ClickHouseDSN); dsn != "" {
		return dsn
	}
	return strings.TrimSpace(fc.ClickHouseURL)
}

// AnalysisTimeoutValue returns timeout from analysis_timeout/timeout fields.
func (fc *FileConfig) AnalysisTimeoutValue() string {
	if fc == nil {
		return ""
	}
	if timeout := strings.TrimSpace(fc.AnalysisTimeout); timeout != "" {
		return timeout
	}
	return strings.TrimSpace(fc.Timeout)
}

// Normalize trims and removes empty items from list fields.
func (fc *FileConfig) Normalize() {
	if fc == nil {
		return
	}
	fc.Namespaces = normalizeList(fc.Namespaces)
	fc.CriticalServices = normalizeList(fc.CriticalServices)
	fc.CanaryServices = normalizeList(fc.CanaryServices)
	fc.ExcludeServices = normalizeList(fc.ExcludeServices)
	fc.RegistrySource = strings.TrimSpace(fc.RegistrySource)
	fc.RegistryFile = strings.TrimSpace(fc.RegistryFile)
	fc.ClickHouseURL = strings.TrimSpace(fc.ClickHouseURL)
	fc.ClickHouseDSN = strings.TrimSpace(fc.ClickHouseDSN)
	fc.RegistryTable = strings.TrimSpace(fc.RegistryTable)
	fc.Format = strings.TrimSpace(fc.Format)
	fc.CheckTimeout = strings.TrimSpace(fc.CheckTimeout)
	fc.AnalysisTimeout = strings.TrimSpace(fc.AnalysisTimeout)
	fc.Timeout = strings.TrimSpace(fc.Timeout)
	fc.UnitCost = strings.TrimSpace(fc.UnitCost)
}

// ApplyTo copies every value set in the file onto cfg.
func (fc *FileConfig) ApplyTo(cfg *Config) error {
	if fc == nil || cfg == nil {
		return nil
	}

	if fc.RegistrySource != "" {
		cfg.RegistrySource = fc.RegistrySource
	}
	if fc.RegistryFile != "" {
		cfg.RegistryFile = fc.RegistryFile
	}
	if endpoint := fc.ClickHouseEndpoint(); endpoint != "" {
		cfg.ClickHouseDSN = endpoint
	}
	if fc.RegistryTable != "" {
		cfg.RegistryTable = fc.RegistryTable
	}
	if fc.KubeConfig != "" {
		cfg.KubeConfig = fc.KubeConfig
	}
	if len(fc.Namespaces) > 0 {
		cfg.Namespaces = fc.Namespaces
	}
	if fc.LabelSelector != "" {
		cfg.LabelSelector = fc.LabelSelector
	}
	if len(fc.CriticalServices) > 0 {
		cfg.CriticalServices = fc.CriticalServices
	}
	if len(fc.CanaryServices) > 0 {
		cfg.CanaryServices = fc.CanaryServices
	}
	if len(fc.ExcludeServices) > 0 {
		cfg.ExcludeServices = fc.ExcludeServices
	}
	if fc.Concurrency != nil {
		if *fc.Concurrency <= 0 {
			return fmt.Errorf("concurrency must be positive, got %d", *fc.Concurrency)
		}
		cfg.Concurrency = *fc.Concurrency
	}
	if fc.CheckRetries != nil {
		cfg.CheckRetries = *fc.CheckRetries
	}
	if fc.Format != "" {
		cfg.Format = fc.Format
	}
	if fc.BaselinePath != "" {
		cfg.BaselinePath = fc.BaselinePath
	}

	durations := []struct {
		key    string
		value  string
		target *time.Duration
	}{
		{key: "check_timeout", value: fc.CheckTimeout, target: &cfg.CheckTimeout},
		{key: "analysis_timeout", value: fc.AnalysisTimeoutValue(), target: &cfg.AnalysisTimeout},
		{key: "unit_cost", value: fc.UnitCost, target: &cfg.UnitCost},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("invalid %s in config file: %w", d.key, err)
		}
		*d.target = parsed
	}

	cfg.Normalize()
	return nil
}

// AutoLoadFile discovers and loads the first available config file.
func AutoLoadFile() (*FileConfig, string, error) {
	candidates := []string{
		DefaultConfigFileYAML,
		DefaultConfigFileYML,
	}

	if homeDir, err := os.UserHomeDir(); err == nil && strings.TrimSpace(homeDir) != "" {
		candidates = append(candidates,
			filepath.Join(homeDir, DefaultConfigFileYAML),
			filepath.Join(homeDir, DefaultConfigFileYML),
		)
	}

	return LoadFirstExistingFile(candidates)
}

// LoadFirstExistingFile loads the first config file that exists in paths.
func LoadFirstExistingFile(paths []string) (*FileConfig, string, error) {
	for _, path := range paths {
		candidate := strings.TrimSpace(path)
		if candidate == "" {
			continue
		}

		info, err := os.Stat(candidate)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, "", fmt.Errorf("failed to access config file %q: %w", candidate, err)
		}
		if info.IsDir() {
			return nil, "", fmt.Errorf("config path %q is a directory, expected a file", candidate)
		}

		cfg, err := LoadFile(candidate)
		if err != nil {
			return nil, "", err
		}
		return cfg, candidate, nil
	}

	return nil, "", nil
}

// LoadFile loads config values from a specific YAML file path.
func LoadFile(path string) (*FileConfig, error) {
	filename := strings.TrimSpace(path)
	if filename == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", filename, err)
	}

	cfg := &FileConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", filename, err)
	}

	cfg.Normalize()
	return cfg, nil
}

func normalizeList(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}

	normalized := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		normalized = append(normalized, trimmed)
	}
	return normalized
}
