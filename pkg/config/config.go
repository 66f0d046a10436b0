package config

import "time"

// Registry sources
const (
	SourceFile       = "file"
	SourceKubernetes = "k8s"
	SourceClickHouse = "clickhouse"
)

// Config holds all runtime configuration
type Config struct {
	// Registry settings
	RegistrySource string
	RegistryFile   string

	// ClickHouse registry settings
	ClickHouseDSN   string
	RegistryTable   string
	QueryTimeout    time.Duration
	ClickHouseLimit int

	// Kubernetes registry settings
	KubeConfig    string
	Namespaces    []string
	LabelSelector string
	K8sCacheTTL   time.Duration
	K8sRateLimit  int

	// Checker settings
	Concurrency      int
	CheckTimeout     time.Duration
	AnalysisTimeout  time.Duration
	CheckRetries     int
	CheckRateLimit   int
	BreakerThreshold uint32
	BreakerCooldown  time.Duration

	// Analysis settings
	CriticalServices []string
	CanaryServices   []string
	ExcludeServices  []string
	ScoringAlgorithm string
	UnitCost         time.Duration

	// Output settings
	OutputDir      string
	Format         string
	BaselinePath   string
	UpdateBaseline bool
	FailOnFindings bool

	// Server settings
	ServerPort int

	// Operational flags
	Verbose bool
	DryRun  bool
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		RegistrySource:   SourceFile,
		RegistryFile:     "registry.yaml",
		RegistryTable:    "service_registry",
		QueryTimeout:     30 * time.Second,
		ClickHouseLimit:  10000,
		Namespaces:       []string{},
		K8sCacheTTL:      5 * time.Minute,
		K8sRateLimit:     10,
		Concurrency:      5,
		CheckTimeout:     30 * time.Second,
		AnalysisTimeout:  5 * time.Minute,
		CheckRetries:     3,
		CheckRateLimit:   20,
		BreakerThreshold: 5,
		BreakerCooldown:  30 * time.Second,
		CriticalServices: []string{"auth-service", "messaging-service"},
		CanaryServices:   []string{"auth-service"},
		ExcludeServices:  []string{},
		ScoringAlgorithm: "simple",
		UnitCost:         5 * time.Minute, // placeholder, calibrate per environment
		OutputDir:        "./report",
		Format:           "text",
		ServerPort:       8080,
		Verbose:          false,
		DryRun:           false,
	}
}
