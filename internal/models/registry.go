package models

// RegistryStatus is the lifecycle state recorded in the registry
type RegistryStatus string

const (
	RegistryActive      RegistryStatus = "active"
	RegistryMaintenance RegistryStatus = "maintenance"
)

// Requirement declares a version constraint on another service
type Requirement struct {
	Service    string `json:"service" yaml:"service"`
	Constraint string `json:"constraint" yaml:"constraint"`
	API        string `json:"api,omitempty" yaml:"api,omitempty"`
}

// ServiceInfo is a registry entry
type ServiceInfo struct {
	Name            string                    `json:"name" yaml:"name"`
	Version         string                    `json:"version" yaml:"version"`
	Location        string                    `json:"location,omitempty" yaml:"location,omitempty"`
	Dependencies    []string                  `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	DependencyTypes map[string]DependencyType `json:"dependency_types,omitempty" yaml:"dependency_types,omitempty"`
	Requires        []Requirement             `json:"requires,omitempty" yaml:"requires,omitempty"`
	APIVersion      string                    `json:"api_version,omitempty" yaml:"api_version,omitempty"`
	Status          RegistryStatus            `json:"status,omitempty" yaml:"status,omitempty"`
	Labels          map[string]string         `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// DependencyNames returns declared dependencies followed by required services
// not already listed, preserving declaration order.
func (s *ServiceInfo) DependencyNames() []string {
	if s == nil {
		return []string{}
	}

	seen := make(map[string]struct{}, len(s.Dependencies)+len(s.Requires))
	names := make([]string, 0, len(s.Dependencies)+len(s.Requires))
	add := func(name string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	for _, dep := range s.Dependencies {
		add(dep)
	}
	for _, req := range s.Requires {
		add(req.Service)
	}
	return names
}

// DependencyTypeOf returns the declared relationship type, defaulting to a service call
func (s *ServiceInfo) DependencyTypeOf(name string) DependencyType {
	if s == nil {
		return DependencyServiceCall
	}
	if depType, ok := s.DependencyTypes[name]; ok && depType != "" {
		return depType
	}
	return DependencyServiceCall
}
