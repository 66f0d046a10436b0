package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/compatspectre/internal/models"
)

// ErrNotFound marks names absent from the registry
var ErrNotFound = errors.New("service not found in registry")

// Accessor is the read-only registry view consumed by the analysis engine
type Accessor interface {
	GetServiceInfo(name string) (*models.ServiceInfo, bool)
	GetServiceDependencies(name string) []string
}

// Source produces registry snapshots from a backing store
type Source interface {
	Name() string
	Load(ctx context.Context) (*Snapshot, error)
}

// Snapshot is an immutable, concurrency-safe registry view
type Snapshot struct {
	services map[string]models.ServiceInfo
}

// NewSnapshot builds a snapshot, rejecting empty or duplicate names
func NewSnapshot(services []models.ServiceInfo) (*Snapshot, error) {
	snapshot := &Snapshot{services: make(map[string]models.ServiceInfo, len(services))}

	for i, service := range services {
		name := strings.TrimSpace(service.Name)
		if name == "" {
			return nil, fmt.Errorf("service at index %d has an empty name", i)
		}
		if _, exists := snapshot.services[name]; exists {
			return nil, fmt.Errorf("duplicate service %q in registry", name)
		}
		service.Name = name
		service.Version = strings.TrimSpace(service.Version)
		if service.Status == "" {
			service.Status = models.RegistryActive
		}
		snapshot.services[name] = cloneInfo(service)
	}

	return snapshot, nil
}

// GetServiceInfo returns a copy of the registry entry
func (s *Snapshot) GetServiceInfo(name string) (*models.ServiceInfo, bool) {
	if s == nil {
		return nil, false
	}
	info, ok := s.services[name]
	if !ok {
		return nil, false
	}
	copied := cloneInfo(info)
	return &copied, true
}

// GetServiceDependencies returns declared dependency names, empty for unknown services
func (s *Snapshot) GetServiceDependencies(name string) []string {
	if s == nil {
		return []string{}
	}
	info, ok := s.services[name]
	if !ok {
		return []string{}
	}
	return info.DependencyNames()
}

// Names returns registered service names in sorted order
func (s *Snapshot) Names() []string {
	if s == nil {
		return []string{}
	}
	names := make([]string, 0, len(s.services))
	for name := range s.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered services
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.services)
}

func cloneInfo(info models.ServiceInfo) models.ServiceInfo {
	out := info
	out.Dependencies = append([]string(nil), info.Dependencies...)
	out.Requires = append([]models.Requirement(nil), info.Requires...)
	if info.DependencyTypes != nil {
		out.DependencyTypes = make(map[string]models.DependencyType, len(info.DependencyTypes))
		for k, v := range info.DependencyTypes {
			out.DependencyTypes[k] = v
		}
	}
	if info.Labels != nil {
		out.Labels = make(map[string]string, len(info.Labels))
		for k, v := range info.Labels {
			out.Labels[k] = v
		}
	}
	return out
}
