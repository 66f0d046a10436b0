package analyzer

import (
	"log/slog"

	"github.com/ppiankov/compatspectre/internal/models"
)

// EdgeKey uniquely identifies a service→service edge
type EdgeKey struct {
	From string
	To   string
}

// edgeSet is the result of one graph build
type edgeSet struct {
	edges        []models.CrossServiceDependency
	dependencies map[string][]string
	dropped      int
}

// buildEdges emits s→d for every declared dependency d of s that is itself
// in the requested set. names must already be deduplicated.
func (e *Engine) buildEdges(names []string) edgeSet {
	requested := make(map[string]struct{}, len(names))
	for _, name := range names {
		requested[name] = struct{}{}
	}

	result := edgeSet{
		edges:        make([]models.CrossServiceDependency, 0),
		dependencies: make(map[string][]string, len(names)),
	}
	seen := make(map[EdgeKey]struct{})

	for _, from := range names {
		deps := e.registry.GetServiceDependencies(from)
		result.dependencies[from] = deps

		info, _ := e.registry.GetServiceInfo(from)
		for _, to := range deps {
			if _, ok := requested[to]; !ok {
				result.dropped++
				slog.Debug("dependency outside analyzed set dropped",
					slog.String("from", from),
					slog.String("to", to),
				)
				continue
			}

			key := EdgeKey{From: from, To: to}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			depType := info.DependencyTypeOf(to)
			result.edges = append(result.edges, models.CrossServiceDependency{
				FromService:    from,
				ToService:      to,
				DependencyType: depType,
				Criticality:    criticalityFor(depType),
			})
		}
	}

	e.metrics.AddDroppedEdges(result.dropped)
	slog.Debug("built dependency graph",
		slog.Int("edges", len(result.edges)),
		slog.Int("dropped", result.dropped),
	)
	return result
}

// criticalityFor derives edge criticality from the relationship type
func criticalityFor(depType models.DependencyType) models.Criticality {
	switch depType {
	case models.DependencyServiceCall:
		return models.CriticalityHigh
	case models.DependencyData:
		return models.CriticalityMedium
	case models.DependencyConfiguration:
		return models.CriticalityLow
	default:
		return models.CriticalityHigh
	}
}
