package k8s

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/compatspectre/internal/models"
	"github.com/ppiankov/compatspectre/internal/registry"
	"github.com/ppiankov/compatspectre/pkg/config"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Service annotations understood by the discoverer
const (
	AnnotationVersion      = "compatspectre.io/version"
	AnnotationDependencies = "compatspectre.io/dependencies"
	AnnotationRequires     = "compatspectre.io/requires"
	AnnotationAPIVersion   = "compatspectre.io/api-version"
	AnnotationStatus       = "compatspectre.io/status"

	// LabelVersion is the fallback when the version annotation is absent
	LabelVersion = "app.kubernetes.io/version"
)

const (
	listTimeout      = 10 * time.Second
	maxParallelLists = 4
)

// Discoverer builds registry snapshots from annotated Kubernetes Services
type Discoverer struct {
	client        *Client
	cache         *Cache
	rateLimiter   *RateLimiter
	namespaces    []string
	labelSelector string
}

// NewDiscoverer connects to the cluster configured in cfg
func NewDiscoverer(cfg *config.Config) (*Discoverer, error) {
	client, err := NewClient(cfg.KubeConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes client: %w", err)
	}
	return NewDiscovererWithClient(client, cfg), nil
}

// NewDiscovererWithClient uses an existing client
func NewDiscovererWithClient(client *Client, cfg *config.Config) *Discoverer {
	return &Discoverer{
		client:        client,
		cache:         NewCache(cfg.K8sCacheTTL),
		rateLimiter:   NewRateLimiter(cfg.K8sRateLimit),
		namespaces:    append([]string(nil), cfg.Namespaces...),
		labelSelector: cfg.LabelSelector,
	}
}

// Name identifies the source in report metadata
func (d *Discoverer) Name() string {
	if len(d.namespaces) == 0 {
		return "k8s:all-namespaces"
	}
	return "k8s:" + strings.Join(d.namespaces, ",")
}

// Load lists Services in every configured namespace concurrently
func (d *Discoverer) Load(ctx context.Context) (*registry.Snapshot, error) {
	namespaces := d.namespaces
	if len(namespaces) == 0 {
		namespaces = []string{metav1.NamespaceAll}
	}

	var mu sync.Mutex
	byNamespace := make(map[string][]models.ServiceInfo, len(namespaces))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLists)
	for _, namespace := range namespaces {
		namespace := namespace
		g.Go(func() error {
			services, err := d.listNamespace(gctx, namespace)
			if err != nil {
				return err
			}
			mu.Lock()
			byNamespace[namespace] = services
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return mergeNamespaces(namespaces, byNamespace)
}

func (d *Discoverer) listNamespace(ctx context.Context, namespace string) ([]models.ServiceInfo, error) {
	cacheKey := namespace + "|" + d.labelSelector
	if cached, ok := d.cache.Get(cacheKey); ok {
		slog.Debug("cache hit for namespace", slog.String("namespace", namespace))
		return cached, nil
	}

	if err := d.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	listCtx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	list, err := d.client.Clientset().CoreV1().Services(namespace).List(listCtx, metav1.ListOptions{
		LabelSelector: d.labelSelector,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list services in namespace %q: %w", namespace, err)
	}

	services := make([]models.ServiceInfo, 0, len(list.Items))
	for i := range list.Items {
		info, err := ServiceInfoFrom(&list.Items[i])
		if err != nil {
			slog.Warn("skipping service with invalid annotations",
				slog.String("namespace", list.Items[i].Namespace),
				slog.String("service", list.Items[i].Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		services = append(services, info)
	}

	d.cache.Set(cacheKey, services)
	slog.Debug("discovered services",
		slog.String("namespace", namespace),
		slog.Int("services", len(services)),
	)
	return services, nil
}

// mergeNamespaces flattens listings in namespace order; the first
// occurrence of a service name wins.
func mergeNamespaces(namespaces []string, byNamespace map[string][]models.ServiceInfo) (*registry.Snapshot, error) {
	seen := make(map[string]string)
	merged := make([]models.ServiceInfo, 0)

	for _, namespace := range namespaces {
		services := byNamespace[namespace]
		sort.Slice(services, func(i, j int) bool {
			if services[i].Labels[namespaceLabel] != services[j].Labels[namespaceLabel] {
				return services[i].Labels[namespaceLabel] < services[j].Labels[namespaceLabel]
			}
			return services[i].Name < services[j].Name
		})
		for _, info := range services {
			if owner, dup := seen[info.Name]; dup {
				slog.Warn("duplicate service name across namespaces, keeping first",
					slog.String("service", info.Name),
					slog.String("kept", owner),
					slog.String("skipped", info.Labels[namespaceLabel]),
				)
				continue
			}
			seen[info.Name] = info.Labels[namespaceLabel]
			merged = append(merged, info)
		}
	}

	return registry.NewSnapshot(merged)
}

// namespaceLabel records the source namespace on the registry entry
const namespaceLabel = "compatspectre.io/namespace"

// ServiceInfoFrom converts an annotated Service into a registry entry.
//
// Dependencies are comma separated; each may carry a relationship type
// ("payments:data_dependency"). Requirements are a YAML or JSON list of
// {service, constraint, api} objects.
func ServiceInfoFrom(svc *corev1.Service) (models.ServiceInfo, error) {
	annotations := svc.Annotations

	info := models.ServiceInfo{
		Name:       svc.Name,
		Version:    strings.TrimSpace(annotations[AnnotationVersion]),
		APIVersion: strings.TrimSpace(annotations[AnnotationAPIVersion]),
		Location:   location(svc),
		Status:     models.RegistryActive,
		Labels:     make(map[string]string, len(svc.Labels)+1),
	}
	if info.Version == "" {
		info.Version = strings.TrimSpace(svc.Labels[LabelVersion])
	}
	for k, v := range svc.Labels {
		info.Labels[k] = v
	}
	info.Labels[namespaceLabel] = svc.Namespace

	switch status := strings.TrimSpace(annotations[AnnotationStatus]); status {
	case "", string(models.RegistryActive):
	case string(models.RegistryMaintenance):
		info.Status = models.RegistryMaintenance
	default:
		return models.ServiceInfo{}, fmt.Errorf("unknown status %q", status)
	}

	deps, types, err := parseDependencies(annotations[AnnotationDependencies])
	if err != nil {
		return models.ServiceInfo{}, err
	}
	info.Dependencies = deps
	if len(types) > 0 {
		info.DependencyTypes = types
	}

	if raw := strings.TrimSpace(annotations[AnnotationRequires]); raw != "" {
		var requires []models.Requirement
		if err := yaml.Unmarshal([]byte(raw), &requires); err != nil {
			return models.ServiceInfo{}, fmt.Errorf("invalid %s annotation: %w", AnnotationRequires, err)
		}
		info.Requires = requires
	}

	return info, nil
}

func parseDependencies(raw string) ([]string, map[string]models.DependencyType, error) {
	deps := make([]string, 0)
	types := make(map[string]models.DependencyType)

	for _, part := range strings.Split(raw, ",") {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		name, depType, hasType := strings.Cut(item, ":")
		name = strings.TrimSpace(name)
		if hasType {
			t := models.DependencyType(strings.TrimSpace(depType))
			switch t {
			case models.DependencyServiceCall, models.DependencyData, models.DependencyConfiguration:
				types[name] = t
			default:
				return nil, nil, fmt.Errorf("invalid dependency type %q for %q", depType, name)
			}
		}
		deps = append(deps, name)
	}
	return deps, types, nil
}

func location(svc *corev1.Service) string {
	host := fmt.Sprintf("%s.%s.svc", svc.Name, svc.Namespace)
	if len(svc.Spec.Ports) == 0 {
		return host
	}
	return fmt.Sprintf("%s:%d", host, svc.Spec.Ports[0].Port)
}
