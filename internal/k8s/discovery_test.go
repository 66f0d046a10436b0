package k8s

import (
	"context"
	"testing"
	"time"

	"github.com/ppiankov/compatspectre/internal/models"
	"github.com/ppiankov/compatspectre/pkg/config"
	"golang.org/x/time/rate"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
)

func service(namespace, name string, annotations, labels map[string]string) *corev1.Service {
	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:        name,
			Namespace:   namespace,
			Annotations: annotations,
			Labels:      labels,
		},
		Spec: corev1.ServiceSpec{
			Ports: []corev1.ServicePort{{Port: 8080}},
		},
	}
}

func discoveryConfig(namespaces ...string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Namespaces = namespaces
	cfg.K8sRateLimit = 0
	return cfg
}

func TestServiceInfoFrom(t *testing.T) {
	svc := service("shop", "orders", map[string]string{
		AnnotationVersion:      "2.1.0",
		AnnotationDependencies: "auth-service, inventory:data_dependency ,",
		AnnotationRequires:     `[{"service": "auth-service", "constraint": ">=1.2.0", "api": "v1"}]`,
		AnnotationAPIVersion:   "v2",
		AnnotationStatus:       "maintenance",
	}, map[string]string{"team": "checkout"})

	info, err := ServiceInfoFrom(svc)
	if err != nil {
		t.Fatalf("ServiceInfoFrom failed: %v", err)
	}
	if info.Version != "2.1.0" || info.APIVersion != "v2" {
		t.Fatalf("unexpected versions %q/%q", info.Version, info.APIVersion)
	}
	if info.Status != models.RegistryMaintenance {
		t.Fatalf("expected maintenance status, got %s", info.Status)
	}
	if len(info.Dependencies) != 2 || info.Dependencies[0] != "auth-service" || info.Dependencies[1] != "inventory" {
		t.Fatalf("unexpected dependencies %v", info.Dependencies)
	}
	if info.DependencyTypes["inventory"] != models.DependencyData {
		t.Fatalf("expected data dependency type, got %v", info.DependencyTypes)
	}
	if len(info.Requires) != 1 || info.Requires[0].Constraint != ">=1.2.0" || info.Requires[0].API != "v1" {
		t.Fatalf("unexpected requirements %+v", info.Requires)
	}
	if info.Location != "orders.shop.svc:8080" {
		t.Fatalf("unexpected location %q", info.Location)
	}
	if info.Labels["team"] != "checkout" || info.Labels[namespaceLabel] != "shop" {
		t.Fatalf("unexpected labels %v", info.Labels)
	}
}

func TestServiceInfoFromVersionFallback(t *testing.T) {
	info, err := ServiceInfoFrom(service("shop", "cart", nil, map[string]string{LabelVersion: "0.9.1"}))
	if err != nil {
		t.Fatalf("ServiceInfoFrom failed: %v", err)
	}
	if info.Version != "0.9.1" {
		t.Fatalf("expected label version, got %q", info.Version)
	}
	if info.Status != models.RegistryActive {
		t.Fatalf("expected active status, got %s", info.Status)
	}
	if len(info.Dependencies) != 0 {
		t.Fatalf("expected no dependencies, got %v", info.Dependencies)
	}
}

func TestServiceInfoFromInvalidAnnotations(t *testing.T) {
	cases := []struct {
		name        string
		annotations map[string]string
	}{
		{name: "bad_status", annotations: map[string]string{AnnotationStatus: "retired"}},
		{name: "bad_dependency_type", annotations: map[string]string{AnnotationDependencies: "auth:rpc"}},
		{name: "bad_requires", annotations: map[string]string{AnnotationRequires: "{not a list"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ServiceInfoFrom(service("shop", "orders", tc.annotations, nil)); err == nil {
				t.Fatalf("expected error for %v", tc.annotations)
			}
		})
	}
}

func TestDiscovererLoad(t *testing.T) {
	clientset := fake.NewSimpleClientset(
		service("shop", "orders", map[string]string{AnnotationVersion: "2.0.0", AnnotationDependencies: "auth-service"}, nil),
		service("platform", "auth-service", map[string]string{AnnotationVersion: "1.4.0"}, nil),
		service("platform", "broken", map[string]string{AnnotationStatus: "retired"}, nil),
		service("other", "ignored", nil, nil),
	)

	discoverer := NewDiscovererWithClient(NewClientFromInterface(clientset), discoveryConfig("shop", "platform"))
	snapshot, err := discoverer.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	names := snapshot.Names()
	if len(names) != 2 || names[0] != "auth-service" || names[1] != "orders" {
		t.Fatalf("unexpected services %v", names)
	}
	orders, ok := snapshot.GetServiceInfo("orders")
	if !ok || orders.Version != "2.0.0" || len(orders.Dependencies) != 1 {
		t.Fatalf("unexpected orders entry %+v", orders)
	}
	if discoverer.Name() != "k8s:shop,platform" {
		t.Fatalf("unexpected source name %q", discoverer.Name())
	}
}

func TestDiscovererDuplicateNamesFirstNamespaceWins(t *testing.T) {
	clientset := fake.NewSimpleClientset(
		service("staging", "orders", map[string]string{AnnotationVersion: "3.0.0-rc.1"}, nil),
		service("prod", "orders", map[string]string{AnnotationVersion: "2.0.0"}, nil),
	)

	discoverer := NewDiscovererWithClient(NewClientFromInterface(clientset), discoveryConfig("prod", "staging"))
	snapshot, err := discoverer.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	orders, ok := snapshot.GetServiceInfo("orders")
	if !ok || orders.Version != "2.0.0" {
		t.Fatalf("expected prod entry to win, got %+v", orders)
	}
}

func TestDiscovererUsesCache(t *testing.T) {
	clientset := fake.NewSimpleClientset(service("shop", "orders", map[string]string{AnnotationVersion: "1.0.0"}, nil))

	lists := 0
	clientset.PrependReactor("list", "services", func(k8stesting.Action) (bool, runtime.Object, error) {
		lists++
		return false, nil, nil
	})

	cfg := discoveryConfig("shop")
	cfg.K8sCacheTTL = time.Minute
	discoverer := NewDiscovererWithClient(NewClientFromInterface(clientset), cfg)

	for i := 0; i < 3; i++ {
		if _, err := discoverer.Load(context.Background()); err != nil {
			t.Fatalf("Load %d failed: %v", i, err)
		}
	}
	if lists != 1 {
		t.Fatalf("expected one list call with caching, got %d", lists)
	}
}

func TestDiscovererCanceledContext(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	cfg := discoveryConfig("shop")
	cfg.K8sRateLimit = 1

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	discoverer := NewDiscovererWithClient(NewClientFromInterface(clientset), cfg)
	if _, err := discoverer.Load(ctx); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestCacheExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewCache(time.Minute)
	cache.now = func() time.Time { return now }

	cache.Set("shop", []models.ServiceInfo{{Name: "orders"}})
	if got, ok := cache.Get("shop"); !ok || len(got) != 1 {
		t.Fatalf("expected cached entry, got %v %v", got, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := cache.Get("shop"); ok {
		t.Fatal("expected entry to expire")
	}

	cache.Set("platform", nil)
	if cache.Size() != 1 {
		t.Fatalf("expected expired entry to be evicted, size %d", cache.Size())
	}

	cache.Clear()
	if cache.Size() != 0 {
		t.Fatalf("expected empty cache, size %d", cache.Size())
	}
}

func TestCacheDisabled(t *testing.T) {
	cache := NewCache(0)
	cache.Set("shop", []models.ServiceInfo{{Name: "orders"}})
	if _, ok := cache.Get("shop"); ok {
		t.Fatal("expected zero TTL to disable caching")
	}
}

func TestRateLimiter(t *testing.T) {
	var unlimited *RateLimiter
	if NewRateLimiter(0) != nil {
		t.Fatal("expected nil limiter for zero rps")
	}
	if err := unlimited.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	limiter := NewRateLimiter(1)
	if limiter.limiter.Limit() != rate.Limit(1) || limiter.limiter.Burst() != 2 {
		t.Fatalf("expected 1 rps with a burst of two, got %v/%d", limiter.limiter.Limit(), limiter.limiter.Burst())
	}
	for i := 0; i < 2; i++ {
		if err := limiter.Wait(context.Background()); err != nil {
			t.Fatalf("expected burst call %d to pass, got %v", i, err)
		}
	}
}
