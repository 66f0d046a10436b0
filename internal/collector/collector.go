package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/ppiankov/compatspectre/internal/models"
	"github.com/ppiankov/compatspectre/internal/registry"
	"github.com/ppiankov/compatspectre/internal/retry"
	"github.com/ppiankov/compatspectre/pkg/config"
)

// ClickHouseSource loads registry snapshots from a ClickHouse table
type ClickHouseSource struct {
	client       *ClickHouseClient
	queryTimeout time.Duration
	policy       retry.Policy
}

var _ registry.Source = (*ClickHouseSource)(nil)

// NewClickHouseSource connects using cfg.ClickHouseDSN
func NewClickHouseSource(ctx context.Context, cfg *config.Config) (*ClickHouseSource, error) {
	client, err := NewClickHouseClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ClickHouse client: %w", err)
	}
	return newSource(client, cfg.QueryTimeout), nil
}

func newSource(client *ClickHouseClient, queryTimeout time.Duration) *ClickHouseSource {
	return &ClickHouseSource{client: client, queryTimeout: queryTimeout, policy: retryPolicy()}
}

// Name identifies the source in report metadata
func (s *ClickHouseSource) Name() string {
	return "clickhouse:" + s.client.table
}

// Load reads the table, retrying transient failures
func (s *ClickHouseSource) Load(ctx context.Context) (*registry.Snapshot, error) {
	ctx, cancel := retry.WithTotalTimeout(ctx, s.queryTimeout)
	defer cancel()

	var services []models.ServiceInfo
	err := retry.Do(ctx, s.policy, func() error {
		var fetchErr error
		services, fetchErr = s.client.FetchServices(ctx)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}

	return registry.NewSnapshot(services)
}

// Close closes the source and its resources
func (s *ClickHouseSource) Close() error {
	return s.client.Close()
}

func retryWith(ctx context.Context, fn func() error) error {
	return retry.Do(ctx, retryPolicy(), fn)
}
