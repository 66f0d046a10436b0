package collector

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ppiankov/compatspectre/internal/models"
	"github.com/ppiankov/compatspectre/pkg/config"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// rowScanner is the subset of *sql.Rows used to decode registry rows
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

type queryFunc func(ctx context.Context, query string, args ...any) (rowScanner, error)

// ClickHouseClient reads registry rows from a ClickHouse table
type ClickHouseClient struct {
	conn  *sql.DB
	query queryFunc
	table string
	limit int
}

// NewClickHouseClient opens a pooled connection and verifies it with a ping
func NewClickHouseClient(ctx context.Context, cfg *config.Config) (*ClickHouseClient, error) {
	if !tableNamePattern.MatchString(cfg.RegistryTable) {
		return nil, fmt.Errorf("invalid registry table name %q", cfg.RegistryTable)
	}

	opts, err := clickhouse.ParseDSN(cfg.ClickHouseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ClickHouse DSN: %w", err)
	}

	opts.MaxOpenConns = 4
	opts.MaxIdleConns = 2
	opts.ConnMaxLifetime = time.Hour
	opts.DialTimeout = 30 * time.Second
	if cfg.QueryTimeout > 0 {
		opts.ReadTimeout = cfg.QueryTimeout
	}

	// readonly users cannot change settings such as max_execution_time
	opts.Settings = nil

	conn := clickhouse.OpenDB(opts)
	if err := retryWith(ctx, func() error { return conn.PingContext(ctx) }); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	slog.Debug("connected to ClickHouse", slog.String("addr", strings.Join(opts.Addr, ",")))

	client := &ClickHouseClient{
		conn:  conn,
		table: cfg.RegistryTable,
		limit: cfg.ClickHouseLimit,
	}
	client.query = func(ctx context.Context, query string, args ...any) (rowScanner, error) {
		return conn.QueryContext(ctx, query, args...)
	}
	return client, nil
}

func (c *ClickHouseClient) registryQuery() string {
	query := fmt.Sprintf(`
		SELECT
			name,
			version,
			location,
			dependencies,
			dependency_types,
			requires,
			api_version,
			status,
			labels
		FROM %s
		ORDER BY name`, c.table)
	if c.limit > 0 {
		query += fmt.Sprintf("\n\t\tLIMIT %d", c.limit)
	}
	return query
}

// FetchServices returns one ServiceInfo per valid registry row.
// Rows that fail to decode are skipped and counted.
func (c *ClickHouseClient) FetchServices(ctx context.Context) ([]models.ServiceInfo, error) {
	rows, err := c.query(ctx, c.registryQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to query registry table %s: %w", c.table, err)
	}
	defer func() { _ = rows.Close() }()

	services, err := decodeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry table %s: %w", c.table, err)
	}

	slog.Debug("loaded registry rows",
		slog.String("table", c.table),
		slog.Int("services", len(services)),
	)
	return services, nil
}

func decodeRows(rows rowScanner) ([]models.ServiceInfo, error) {
	services := make([]models.ServiceInfo, 0)
	seen := make(map[string]struct{})
	rowNum := 0
	skipped := 0

	for rows.Next() {
		rowNum++
		var (
			info            models.ServiceInfo
			dependencyTypes string
			requires        string
			status          string
			labels          string
		)

		if err := rows.Scan(
			&info.Name,
			&info.Version,
			&info.Location,
			&info.Dependencies,
			&dependencyTypes,
			&requires,
			&info.APIVersion,
			&status,
			&labels,
		); err != nil {
			skipped++
			if skipped == 1 {
				slog.Warn("failed to scan registry row, check the table schema",
					slog.Int("row", rowNum),
					slog.String("error", err.Error()),
				)
			}
			continue
		}

		if err := decodeColumns(&info, dependencyTypes, requires, status, labels); err != nil {
			skipped++
			slog.Warn("skipping registry row",
				slog.Int("row", rowNum),
				slog.String("service", info.Name),
				slog.String("error", err.Error()),
			)
			continue
		}

		if _, dup := seen[info.Name]; dup {
			skipped++
			slog.Warn("skipping duplicate registry row, keeping the first",
				slog.Int("row", rowNum),
				slog.String("service", info.Name),
			)
			continue
		}
		seen[info.Name] = struct{}{}
		services = append(services, info)
	}

	if skipped > 0 {
		slog.Warn("skipped problematic registry rows",
			slog.Int("skipped", skipped),
			slog.Int("total", rowNum),
		)
	}

	if err := rows.Err(); err != nil {
		if len(services) > 0 {
			slog.Warn("error during row iteration, keeping partial registry",
				slog.Int("services", len(services)),
				slog.String("error", err.Error()),
			)
			return services, nil
		}
		return nil, err
	}

	return services, nil
}

// decodeColumns fills the JSON-encoded columns; empty strings mean "not set"
func decodeColumns(info *models.ServiceInfo, dependencyTypes, requires, status, labels string) error {
	if strings.TrimSpace(info.Name) == "" {
		return fmt.Errorf("empty service name")
	}

	if s := strings.TrimSpace(dependencyTypes); s != "" {
		var types map[string]models.DependencyType
		if err := json.Unmarshal([]byte(s), &types); err != nil {
			return fmt.Errorf("invalid dependency_types: %w", err)
		}
		for dep, t := range types {
			switch t {
			case models.DependencyServiceCall, models.DependencyData, models.DependencyConfiguration:
			default:
				return fmt.Errorf("invalid dependency type %q for %q", t, dep)
			}
		}
		info.DependencyTypes = types
	}

	if s := strings.TrimSpace(requires); s != "" {
		if err := json.Unmarshal([]byte(s), &info.Requires); err != nil {
			return fmt.Errorf("invalid requires: %w", err)
		}
	}

	if s := strings.TrimSpace(labels); s != "" {
		if err := json.Unmarshal([]byte(s), &info.Labels); err != nil {
			return fmt.Errorf("invalid labels: %w", err)
		}
	}

	switch models.RegistryStatus(strings.TrimSpace(status)) {
	case "", models.RegistryActive:
		info.Status = models.RegistryActive
	case models.RegistryMaintenance:
		info.Status = models.RegistryMaintenance
	default:
		return fmt.Errorf("unknown status %q", status)
	}

	return nil
}

// Close closes the ClickHouse connection
func (c *ClickHouseClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
