package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"UrbanPull/internal/domain/models"
	"UrbanPull/internal/domain/repository"
	"UrbanPull/pkg/util"
)

// ClickHouseStorage implements Storage for ClickHouse.
type ClickHouseStorage struct {
	db    *sql.DB
	table string
}

// NewClickHouseStorage creates ClickHouse storage. The pool is owned by pkg/clickhouse.
func NewClickHouseStorage(db *sql.DB, table string) *ClickHouseStorage {
	if table == "" {
		table = "indicator_snapshots"
	}
	return &ClickHouseStorage{db: db, table: table}
}

var _ repository.Storage = (*ClickHouseStorage)(nil)

// Schema returns the DDL for the snapshot table.
func (s *ClickHouseStorage) Schema() []string {
	return []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id String,
		indicator LowCardinality(String),
		admin_level Int32,
		taxonomy String,
		period String,
		period_start Nullable(DateTime),
		payload String,
		fetched_at DateTime64(3, 'UTC'),
		source LowCardinality(String)
	) ENGINE = ReplacingMergeTree
	ORDER BY (indicator, admin_level, taxonomy, period, fetched_at, id)`, s.table)}
}

func (s *ClickHouseStorage) Init(ctx context.Context) error {
	for _, stmt := range s.Schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clickhouse init %s: %w", s.table, err)
		}
	}
	return nil
}

func (s *ClickHouseStorage) Store(ctx context.Context, snap *models.IndicatorSnapshot) error {
	return s.StoreBatch(ctx, []*models.IndicatorSnapshot{snap})
}

func (s *ClickHouseStorage) StoreBatch(ctx context.Context, snaps []*models.IndicatorSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	// Multi-row VALUES keeps round-trips low; chunked to bound query size.
	const chunkSize = 1000
	for start := 0; start < len(snaps); start += chunkSize {
		end := start + chunkSize
		if end > len(snaps) {
			end = len(snaps)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*9)
		for _, snap := range snaps[start:end] {
			if snap == nil || snap.ID == "" {
				continue
			}
			var periodStart interface{}
			if from, _, ok := util.ParsePeriod(snap.Period); ok {
				periodStart = from
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				snap.ID,
				snap.Indicator,
				int32(snap.AdminLevel),
				snap.Taxonomy,
				snap.Period,
				periodStart,
				string(snap.Payload),
				snap.FetchedAt.UTC(),
				snap.Source,
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (id, indicator, admin_level, taxonomy, period, period_start, payload, fetched_at, source) VALUES %s",
			s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("clickhouse insert: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseStorage) Query(ctx context.Context, ind *models.Indicator, from, to time.Time, limit int) ([]*models.IndicatorSnapshot, error) {
	level, ok := ind.AdminLevelValue()
	if !ok || ind.Indicator == "" {
		return nil, ind.Validate()
	}
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if limit <= 0 {
		limit = 100
	}

	q := fmt.Sprintf(`SELECT id, indicator, admin_level, taxonomy, period, payload, fetched_at, source
		FROM %s FINAL
		WHERE indicator = ? AND admin_level = ? AND taxonomy = ? AND period = ?
		  AND fetched_at >= ? AND fetched_at <= ?
		ORDER BY fetched_at DESC LIMIT ?`, s.table)
	rows, err := s.db.QueryContext(ctx, q, ind.Indicator, int32(level), ind.Taxonomy, ind.Period, from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.IndicatorSnapshot
	for rows.Next() {
		var (
			snap    models.IndicatorSnapshot
			lvl     int32
			payload string
		)
		if err := rows.Scan(&snap.ID, &snap.Indicator, &lvl, &snap.Taxonomy, &snap.Period, &payload, &snap.FetchedAt, &snap.Source); err != nil {
			return nil, err
		}
		snap.AdminLevel = models.AdminLevel(lvl)
		snap.Payload = []byte(payload)
		out = append(out, &snap)
	}
	return out, rows.Err()
}

func (s *ClickHouseStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseStorage) Close() error {
	return nil // Managed by pkg
}
