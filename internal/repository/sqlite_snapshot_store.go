package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"UrbanPull/internal/domain/models"
	"UrbanPull/internal/domain/repository"
	"UrbanPull/pkg/util"

	_ "modernc.org/sqlite"
)

// SQLiteStorage implements Storage on a single SQLite file.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (creating if needed) the database at path.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}
	if dir := filepath.Dir(path); dir != "." && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)

	return &SQLiteStorage{db: db}, nil
}

var _ repository.Storage = (*SQLiteStorage)(nil)

func (s *SQLiteStorage) Init(ctx context.Context) error {
	statements := []string{
		`PRAGMA journal_mode = WAL;`,
		`CREATE TABLE IF NOT EXISTS indicator_snapshots (
			id TEXT PRIMARY KEY,
			indicator TEXT NOT NULL,
			admin_level INTEGER NOT NULL,
			taxonomy TEXT NOT NULL DEFAULT '',
			period TEXT NOT NULL DEFAULT '',
			period_start INTEGER,
			payload TEXT NOT NULL,
			fetched_at INTEGER NOT NULL,
			source TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_indicator_snapshots_series
			ON indicator_snapshots (indicator, admin_level, taxonomy, period, fetched_at);`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStorage) Store(ctx context.Context, snap *models.IndicatorSnapshot) error {
	return s.StoreBatch(ctx, []*models.IndicatorSnapshot{snap})
}

// StoreBatch upserts snapshots by id in one transaction.
func (s *SQLiteStorage) StoreBatch(ctx context.Context, snaps []*models.IndicatorSnapshot) (err error) {
	if len(snaps) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO indicator_snapshots (
			id, indicator, admin_level, taxonomy, period, period_start, payload, fetched_at, source
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload,
			fetched_at = excluded.fetched_at,
			source = excluded.source
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, snap := range snaps {
		if snap == nil || snap.ID == "" {
			continue
		}
		var periodStart any
		if from, _, ok := util.ParsePeriod(snap.Period); ok {
			periodStart = from.Unix()
		}
		_, err = stmt.ExecContext(ctx,
			snap.ID,
			snap.Indicator,
			int(snap.AdminLevel),
			snap.Taxonomy,
			snap.Period,
			periodStart,
			string(snap.Payload),
			snap.FetchedAt.UTC().UnixNano(),
			snap.Source,
		)
		if err != nil {
			return fmt.Errorf("sqlite insert %s: %w", snap.ID, err)
		}
	}

	return tx.Commit()
}

// Query returns the series of ind, newest first. Zero from/to leave that bound open.
func (s *SQLiteStorage) Query(ctx context.Context, ind *models.Indicator, from, to time.Time, limit int) ([]*models.IndicatorSnapshot, error) {
	level, ok := ind.AdminLevelValue()
	if !ok || ind.Indicator == "" {
		return nil, ind.Validate()
	}

	q := `SELECT id, indicator, admin_level, taxonomy, period, payload, fetched_at, source
		FROM indicator_snapshots
		WHERE indicator = ? AND admin_level = ? AND taxonomy = ? AND period = ?`
	args := []any{ind.Indicator, int(level), ind.Taxonomy, ind.Period}
	if !from.IsZero() {
		q += ` AND fetched_at >= ?`
		args = append(args, from.UTC().UnixNano())
	}
	if !to.IsZero() {
		q += ` AND fetched_at <= ?`
		args = append(args, to.UTC().UnixNano())
	}
	q += ` ORDER BY fetched_at DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.IndicatorSnapshot
	for rows.Next() {
		var (
			snap    models.IndicatorSnapshot
			lvl     int
			payload string
			fetched int64
		)
		if err := rows.Scan(&snap.ID, &snap.Indicator, &lvl, &snap.Taxonomy, &snap.Period, &payload, &fetched, &snap.Source); err != nil {
			return nil, err
		}
		snap.AdminLevel = models.AdminLevel(lvl)
		snap.Payload = []byte(payload)
		snap.FetchedAt = time.Unix(0, fetched).UTC()
		out = append(out, &snap)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStorage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
