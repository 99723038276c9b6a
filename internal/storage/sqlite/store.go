// Package sqlite implements ports.StatsStore on SQLite (modernc.org/sqlite,
// no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tjfontaine/webcore/internal/core/domain"
	"github.com/tjfontaine/webcore/internal/core/ports"
)

// homepageCacheSize is how many rows of each top list are cached.
const homepageCacheSize = 100

// Store is a SQLite implementation of StatsStore.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Ensure Store implements StatsStore
var _ ports.StatsStore = (*Store)(nil)

// New opens (creating if needed) the database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db, now: time.Now}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS participants (
			username TEXT PRIMARY KEY,
			giving INTEGER NOT NULL DEFAULT 0,
			receiving INTEGER NOT NULL DEFAULT 0,
			claimed INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS global_stats (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			nparticipants INTEGER NOT NULL,
			transfer_volume INTEGER NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS homepage_top_givers (
			rank INTEGER PRIMARY KEY,
			username TEXT NOT NULL,
			amount INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS homepage_top_receivers (
			rank INTEGER PRIMARY KEY,
			username TEXT NOT NULL,
			amount INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS homepage_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_participants_claimed ON participants(claimed)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (s *Store) AddParticipant(ctx context.Context, p *domain.Participant) error {
	if p == nil || p.Username == "" {
		return fmt.Errorf("participant username is required")
	}
	query := `INSERT INTO participants (username, giving, receiving, claimed)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			giving = excluded.giving,
			receiving = excluded.receiving,
			claimed = excluded.claimed`
	if _, err := s.db.ExecContext(ctx, query, p.Username, p.Giving, p.Receiving, boolInt(p.Claimed)); err != nil {
		return fmt.Errorf("failed to add participant: %w", err)
	}
	return nil
}

// UpdateGlobalStats recounts claimed participants and the weekly volume.
func (s *Store) UpdateGlobalStats(ctx context.Context) error {
	query := `INSERT INTO global_stats (id, nparticipants, transfer_volume, updated_at)
		SELECT 1, COUNT(*), COALESCE(SUM(giving), 0), ?
		FROM participants WHERE claimed = 1
		ON CONFLICT(id) DO UPDATE SET
			nparticipants = excluded.nparticipants,
			transfer_volume = excluded.transfer_volume,
			updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, query, s.now().UTC()); err != nil {
		return fmt.Errorf("failed to update global stats: %w", err)
	}
	return nil
}

// UpdateHomepageQueries rebuilds both top lists in one transaction so
// readers never see a half-written cache.
func (s *Store) UpdateHomepageQueries(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	lists := []struct {
		table  string
		column string
	}{
		{"homepage_top_givers", "giving"},
		{"homepage_top_receivers", "receiving"},
	}
	for _, l := range lists {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+l.table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", l.table, err)
		}
		insert := fmt.Sprintf(`INSERT INTO %s (rank, username, amount)
			SELECT ROW_NUMBER() OVER (ORDER BY %s DESC, username ASC), username, %s
			FROM participants
			WHERE claimed = 1 AND %s > 0
			ORDER BY %s DESC, username ASC
			LIMIT ?`, l.table, l.column, l.column, l.column, l.column)
		if _, err := tx.ExecContext(ctx, insert, homepageCacheSize); err != nil {
			return fmt.Errorf("failed to fill %s: %w", l.table, err)
		}
	}

	meta := `INSERT INTO homepage_meta (id, updated_at) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`
	if _, err := tx.ExecContext(ctx, meta, s.now().UTC()); err != nil {
		return fmt.Errorf("failed to update homepage timestamp: %w", err)
	}

	return tx.Commit()
}

// SelfCheck runs SQLite's integrity check and verifies the derived tables
// only reference known participants with non-negative amounts.
func (s *Store) SelfCheck(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, "PRAGMA integrity_check")
	if err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	var problems []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			rows.Close()
			return fmt.Errorf("integrity check: %w", err)
		}
		if line != "ok" {
			problems = append(problems, line)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if len(problems) > 0 {
		return fmt.Errorf("integrity check: %s", strings.Join(problems, "; "))
	}

	checks := []struct {
		name  string
		query string
	}{
		{"negative amounts", `SELECT COUNT(*) FROM participants WHERE giving < 0 OR receiving < 0`},
		{"orphaned top givers", `SELECT COUNT(*) FROM homepage_top_givers g
			LEFT JOIN participants p ON p.username = g.username WHERE p.username IS NULL`},
		{"orphaned top receivers", `SELECT COUNT(*) FROM homepage_top_receivers r
			LEFT JOIN participants p ON p.username = r.username WHERE p.username IS NULL`},
		{"negative global stats", `SELECT COUNT(*) FROM global_stats WHERE nparticipants < 0 OR transfer_volume < 0`},
	}
	var errs []error
	for _, c := range checks {
		var n int
		if err := s.db.QueryRowContext(ctx, c.query).Scan(&n); err != nil {
			return fmt.Errorf("self-check %s: %w", c.name, err)
		}
		if n > 0 {
			errs = append(errs, fmt.Errorf("self-check: %d %s", n, c.name))
		}
	}
	return errors.Join(errs...)
}

// GlobalStats returns the cached counters. Before the first update it
// returns zero values.
func (s *Store) GlobalStats(ctx context.Context) (*domain.GlobalStats, error) {
	var stats domain.GlobalStats
	query := `SELECT nparticipants, transfer_volume, updated_at FROM global_stats WHERE id = 1`
	err := s.db.QueryRowContext(ctx, query).Scan(&stats.NParticipants, &stats.TransferVolume, &stats.UpdatedAt)
	if err == sql.ErrNoRows {
		return &stats, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get global stats: %w", err)
	}
	return &stats, nil
}

// Homepage returns up to limit rows of each cached top list.
func (s *Store) Homepage(ctx context.Context, limit int) (*domain.Homepage, error) {
	if limit <= 0 || limit > homepageCacheSize {
		limit = homepageCacheSize
	}

	hp := &domain.Homepage{
		TopGivers:    []domain.HomepageEntry{},
		TopReceivers: []domain.HomepageEntry{},
	}

	var err error
	if hp.TopGivers, err = s.topList(ctx, "homepage_top_givers", limit); err != nil {
		return nil, err
	}
	if hp.TopReceivers, err = s.topList(ctx, "homepage_top_receivers", limit); err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `SELECT updated_at FROM homepage_meta WHERE id = 1`).Scan(&hp.UpdatedAt)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get homepage timestamp: %w", err)
	}
	return hp, nil
}

func (s *Store) topList(ctx context.Context, table string, limit int) ([]domain.HomepageEntry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT username, amount FROM "+table+" ORDER BY rank LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	entries := []domain.HomepageEntry{}
	for rows.Next() {
		var e domain.HomepageEntry
		if err := rows.Scan(&e.Username, &e.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
