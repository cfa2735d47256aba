// Package cache persists scraped site contexts, per-run processing progress,
// and an append-only log of generated messages in a local SQLite database.
package cache

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"outreach/internal/scrape"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store wraps a SQLite database holding scraped contexts, progress
// checkpoints, and generated messages. Contexts are served back only while
// they are younger than the configured TTL; stale rows are deleted lazily
// on read.
type Store struct {
	db  *sql.DB
	ttl time.Duration
}

// Progress is a per-input-file checkpoint used to resume interrupted runs.
type Progress struct {
	Fingerprint string
	LastIndex   int
	Total       int
	UpdatedAt   time.Time
}

// MessageRecord is a row from the generated message log.
type MessageRecord struct {
	ID        int64           `json:"id"`
	Recipient string          `json:"recipient"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

// Stats summarizes store contents for status reporting.
type Stats struct {
	Contexts   int `json:"cached_contexts"`
	Messages   int `json:"generated_messages"`
	ActiveRuns int `json:"active_runs"`
}

// Open opens (or creates) the SQLite database at path and runs pending
// migrations. Pass ":memory:" for an in-memory database (used by tests).
func Open(path string, ttl time.Duration) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db, ttl: ttl}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Scraped contexts ---

// PutContext stores a scraped site context keyed by its domain, replacing
// any previous entry. Error-quality contexts are cached too so a dead site
// is not re-fetched on every run.
func (s *Store) PutContext(sc scrape.SiteContext) error {
	domain := strings.ToLower(sc.Domain)
	if domain == "" {
		return errors.New("context has empty domain")
	}
	if sc.ScrapedAt.IsZero() {
		sc.ScrapedAt = time.Now().UTC()
	}

	data, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("encoding context for %s: %w", domain, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO scraped_contexts (domain, data, scraped_at) VALUES (?, ?, ?)
		ON CONFLICT(domain) DO UPDATE SET data = excluded.data, scraped_at = excluded.scraped_at`,
		domain, string(data), sc.ScrapedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// GetContext returns the cached context for domain, or ErrNotFound if there
// is none. Entries older than the store TTL are deleted and reported as
// missing.
func (s *Store) GetContext(domain string) (scrape.SiteContext, error) {
	domain = strings.ToLower(domain)

	var data, scrapedAt string
	err := s.db.QueryRow(
		"SELECT data, scraped_at FROM scraped_contexts WHERE domain = ?", domain,
	).Scan(&data, &scrapedAt)
	if err == sql.ErrNoRows {
		return scrape.SiteContext{}, ErrNotFound
	}
	if err != nil {
		return scrape.SiteContext{}, err
	}

	t, err := time.Parse(time.RFC3339, scrapedAt)
	if err != nil {
		return scrape.SiteContext{}, fmt.Errorf("parsing scraped_at for %s: %w", domain, err)
	}

	if s.ttl > 0 && time.Since(t) > s.ttl {
		if _, err := s.db.Exec("DELETE FROM scraped_contexts WHERE domain = ?", domain); err != nil {
			return scrape.SiteContext{}, fmt.Errorf("evicting expired context for %s: %w", domain, err)
		}
		return scrape.SiteContext{}, ErrNotFound
	}

	var sc scrape.SiteContext
	if err := json.Unmarshal([]byte(data), &sc); err != nil {
		return scrape.SiteContext{}, fmt.Errorf("decoding context for %s: %w", domain, err)
	}
	return sc, nil
}

// ClearExpired removes all contexts older than the store TTL and returns how
// many rows were deleted.
func (s *Store) ClearExpired() (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-s.ttl).Format(time.RFC3339)
	res, err := s.db.Exec("DELETE FROM scraped_contexts WHERE scraped_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- Processing progress ---

// SetProgress records the checkpoint for a run over the input file identified
// by fingerprint.
func (s *Store) SetProgress(fingerprint string, lastIndex, total int) error {
	_, err := s.db.Exec(`
		INSERT INTO processing_progress (file_fingerprint, last_index, total, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(file_fingerprint) DO UPDATE SET
			last_index = excluded.last_index,
			total = excluded.total,
			updated_at = excluded.updated_at`,
		fingerprint, lastIndex, total, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetProgress returns the checkpoint for fingerprint, or ErrNotFound.
func (s *Store) GetProgress(fingerprint string) (Progress, error) {
	var p Progress
	var updatedAt string
	err := s.db.QueryRow(`
		SELECT file_fingerprint, last_index, total, updated_at
		FROM processing_progress WHERE file_fingerprint = ?`, fingerprint,
	).Scan(&p.Fingerprint, &p.LastIndex, &p.Total, &updatedAt)
	if err == sql.ErrNoRows {
		return Progress{}, ErrNotFound
	}
	if err != nil {
		return Progress{}, err
	}
	if p.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return Progress{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return p, nil
}

// ClearProgress removes the checkpoint for fingerprint. Clearing a missing
// checkpoint is not an error.
func (s *Store) ClearProgress(fingerprint string) error {
	_, err := s.db.Exec("DELETE FROM processing_progress WHERE file_fingerprint = ?", fingerprint)
	return err
}

// --- Generated messages ---

// SaveMessage appends a generated message for recipient to the log. The
// message is stored as JSON so the schema does not chase the message shape.
func (s *Store) SaveMessage(recipient string, message any) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encoding message for %s: %w", recipient, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO generated_messages (recipient, data, created_at) VALUES (?, ?, ?)`,
		recipient, string(data), time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// MessagesFor returns every stored message for recipient, oldest first.
func (s *Store) MessagesFor(recipient string) ([]MessageRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, recipient, data, created_at
		FROM generated_messages WHERE recipient = ? ORDER BY id ASC`, recipient,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// RecentMessages returns the most recently generated messages, newest first.
func (s *Store) RecentMessages(limit int) ([]MessageRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, recipient, data, created_at
		FROM generated_messages ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]MessageRecord, error) {
	var results []MessageRecord
	for rows.Next() {
		var m MessageRecord
		var data, createdAt string
		if err := rows.Scan(&m.ID, &m.Recipient, &data, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		m.Data = json.RawMessage(data)
		m.CreatedAt = t
		results = append(results, m)
	}
	return results, rows.Err()
}

// --- Maintenance ---

// ClearAll wipes cached contexts, progress checkpoints, and the message log.
func (s *Store) ClearAll() error {
	for _, table := range []string{"scraped_contexts", "processing_progress", "generated_messages"} {
		if _, err := s.db.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return nil
}

// Stats reports row counts for status output.
func (s *Store) Stats() (Stats, error) {
	var st Stats
	if err := s.db.QueryRow("SELECT COUNT(*) FROM scraped_contexts").Scan(&st.Contexts); err != nil {
		return Stats{}, err
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM generated_messages").Scan(&st.Messages); err != nil {
		return Stats{}, err
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM processing_progress").Scan(&st.ActiveRuns); err != nil {
		return Stats{}, err
	}
	return st, nil
}
