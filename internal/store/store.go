// Package store keeps an insert-only local copy of every record and leak
// the crawler produces. Rows are never updated; each insert gets its own id.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"blackwatch/internal/models"
	"blackwatch/internal/store/migrations"
)

// ErrEmptyPath is returned when no database path is configured.
var ErrEmptyPath = errors.New("sqlite path is empty")

// Store is a SQLite sink for records and leaks.
type Store struct {
	db   *sql.DB
	path string
}

// StoredRecord is a record together with its row metadata.
type StoredRecord struct {
	ID        int64
	CreatedAt time.Time
	Record    models.CandidateRecord
}

// StoredLeak is a leak together with its row metadata.
type StoredLeak struct {
	ID        int64
	CreatedAt time.Time
	Leak      models.LeakRecord
}

// Open opens or creates the database at path and applies pending migrations.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: path}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}

		if version <= current {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// InsertRecord stores rec and returns its row id.
func (s *Store) InsertRecord(ctx context.Context, rec *models.CandidateRecord) (int64, error) {
	return insertRecord(ctx, s.db, rec)
}

// InsertRecords stores recs in one transaction and returns their row ids in
// input order.
func (s *Store) InsertRecords(ctx context.Context, recs []models.CandidateRecord) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	ids := make([]int64, 0, len(recs))

	for i := range recs {
		id, err := insertRecord(ctx, tx, &recs[i])
		if err != nil {
			tx.Rollback()
			return nil, err
		}

		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing records: %w", err)
	}

	return ids, nil
}

func insertRecord(ctx context.Context, db execer, rec *models.CandidateRecord) (int64, error) {
	doc, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("marshalling record: %w", err)
	}

	var cvss sql.NullFloat64
	if rec.CVSS.Valid {
		cvss = sql.NullFloat64{Float64: rec.CVSS.Value, Valid: true}
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO records (client_id, host, path, title, upload_date, cvss, severity, dedup_hash, doc, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ClientID, rec.Host, rec.Path, rec.Title, rec.UploadDate, cvss, rec.Severity,
		rec.DedupHash, string(doc), now())
	if err != nil {
		return 0, fmt.Errorf("inserting record %s%s: %w", rec.Host, rec.Path, err)
	}

	return res.LastInsertId()
}

// InsertLeak stores leak and returns its row id.
func (s *Store) InsertLeak(ctx context.Context, leak *models.LeakRecord) (int64, error) {
	doc, err := json.Marshal(leak)
	if err != nil {
		return 0, fmt.Errorf("marshalling leak: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO leaks (client_id, host, path, file_name, sha256, email_count, username_count, doc, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, leak.ClientID, leak.Host, leak.Path, leak.Leaked.FileName, leak.Leaked.SHA256,
		leak.Leaked.EmailCount, leak.Leaked.UsernameCount, string(doc), now())
	if err != nil {
		return 0, fmt.Errorf("inserting leak %s: %w", leak.Path, err)
	}

	return res.LastInsertId()
}

// CountRecords returns the number of stored record rows.
func (s *Store) CountRecords(ctx context.Context) (int, error) {
	return s.count(ctx, "records")
}

// CountLeaks returns the number of stored leak rows.
func (s *Store) CountLeaks(ctx context.Context) (int, error) {
	return s.count(ctx, "leaks")
}

func (s *Store) count(ctx context.Context, table string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", table, err)
	}

	return n, nil
}

// ListRecords returns up to limit records, newest row first. A limit below
// one returns every row.
func (s *Store) ListRecords(ctx context.Context, limit int) ([]StoredRecord, error) {
	query := "SELECT id, created_at, doc FROM records ORDER BY id DESC"

	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return s.queryRecords(ctx, query, args...)
}

// FindByHash returns every stored row carrying hash, oldest first.
func (s *Store) FindByHash(ctx context.Context, hash string) ([]StoredRecord, error) {
	return s.queryRecords(ctx, "SELECT id, created_at, doc FROM records WHERE dedup_hash = ? ORDER BY id", hash)
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]StoredRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var out []StoredRecord

	for rows.Next() {
		var (
			sr      StoredRecord
			created string
			doc     string
		)

		if err := rows.Scan(&sr.ID, &created, &doc); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}

		if err := json.Unmarshal([]byte(doc), &sr.Record); err != nil {
			return nil, fmt.Errorf("decoding record %d: %w", sr.ID, err)
		}

		sr.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, sr)
	}

	return out, rows.Err()
}

// ListLeaks returns every stored leak, oldest first.
func (s *Store) ListLeaks(ctx context.Context) ([]StoredLeak, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, created_at, doc FROM leaks ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying leaks: %w", err)
	}
	defer rows.Close()

	var out []StoredLeak

	for rows.Next() {
		var (
			sl      StoredLeak
			created string
			doc     string
		)

		if err := rows.Scan(&sl.ID, &created, &doc); err != nil {
			return nil, fmt.Errorf("scanning leak: %w", err)
		}

		if err := json.Unmarshal([]byte(doc), &sl.Leak); err != nil {
			return nil, fmt.Errorf("decoding leak %d: %w", sl.ID, err)
		}

		sl.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, sl)
	}

	return out, rows.Err()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
