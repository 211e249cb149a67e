// Package store owns the on-device durable mirror of the log tables.
//
// The database is an embedded SQLite file opened in WAL mode. Each log kind
// has one mirror table (see internal/schema) carrying a device-assigned
// local_id, a nullable unique remote_id, and the domain columns. A row whose
// remote_id is NULL has not reached the remote store yet; attaching a remote
// id is the one-way transition from pending to synced.
//
// A single-row status table acts as the first-run bootstrap marker. Creating
// it is transactional: a failure rolls back fully and propagates, so
// initialization never leaves partially-created schema behind.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/simplebaby/babysync/internal/schema"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrNotFound is returned when a referenced local record does not exist.
var ErrNotFound = errors.New("record not found")

// DB wraps the SQLite connection holding the local mirror tables.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates a database connection at the specified path.
//
// The parent directory is created if needed. WAL mode, a busy timeout, and
// foreign keys are enabled. The caller must call Close when done.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn, path: path}

	if _, err := db.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close checkpoints the WAL and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// Init performs first-run setup and ensures every mirror table exists.
func (db *DB) Init(tables ...*schema.Table) error {
	return db.InitContext(context.Background(), tables...)
}

// InitContext performs first-run setup with context support.
//
// The bootstrap marker is created inside a transaction: either the status
// table and its row both exist afterwards, or nothing was created and the
// error is returned. The marker already existing is the normal case on every
// start after the first. Mirror tables are then ensured with non-destructive
// CREATE TABLE IF NOT EXISTS, so rows inserted between calls survive.
func (db *DB) InitContext(ctx context.Context, tables ...*schema.Table) error {
	if err := db.ensureBootstrapMarker(ctx); err != nil {
		return err
	}

	for _, t := range tables {
		if _, err := db.conn.ExecContext(ctx, t.DDL()); err != nil {
			return fmt.Errorf("failed to ensure table %s: %w", t.LocalName(), err)
		}
	}

	return nil
}

// ensureBootstrapMarker creates the single-row status table on first run.
func (db *DB) ensureBootstrapMarker(ctx context.Context) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin bootstrap transaction: %w", err)
	}
	defer tx.Rollback()

	var name string
	err = tx.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name = ?", "status",
	).Scan(&name)
	switch {
	case err == nil:
		// Marker exists, nothing to do.
		return tx.Commit()
	case errors.Is(err, sql.ErrNoRows):
		// First run.
	default:
		return fmt.Errorf("failed to check bootstrap marker: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"CREATE TABLE status (status TEXT PRIMARY KEY NOT NULL)"); err != nil {
		return fmt.Errorf("failed to create bootstrap marker: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO status (status) VALUES (?)", "online"); err != nil {
		return fmt.Errorf("failed to write bootstrap marker: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bootstrap transaction: %w", err)
	}
	return nil
}

// InsertPending appends a new record with no remote id and returns the
// assigned local id. The record is validated against the table's required
// columns first.
func (db *DB) InsertPending(ctx context.Context, t *schema.Table, rec *schema.Record) (int64, error) {
	if err := t.Validate(rec); err != nil {
		return 0, fmt.Errorf("invalid %s record: %w", t.Kind, err)
	}

	cols := t.ColumnNames()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)+1), ", ")
	query := fmt.Sprintf("INSERT INTO %s (child_id, %s) VALUES (%s)",
		t.LocalName(), strings.Join(cols, ", "), placeholders)

	args := make([]any, 0, len(cols)+1)
	args = append(args, rec.ChildID)
	for _, col := range cols {
		args = append(args, nullIfEmpty(rec.Fields[col]))
	}

	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert pending %s record: %w", t.Kind, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read assigned local id: %w", err)
	}
	return id, nil
}

// ListPending returns all records for the child that have not been uploaded
// yet. Order is unspecified.
func (db *DB) ListPending(ctx context.Context, t *schema.Table, childID string) ([]*schema.Record, error) {
	query := fmt.Sprintf(
		"SELECT local_id, remote_id, child_id, %s, logged_at FROM %s WHERE remote_id IS NULL AND child_id = ?",
		strings.Join(t.ColumnNames(), ", "), t.LocalName())

	rows, err := db.conn.QueryContext(ctx, query, childID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending %s records: %w", t.Kind, err)
	}
	defer rows.Close()

	return scanRecords(t, rows)
}

// AttachRemoteID marks a local record as synced by setting its remote id and
// server timestamp. This is the only pending-to-synced transition; it fails
// with ErrNotFound if the local record does not exist.
func (db *DB) AttachRemoteID(ctx context.Context, t *schema.Table, localID int64, remoteID, loggedAt string) error {
	if remoteID == "" {
		return fmt.Errorf("remote id must not be empty")
	}

	query := fmt.Sprintf("UPDATE %s SET remote_id = ?, logged_at = ? WHERE local_id = ?", t.LocalName())
	res, err := db.conn.ExecContext(ctx, query, remoteID, nullIfEmpty(loggedAt), localID)
	if err != nil {
		return fmt.Errorf("failed to attach remote id to local_id %d: %w", localID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check attach result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("local_id %d: %w", localID, ErrNotFound)
	}
	return nil
}

// Begin opens a transaction for a batched download pass.
func (db *DB) Begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// UpsertFromRemote applies one remote row to the local mirror inside the
// given transaction. If a local record with the same remote id exists its
// domain fields and logged_at are overwritten (remote wins); otherwise a new
// record is inserted already carrying the remote id. The write is a single
// conditional statement, so each row is its own atomic unit even when many
// rows share a transaction.
//
// Returns whether local state changed.
func (db *DB) UpsertFromRemote(ctx context.Context, tx *sql.Tx, t *schema.Table, rec *schema.Record) (bool, error) {
	if rec.RemoteID == "" {
		return false, fmt.Errorf("upsert requires a remote id")
	}

	cols := t.ColumnNames()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)+3), ", ")

	var sets []string
	sets = append(sets, "child_id = excluded.child_id")
	for _, col := range cols {
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", col, col))
	}
	sets = append(sets, "logged_at = excluded.logged_at")

	query := fmt.Sprintf(`
	INSERT INTO %s (remote_id, child_id, %s, logged_at)
	VALUES (%s)
	ON CONFLICT(remote_id) DO UPDATE SET
		%s`,
		t.LocalName(), strings.Join(cols, ", "), placeholders, strings.Join(sets, ",\n\t\t"))

	args := make([]any, 0, len(cols)+3)
	args = append(args, rec.RemoteID, rec.ChildID)
	for _, col := range cols {
		args = append(args, nullIfEmpty(rec.Fields[col]))
	}
	args = append(args, nullIfEmpty(rec.LoggedAt))

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to upsert remote_id %s: %w", rec.RemoteID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check upsert result: %w", err)
	}
	return n > 0, nil
}

// CountPending returns the number of records awaiting upload for the child.
func (db *DB) CountPending(ctx context.Context, t *schema.Table, childID string) (int, error) {
	return db.count(ctx, t, childID, "remote_id IS NULL")
}

// CountSynced returns the number of records linked to a remote row.
func (db *DB) CountSynced(ctx context.Context, t *schema.Table, childID string) (int, error) {
	return db.count(ctx, t, childID, "remote_id IS NOT NULL")
}

func (db *DB) count(ctx context.Context, t *schema.Table, childID, cond string) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s AND child_id = ?", t.LocalName(), cond)
	var n int
	if err := db.conn.QueryRowContext(ctx, query, childID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s records: %w", t.Kind, err)
	}
	return n, nil
}

// ListRecent returns the child's most recently created records, synced or
// not, newest first by local id.
func (db *DB) ListRecent(ctx context.Context, t *schema.Table, childID string, limit int) ([]*schema.Record, error) {
	query := fmt.Sprintf(
		"SELECT local_id, remote_id, child_id, %s, logged_at FROM %s WHERE child_id = ? ORDER BY local_id DESC",
		strings.Join(t.ColumnNames(), ", "), t.LocalName())
	args := []any{childID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s records: %w", t.Kind, err)
	}
	defer rows.Close()

	return scanRecords(t, rows)
}

// GetByLocalID returns a single record by its local id.
func (db *DB) GetByLocalID(ctx context.Context, t *schema.Table, localID int64) (*schema.Record, error) {
	query := fmt.Sprintf(
		"SELECT local_id, remote_id, child_id, %s, logged_at FROM %s WHERE local_id = ?",
		strings.Join(t.ColumnNames(), ", "), t.LocalName())

	rows, err := db.conn.QueryContext(ctx, query, localID)
	if err != nil {
		return nil, fmt.Errorf("failed to query local_id %d: %w", localID, err)
	}
	defer rows.Close()

	recs, err := scanRecords(t, rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("local_id %d: %w", localID, ErrNotFound)
	}
	return recs[0], nil
}

// scanRecords reads mirror rows in the column order produced by the queries
// above: local_id, remote_id, child_id, domain columns, logged_at.
func scanRecords(t *schema.Table, rows *sql.Rows) ([]*schema.Record, error) {
	var recs []*schema.Record

	cols := t.ColumnNames()
	for rows.Next() {
		rec := &schema.Record{Fields: make(map[string]string, len(cols))}

		var remoteID, loggedAt sql.NullString
		fields := make([]sql.NullString, len(cols))

		dest := make([]any, 0, len(cols)+4)
		dest = append(dest, &rec.LocalID, &remoteID, &rec.ChildID)
		for i := range fields {
			dest = append(dest, &fields[i])
		}
		dest = append(dest, &loggedAt)

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan %s record: %w", t.Kind, err)
		}

		rec.RemoteID = remoteID.String
		rec.LoggedAt = loggedAt.String
		for i, col := range cols {
			if fields[i].Valid {
				rec.Fields[col] = fields[i].String
			}
		}

		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s records: %w", t.Kind, err)
	}
	return recs, nil
}

// nullIfEmpty stores the empty string as SQL NULL. Pending rows must keep
// remote_id NULL rather than "" so the UNIQUE constraint holds across them,
// and absent optional columns follow the same convention.
func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
