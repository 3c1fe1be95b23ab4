package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Catalog tracks snapshot lineage for every store in catalog.db. Publishing
// a snapshot is the single visible step that swaps a store's content:
// readers resolve the current snapshot through the catalog, so a half-built
// snapshot file is never observable.
type Catalog struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex // single writer
}

// SnapshotRecord is one snapshot row in the catalog.
type SnapshotRecord struct {
	SnapshotID   string
	Store        string
	Path         string
	RowCount     int64
	SizeBytes    int64
	CreatedAt    time.Time
	SupersededAt *time.Time
}

var catalogSchemaSQL = []string{
	`CREATE TABLE IF NOT EXISTS snapshots (
		snapshot_id TEXT PRIMARY KEY,
		store TEXT NOT NULL,
		path TEXT NOT NULL,
		row_count INTEGER NOT NULL,
		size_bytes INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		superseded_at INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_store ON snapshots(store, created_at)`,
	`CREATE TABLE IF NOT EXISTS current_snapshots (
		store TEXT PRIMARY KEY,
		snapshot_id TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS index_specs (
		store TEXT NOT NULL,
		field TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (store, field)
	)`,
}

// NewCatalog opens (creating if needed) the snapshot catalog database.
func NewCatalog(dbPath string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	c := &Catalog{db: db, dbPath: dbPath}
	for _, stmt := range catalogSchemaSQL {
		if _, err := c.db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("catalog: failed to initialize schema: %w", err)
		}
	}
	return c, nil
}

// Publish registers a freshly built snapshot and makes it the store's
// current content in one transaction, marking the predecessor superseded.
func (c *Catalog) Publish(ctx context.Context, info *SnapshotInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()

	if _, err := tx.ExecContext(ctx,
		`UPDATE snapshots SET superseded_at = ?
		 WHERE store = ? AND superseded_at IS NULL`,
		now, info.Store); err != nil {
		return fmt.Errorf("catalog: failed to supersede prior snapshots: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (snapshot_id, store, path, row_count, size_bytes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		info.SnapshotID, info.Store, info.Path, info.RowCount, info.SizeBytes,
		info.CreatedAt.Unix()); err != nil {
		return fmt.Errorf("catalog: failed to insert snapshot: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO current_snapshots (store, snapshot_id) VALUES (?, ?)`,
		info.Store, info.SnapshotID); err != nil {
		return fmt.Errorf("catalog: failed to update current snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("catalog: failed to commit publish: %w", err)
	}
	return nil
}

// Current returns the store's current snapshot, or nil when the store has
// never been loaded.
func (c *Catalog) Current(ctx context.Context, storeName string) (*SnapshotRecord, error) {
	query := `
		SELECT s.snapshot_id, s.store, s.path, s.row_count, s.size_bytes, s.created_at, s.superseded_at
		FROM current_snapshots cur
		JOIN snapshots s ON s.snapshot_id = cur.snapshot_id
		WHERE cur.store = ?`

	row := c.db.QueryRowContext(ctx, query, storeName)
	rec, err := scanSnapshotRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// History returns all snapshots for a store, newest first.
func (c *Catalog) History(ctx context.Context, storeName string) ([]*SnapshotRecord, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT snapshot_id, store, path, row_count, size_bytes, created_at, superseded_at
		 FROM snapshots WHERE store = ? ORDER BY created_at DESC`, storeName)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to query snapshot history: %w", err)
	}
	defer rows.Close()

	var records []*SnapshotRecord
	for rows.Next() {
		rec, err := scanSnapshotRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: error iterating snapshots: %w", err)
	}
	return records, nil
}

// DeclareIndex records a secondary index for a store. Declaring the same
// field twice is a no-op.
func (c *Catalog) DeclareIndex(ctx context.Context, storeName, field string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO index_specs (store, field, created_at) VALUES (?, ?, ?)`,
		storeName, field, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("catalog: failed to declare index: %w", err)
	}
	return nil
}

// IndexFields returns the declared index fields for a store in declaration
// order.
func (c *Catalog) IndexFields(ctx context.Context, storeName string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT field FROM index_specs WHERE store = ? ORDER BY created_at, field`, storeName)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to query index specs: %w", err)
	}
	defer rows.Close()

	var fields []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, fmt.Errorf("catalog: failed to scan index field: %w", err)
		}
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: error iterating index specs: %w", err)
	}
	return fields, nil
}

// SweepExpired removes superseded snapshot rows older than the TTL and
// returns their file paths so the caller can delete them.
func (c *Catalog) SweepExpired(ctx context.Context, ttl time.Duration) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-ttl).Unix()

	rows, err := c.db.QueryContext(ctx,
		`SELECT snapshot_id, path FROM snapshots
		 WHERE superseded_at IS NOT NULL AND superseded_at < ?`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to query expired snapshots: %w", err)
	}
	defer rows.Close()

	var ids, paths []string
	for rows.Next() {
		var id, path string
		if err := rows.Scan(&id, &path); err != nil {
			return nil, fmt.Errorf("catalog: failed to scan expired snapshot: %w", err)
		}
		ids = append(ids, id)
		paths = append(paths, path)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: error iterating expired snapshots: %w", err)
	}

	for _, id := range ids {
		if _, err := c.db.ExecContext(ctx,
			"DELETE FROM snapshots WHERE snapshot_id = ?", id); err != nil {
			return nil, fmt.Errorf("catalog: failed to delete snapshot %s: %w", id, err)
		}
	}
	return paths, nil
}

// Close closes the catalog database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshotRecord(row rowScanner) (*SnapshotRecord, error) {
	var rec SnapshotRecord
	var createdAtUnix int64
	var supersededAtUnix *int64

	err := row.Scan(&rec.SnapshotID, &rec.Store, &rec.Path,
		&rec.RowCount, &rec.SizeBytes, &createdAtUnix, &supersededAtUnix)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("catalog: failed to scan snapshot: %w", err)
	}

	rec.CreatedAt = time.Unix(createdAtUnix, 0)
	if supersededAtUnix != nil {
		t := time.Unix(*supersededAtUnix, 0)
		rec.SupersededAt = &t
	}
	return &rec, nil
}
