package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/AntonioDavid333/bestiary/internal/bloom"
)

// SnapshotInfo contains metadata about a built snapshot file.
type SnapshotInfo struct {
	SnapshotID string
	Store      string
	Path       string
	RowCount   int64
	SizeBytes  int64
	CreatedAt  time.Time
}

// Meta keys stored inside every snapshot file.
const (
	metaKeyField = "key_field"
	metaBloom    = "key_bloom"
)

// buildSnapshot creates a new immutable snapshot file off to the side. The
// file is complete and closed before the caller publishes it, so readers of
// the store never observe a partially written snapshot.
func buildSnapshot(ctx context.Context, dir, storeName string, docs []Document, indexFields []string, keyField string) (*SnapshotInfo, error) {
	snapshotID := fmt.Sprintf("%s:%s", storeName, uuid.New().String()[:8])
	createdAt := time.Now()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("store: failed to create snapshot directory: %w", err)
	}

	path := filepath.Clean(filepath.Join(dir, snapshotID+".sqlite"))

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: failed to create snapshot database: %w", err)
	}
	defer db.Close()

	// WAL for better write throughput during the build
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("store: failed to set journal mode: %w", err)
	}

	if err := createDocumentSchema(ctx, db, indexFields); err != nil {
		return nil, err
	}

	var keyBloom *bloom.Filter
	if keyField != "" {
		keyBloom = bloom.NewWithEstimates(len(docs), 0.01)
	}

	if err := insertDocuments(ctx, db, docs, indexFields, keyField, keyBloom); err != nil {
		return nil, err
	}

	if err := writeMeta(ctx, db, keyField, keyBloom); err != nil {
		return nil, err
	}

	// Checkpoint and switch to DELETE mode so the published file is a
	// single self-contained artifact.
	if _, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return nil, fmt.Errorf("store: failed to checkpoint snapshot: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=DELETE"); err != nil {
		return nil, fmt.Errorf("store: failed to finalize journal mode: %w", err)
	}
	if err := db.Close(); err != nil {
		return nil, fmt.Errorf("store: failed to close snapshot: %w", err)
	}

	fileInfo, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("store: failed to stat snapshot file: %w", err)
	}

	return &SnapshotInfo{
		SnapshotID: snapshotID,
		Store:      storeName,
		Path:       path,
		RowCount:   int64(len(docs)),
		SizeBytes:  fileInfo.Size(),
		CreatedAt:  createdAt,
	}, nil
}

// createDocumentSchema creates the documents table with one materialized
// column per declared index, plus the meta table.
func createDocumentSchema(ctx context.Context, db *sql.DB, indexFields []string) error {
	var sb strings.Builder
	sb.WriteString("CREATE TABLE documents (\n")
	sb.WriteString("\tseq INTEGER PRIMARY KEY AUTOINCREMENT,\n")
	sb.WriteString("\tdoc BLOB NOT NULL")
	for _, field := range indexFields {
		sb.WriteString(",\n\t")
		sb.WriteString(indexColumn(field))
		sb.WriteString(" NUMERIC")
	}
	sb.WriteString("\n)")

	if _, err := db.ExecContext(ctx, sb.String()); err != nil {
		return fmt.Errorf("store: failed to create documents table: %w", err)
	}

	for _, field := range indexFields {
		col := indexColumn(field)
		stmt := fmt.Sprintf("CREATE INDEX %s_idx ON documents(%s)", col, col)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: failed to create index on %s: %w", field, err)
		}
	}

	metaSQL := `
		CREATE TABLE meta (
			key TEXT PRIMARY KEY,
			value BLOB
		) WITHOUT ROWID
	`
	if _, err := db.ExecContext(ctx, metaSQL); err != nil {
		return fmt.Errorf("store: failed to create meta table: %w", err)
	}
	return nil
}

// insertDocuments writes all documents in order with snappy-compressed
// JSON payloads and materialized index values.
func insertDocuments(ctx context.Context, db *sql.DB, docs []Document, indexFields []string, keyField string, keyBloom *bloom.Filter) error {
	cols := []string{"doc"}
	placeholders := []string{"?"}
	for _, field := range indexFields {
		cols = append(cols, indexColumn(field))
		placeholders = append(placeholders, "?")
	}
	insertSQL := fmt.Sprintf("INSERT INTO documents (%s) VALUES (%s)",
		strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	stmt, err := db.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("store: failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		blob, err := encodeDocBlob(doc)
		if err != nil {
			return err
		}

		args := make([]interface{}, 0, len(indexFields)+1)
		args = append(args, blob)
		for _, field := range indexFields {
			args = append(args, indexValue(doc, field))
		}

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("store: failed to insert document: %w", err)
		}

		if keyBloom != nil {
			if key, ok := lookupPath(doc, keyField); ok {
				if s, ok := key.(string); ok {
					keyBloom.Add([]byte(s))
				}
			}
		}
	}
	return nil
}

// writeMeta records the key field and its bloom filter sidecar.
func writeMeta(ctx context.Context, db *sql.DB, keyField string, keyBloom *bloom.Filter) error {
	if keyField == "" {
		return nil
	}

	if _, err := db.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES (?, ?)", metaKeyField, []byte(keyField)); err != nil {
		return fmt.Errorf("store: failed to write key field meta: %w", err)
	}

	blob, err := bloom.Marshal(keyBloom)
	if err != nil {
		return fmt.Errorf("store: failed to serialize key bloom filter: %w", err)
	}
	if _, err := db.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES (?, ?)", metaBloom, blob); err != nil {
		return fmt.Errorf("store: failed to write key bloom meta: %w", err)
	}
	return nil
}

// updateBloomMeta replaces the bloom sidecar after an in-place mutation.
func updateBloomMeta(ctx context.Context, tx *sql.Tx, keyBloom *bloom.Filter) error {
	blob, err := bloom.Marshal(keyBloom)
	if err != nil {
		return fmt.Errorf("store: failed to serialize key bloom filter: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)", metaBloom, blob); err != nil {
		return fmt.Errorf("store: failed to update key bloom meta: %w", err)
	}
	return nil
}

// readBloomMeta loads the bloom sidecar from an open snapshot. Returns nil
// when the snapshot has no key field.
func readBloomMeta(ctx context.Context, db *sql.DB) (*bloom.Filter, error) {
	var blob []byte
	err := db.QueryRowContext(ctx,
		"SELECT value FROM meta WHERE key = ?", metaBloom).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: failed to read key bloom meta: %w", err)
	}
	return bloom.Unmarshal(blob)
}

// encodeDocBlob marshals and snappy-compresses a document payload.
func encodeDocBlob(doc Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("store: failed to marshal document: %w", err)
	}
	return snappy.Encode(nil, data), nil
}

// decodeDocBlob decompresses and unmarshals a document payload.
func decodeDocBlob(blob []byte) (Document, error) {
	data, err := snappy.Decode(nil, blob)
	if err != nil {
		return nil, fmt.Errorf("store: failed to decompress document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("store: failed to unmarshal document: %w", err)
	}
	return doc, nil
}

// indexColumn maps a dotted field path to its materialized column name.
// "stats.hp.base" becomes "idx_stats_hp_base".
func indexColumn(field string) string {
	return "idx_" + strings.ReplaceAll(field, ".", "_")
}

// indexValue extracts the value to materialize for an indexed field.
// Missing paths materialize as NULL; booleans as 0/1 so they sort sanely.
func indexValue(doc Document, field string) interface{} {
	v, ok := lookupPath(doc, field)
	if !ok {
		return nil
	}
	switch val := v.(type) {
	case string, float64, int, int64:
		return val
	case bool:
		if val {
			return int64(1)
		}
		return int64(0)
	default:
		return nil
	}
}
