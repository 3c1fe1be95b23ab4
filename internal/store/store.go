// Package store provides a generic document collection backed by immutable
// SQLite snapshot files. A load replaces the collection's entire content by
// building a new snapshot off to the side and publishing it through the
// snapshot catalog in one step, so readers never observe a transient empty
// or partial state. Filters compose equality, comparison, and membership
// predicates on dotted field paths; declared secondary indexes are
// materialized as real columns so that filters and sorts on them are served
// by SQL instead of a decode-and-scan.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/AntonioDavid333/bestiary/internal/bloom"
	berrors "github.com/AntonioDavid333/bestiary/internal/errors"
)

// Sort orders a result set by one field.
type Sort struct {
	Field      string
	Descending bool
}

// FindOptions narrows and shapes a Find result set.
type FindOptions struct {
	// Projection keeps only the named (possibly dotted) fields.
	Projection []string
	// Sort orders the result set; ties keep insertion order.
	Sort *Sort
	// Limit truncates the result set when > 0.
	Limit int
}

// Store is one document collection with an immutable-snapshot lifecycle.
type Store struct {
	name     string
	dir      string
	catalog  *Catalog
	keyField string

	mu         sync.RWMutex
	snapshotID string
	db         *sql.DB
	keyBloom   *bloom.Filter
}

// Option configures a Store.
type Option func(*Store)

// WithKeyField declares the primary-key field. Snapshots of a keyed store
// carry a bloom filter over the key values to short-circuit point lookups.
func WithKeyField(field string) Option {
	return func(s *Store) { s.keyField = field }
}

// NewStore opens a store, resolving its current snapshot through the
// catalog if one has been published before.
func NewStore(catalog *Catalog, dir, name string, opts ...Option) (*Store, error) {
	s := &Store{name: name, dir: dir, catalog: catalog}
	for _, opt := range opts {
		opt(s)
	}

	rec, err := catalog.Current(context.Background(), name)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		if err := s.open(rec.SnapshotID, rec.Path); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Name returns the store's collection name.
func (s *Store) Name() string {
	return s.name
}

// Snapshot returns the current snapshot record, or nil before the first load.
func (s *Store) Snapshot(ctx context.Context) (*SnapshotRecord, error) {
	return s.catalog.Current(ctx, s.name)
}

// Load replaces the entire collection content with the given documents in
// one visible step and returns the number inserted. The new snapshot is
// fully built before it is published, and the previous snapshot file stays
// on disk until the garbage collector sweeps it.
func (s *Store) Load(ctx context.Context, docs []Document) (int, error) {
	indexFields, err := s.catalog.IndexFields(ctx, s.name)
	if err != nil {
		return 0, err
	}

	info, err := buildSnapshot(ctx, s.dir, s.name, docs, indexFields, s.keyField)
	if err != nil {
		return 0, berrors.NewStoreError(berrors.CodeSnapshotPublishFailed,
			fmt.Sprintf("failed to build %s snapshot", s.name), err)
	}

	if err := s.catalog.Publish(ctx, info); err != nil {
		return 0, berrors.NewStoreError(berrors.CodeSnapshotPublishFailed,
			fmt.Sprintf("failed to publish %s snapshot", s.name), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
	if err := s.openLocked(info.SnapshotID, info.Path); err != nil {
		return 0, err
	}
	return len(docs), nil
}

// Find returns a restartable cursor over the documents matching the filter,
// shaped by the options. Fully indexed filters and sorts are pushed down to
// SQL; anything else falls back to a decode-and-scan in insertion order.
func (s *Store) Find(ctx context.Context, filter Filter, opts *FindOptions) (*Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return newCursor(nil), nil
	}
	if opts == nil {
		opts = &FindOptions{}
	}

	// A definite bloom miss on the key field means no document can match.
	if s.keyBloom != nil && s.bloomMiss(filter) {
		return newCursor(nil), nil
	}

	indexed, err := s.indexedSet(ctx)
	if err != nil {
		return nil, err
	}

	var docs []Document
	if planPushdown(filter, opts.Sort, indexed) {
		docs, err = s.findPushdown(ctx, filter, opts)
	} else {
		docs, err = s.findScan(ctx, filter, opts)
	}
	if err != nil {
		return nil, err
	}

	if len(opts.Projection) > 0 {
		for i, doc := range docs {
			docs[i] = applyProjection(doc, opts.Projection)
		}
	}
	return newCursor(docs), nil
}

// Update applies a field-set mutation to every document matching the
// filter. It returns the matched and modified counts; matching nothing is a
// zero-count success, not an error.
func (s *Store) Update(ctx context.Context, filter Filter, set map[string]interface{}) (matched, modified int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil || len(set) == 0 {
		return 0, 0, nil
	}

	indexFields, err := s.catalog.IndexFields(ctx, s.name)
	if err != nil {
		return 0, 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("store: failed to begin update: %w", err)
	}
	defer tx.Rollback()

	seqs, docs, err := loadAllDocuments(ctx, tx)
	if err != nil {
		return 0, 0, err
	}

	updateSQL := buildUpdateSQL(indexFields)
	for i, doc := range docs {
		if !filter.Matches(doc) {
			continue
		}
		matched++

		before, err := json.Marshal(doc)
		if err != nil {
			return 0, 0, fmt.Errorf("store: failed to marshal document: %w", err)
		}
		for field, value := range set {
			setPath(doc, field, value)
		}
		after, err := json.Marshal(doc)
		if err != nil {
			return 0, 0, fmt.Errorf("store: failed to marshal document: %w", err)
		}
		if bytes.Equal(before, after) {
			continue
		}
		modified++

		blob, err := encodeDocBlob(doc)
		if err != nil {
			return 0, 0, err
		}
		args := make([]interface{}, 0, len(indexFields)+2)
		args = append(args, blob)
		for _, field := range indexFields {
			args = append(args, indexValue(doc, field))
		}
		args = append(args, seqs[i])
		if _, err := tx.ExecContext(ctx, updateSQL, args...); err != nil {
			return 0, 0, fmt.Errorf("store: failed to update document: %w", err)
		}
	}

	if modified > 0 && s.keyField != "" {
		rebuilt := rebuildKeyBloom(docs, s.keyField)
		if err := updateBloomMeta(ctx, tx, rebuilt); err != nil {
			return 0, 0, err
		}
		if err := tx.Commit(); err != nil {
			return 0, 0, fmt.Errorf("store: failed to commit update: %w", err)
		}
		s.keyBloom = rebuilt
		return matched, modified, nil
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("store: failed to commit update: %w", err)
	}
	return matched, modified, nil
}

// Delete removes every document matching the filter and returns the count.
// Matching nothing is a zero-count success.
func (s *Store) Delete(ctx context.Context, filter Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: failed to begin delete: %w", err)
	}
	defer tx.Rollback()

	seqs, docs, err := loadAllDocuments(ctx, tx)
	if err != nil {
		return 0, err
	}

	var deleted int
	var survivors []Document
	for i, doc := range docs {
		if !filter.Matches(doc) {
			survivors = append(survivors, doc)
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM documents WHERE seq = ?", seqs[i]); err != nil {
			return 0, fmt.Errorf("store: failed to delete document: %w", err)
		}
		deleted++
	}

	if deleted > 0 && s.keyField != "" {
		rebuilt := rebuildKeyBloom(survivors, s.keyField)
		if err := updateBloomMeta(ctx, tx, rebuilt); err != nil {
			return 0, err
		}
		if err := tx.Commit(); err != nil {
			return 0, fmt.Errorf("store: failed to commit delete: %w", err)
		}
		s.keyBloom = rebuilt
		return deleted, nil
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: failed to commit delete: %w", err)
	}
	return deleted, nil
}

// CreateIndex declares a secondary index on the field. The declaration is a
// performance hint: it changes how queries execute, never what they return.
// The field is materialized into the current snapshot immediately and into
// every snapshot built afterwards.
func (s *Store) CreateIndex(ctx context.Context, field string) error {
	existing, err := s.catalog.IndexFields(ctx, s.name)
	if err != nil {
		return err
	}
	for _, f := range existing {
		if f == field {
			return nil
		}
	}

	if err := s.catalog.DeclareIndex(ctx, s.name, field); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	return backfillIndex(ctx, s.db, field)
}

// Count returns the number of documents in the collection.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return 0, nil
	}
	var n int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents").Scan(&n); err != nil {
		return 0, fmt.Errorf("store: failed to count documents: %w", err)
	}
	return n, nil
}

// Close releases the store's snapshot handle. The catalog is shared and is
// closed by its owner.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) open(snapshotID, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openLocked(snapshotID, path)
}

func (s *Store) openLocked(snapshotID, path string) error {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("store: failed to open snapshot %s: %w", snapshotID, err)
	}

	var keyBloom *bloom.Filter
	if s.keyField != "" {
		keyBloom, err = readBloomMeta(context.Background(), db)
		if err != nil {
			db.Close()
			return err
		}
	}

	s.snapshotID = snapshotID
	s.db = db
	s.keyBloom = keyBloom
	return nil
}

// bloomMiss reports whether an equality condition on the key field is a
// definite miss.
func (s *Store) bloomMiss(filter Filter) bool {
	for _, c := range filter {
		if c.Field != s.keyField || c.Op != OpEq {
			continue
		}
		if key, ok := c.Value.(string); ok && !s.keyBloom.Contains([]byte(key)) {
			return true
		}
	}
	return false
}

func (s *Store) indexedSet(ctx context.Context) (map[string]bool, error) {
	fields, err := s.catalog.IndexFields(ctx, s.name)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set, nil
}

// planPushdown decides whether a query can be served entirely by SQL over
// materialized columns.
func planPushdown(filter Filter, srt *Sort, indexed map[string]bool) bool {
	for _, c := range filter {
		if !indexed[c.Field] {
			return false
		}
	}
	if srt != nil && !indexed[srt.Field] {
		return false
	}
	return true
}

// findPushdown executes a fully indexed query as SQL. The seq tiebreaker
// keeps insertion order for equal sort keys.
func (s *Store) findPushdown(ctx context.Context, filter Filter, opts *FindOptions) ([]Document, error) {
	var sb strings.Builder
	sb.WriteString("SELECT seq, doc FROM documents")

	var args []interface{}
	if len(filter) > 0 {
		var clauses []string
		for _, c := range filter {
			clause, clauseArgs := condClause(c)
			clauses = append(clauses, clause)
			args = append(args, clauseArgs...)
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(clauses, " AND "))
	}

	if opts.Sort != nil {
		dir := "ASC"
		if opts.Sort.Descending {
			dir = "DESC"
		}
		fmt.Fprintf(&sb, " ORDER BY %s %s, seq ASC", indexColumn(opts.Sort.Field), dir)
	} else {
		sb.WriteString(" ORDER BY seq ASC")
	}

	if opts.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("store: query failed: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// condClause renders one condition against its materialized column.
func condClause(c Cond) (string, []interface{}) {
	col := indexColumn(c.Field)
	switch c.Op {
	case OpIn:
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(c.Values)), ", ")
		return fmt.Sprintf("%s IN (%s)", col, placeholders), c.Values
	default:
		return fmt.Sprintf("%s %s ?", col, string(c.Op)), []interface{}{c.Value}
	}
}

// findScan executes a query by decoding every document in insertion order.
func (s *Store) findScan(ctx context.Context, filter Filter, opts *FindOptions) ([]Document, error) {
	_, all, err := loadAllDocuments(ctx, s.db)
	if err != nil {
		return nil, err
	}

	var docs []Document
	for _, doc := range all {
		if filter.Matches(doc) {
			docs = append(docs, doc)
		}
	}

	if opts.Sort != nil {
		sortDocuments(docs, opts.Sort)
	}
	if opts.Limit > 0 && len(docs) > opts.Limit {
		docs = docs[:opts.Limit]
	}
	return docs, nil
}

// sortDocuments stable-sorts documents in place. Missing values order like
// SQL NULLs: first ascending, last descending.
func sortDocuments(docs []Document, srt *Sort) {
	sort.SliceStable(docs, func(i, j int) bool {
		av, aOk := lookupPath(docs[i], srt.Field)
		bv, bOk := lookupPath(docs[j], srt.Field)

		var less bool
		switch {
		case !aOk && !bOk:
			return false
		case !aOk:
			less = true
		case !bOk:
			less = false
		default:
			cmp, ok := compareValues(av, bv)
			if !ok || cmp == 0 {
				return false
			}
			less = cmp < 0
		}
		if srt.Descending {
			return !less
		}
		return less
	})
}

// applyProjection keeps only the named dotted paths of a document.
func applyProjection(doc Document, fields []string) Document {
	out := make(Document, len(fields))
	for _, field := range fields {
		if v, ok := lookupPath(doc, field); ok {
			setPath(out, field, v)
		}
	}
	return out
}

// rebuildKeyBloom recomputes the key bloom filter over a document set.
func rebuildKeyBloom(docs []Document, keyField string) *bloom.Filter {
	bf := bloom.NewWithEstimates(len(docs), 0.01)
	for _, doc := range docs {
		if key, ok := lookupPath(doc, keyField); ok {
			if str, ok := key.(string); ok {
				bf.Add([]byte(str))
			}
		}
	}
	return bf
}

// backfillIndex materializes a newly declared index field into the current
// snapshot.
func backfillIndex(ctx context.Context, db *sql.DB, field string) error {
	col := indexColumn(field)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: failed to begin index backfill: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("ALTER TABLE documents ADD COLUMN %s NUMERIC", col)); err != nil {
		return fmt.Errorf("store: failed to add index column %s: %w", col, err)
	}

	seqs, docs, err := loadAllDocuments(ctx, tx)
	if err != nil {
		return err
	}
	for i, doc := range docs {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("UPDATE documents SET %s = ? WHERE seq = ?", col),
			indexValue(doc, field), seqs[i]); err != nil {
			return fmt.Errorf("store: failed to backfill index column %s: %w", col, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_idx ON documents(%s)", col, col)); err != nil {
		return fmt.Errorf("store: failed to create index on %s: %w", field, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: failed to commit index backfill: %w", err)
	}
	return nil
}

// queryer abstracts *sql.DB and *sql.Tx for shared scan helpers.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// loadAllDocuments reads every document in insertion order.
func loadAllDocuments(ctx context.Context, q queryer) ([]int64, []Document, error) {
	rows, err := q.QueryContext(ctx, "SELECT seq, doc FROM documents ORDER BY seq ASC")
	if err != nil {
		return nil, nil, fmt.Errorf("store: scan query failed: %w", err)
	}
	defer rows.Close()

	var seqs []int64
	var docs []Document
	for rows.Next() {
		var seq int64
		var blob []byte
		if err := rows.Scan(&seq, &blob); err != nil {
			return nil, nil, fmt.Errorf("store: failed to scan document row: %w", err)
		}
		doc, err := decodeDocBlob(blob)
		if err != nil {
			return nil, nil, err
		}
		seqs = append(seqs, seq)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("store: error iterating documents: %w", err)
	}
	return seqs, docs, nil
}

func scanDocuments(rows *sql.Rows) ([]Document, error) {
	var docs []Document
	for rows.Next() {
		var seq int64
		var blob []byte
		if err := rows.Scan(&seq, &blob); err != nil {
			return nil, fmt.Errorf("store: failed to scan document row: %w", err)
		}
		doc, err := decodeDocBlob(blob)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: error iterating documents: %w", err)
	}
	return docs, nil
}

func buildUpdateSQL(indexFields []string) string {
	var sb strings.Builder
	sb.WriteString("UPDATE documents SET doc = ?")
	for _, field := range indexFields {
		sb.WriteString(", ")
		sb.WriteString(indexColumn(field))
		sb.WriteString(" = ?")
	}
	sb.WriteString(" WHERE seq = ?")
	return sb.String()
}
