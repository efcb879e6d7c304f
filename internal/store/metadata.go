package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLiteMetadataStore persists document and chunk metadata in SQLite.
// WAL mode allows concurrent readers alongside the single writer.
type SQLiteMetadataStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// Verify interface implementation at compile time
var _ MetadataStore = (*SQLiteMetadataStore)(nil)

// NewSQLiteMetadataStore opens (or creates) the metadata database.
// If path is empty, an in-memory database is used (for testing).
func NewSQLiteMetadataStore(path string) (*SQLiteMetadataStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single writer prevents lock contention with modernc.org/sqlite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL must be set via PRAGMA for modernc.org/sqlite; DSN params are ignored.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	s := &SQLiteMetadataStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

// initSchema creates the document and chunk tables.
func (s *SQLiteMetadataStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS documents (
		id           TEXT PRIMARY KEY,
		title        TEXT NOT NULL,
		source       TEXT NOT NULL DEFAULT '',
		content_hash TEXT NOT NULL,
		metadata     TEXT NOT NULL DEFAULT '{}',
		indexed_at   TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id           TEXT PRIMARY KEY,
		document_id  TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		seq          INTEGER NOT NULL,
		content      TEXT NOT NULL,
		overlap      TEXT NOT NULL DEFAULT '',
		heading      TEXT NOT NULL DEFAULT '',
		content_hash TEXT NOT NULL,
		created_at   TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveDocument upserts a document row. Chunks are managed separately.
func (s *SQLiteMetadataStore) SaveDocument(ctx context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	indexedAt := doc.IndexedAt
	if indexedAt.IsZero() {
		indexedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, source, content_hash, metadata, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			source = excluded.source,
			content_hash = excluded.content_hash,
			metadata = excluded.metadata,
			indexed_at = excluded.indexed_at`,
		doc.ID, doc.Title, doc.Source, doc.ContentHash, string(meta), indexedAt)
	if err != nil {
		return fmt.Errorf("save document %s: %w", doc.ID, err)
	}
	return nil
}

// GetDocument fetches a document by ID. Returns sql.ErrNoRows if absent.
// The body content is not stored; only metadata survives indexing.
func (s *SQLiteMetadataStore) GetDocument(ctx context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, source, content_hash, metadata, indexed_at
		FROM documents WHERE id = ?`, id)

	var doc Document
	var meta string
	if err := row.Scan(&doc.ID, &doc.Title, &doc.Source, &doc.ContentHash, &meta, &doc.IndexedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(meta), &doc.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata for %s: %w", id, err)
	}
	return &doc, nil
}

// GetDocumentHash returns the stored content hash for a document,
// or empty string if the document is not indexed.
func (s *SQLiteMetadataStore) GetDocumentHash(ctx context.Context, id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", fmt.Errorf("store is closed")
	}

	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT content_hash FROM documents WHERE id = ?`, id).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return hash, nil
}

// DeleteDocument removes a document row; chunks cascade.
func (s *SQLiteMetadataStore) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	return err
}

// SaveChunks upserts chunk rows in a single transaction.
func (s *SQLiteMetadataStore) SaveChunks(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, seq, content, overlap, heading, content_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			overlap = excluded.overlap,
			heading = excluded.heading,
			content_hash = excluded.content_hash,
			created_at = excluded.created_at`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.Seq, c.Content, c.Overlap, c.Heading, c.ContentHash, createdAt); err != nil {
			return fmt.Errorf("save chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// GetChunk fetches a single chunk by ID.
func (s *SQLiteMetadataStore) GetChunk(ctx context.Context, id string) (*Chunk, error) {
	chunks, err := s.GetChunks(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, sql.ErrNoRows
	}
	return chunks[0], nil
}

// GetChunks fetches chunks by ID in a single query.
// Missing IDs are silently omitted from the result.
func (s *SQLiteMetadataStore) GetChunks(ctx context.Context, ids []string) ([]*Chunk, error) {
	if len(ids) == 0 {
		return []*Chunk{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, document_id, seq, content, overlap, heading, content_hash, created_at
		FROM chunks WHERE id IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*Chunk, len(ids))
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Seq, &c.Content, &c.Overlap, &c.Heading, &c.ContentHash, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		byID[c.ID] = &c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Preserve the caller's ordering.
	result := make([]*Chunk, 0, len(byID))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			result = append(result, c)
		}
	}
	return result, nil
}

// ChunkIDsForDocument lists all chunk IDs belonging to a document, in order.
func (s *SQLiteMetadataStore) ChunkIDsForDocument(ctx context.Context, documentID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM chunks WHERE document_id = ? ORDER BY seq`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query chunk ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteChunks removes chunk rows by ID.
func (s *SQLiteMetadataStore) DeleteChunks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM chunks WHERE id IN (%s)`, placeholders), args...)
	return err
}

// CountDocuments returns the number of indexed documents.
func (s *SQLiteMetadataStore) CountDocuments(ctx context.Context) (int, error) {
	return s.count(ctx, "documents")
}

// CountChunks returns the number of stored chunks.
func (s *SQLiteMetadataStore) CountChunks(ctx context.Context) (int, error) {
	return s.count(ctx, "chunks")
}

func (s *SQLiteMetadataStore) count(ctx context.Context, table string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteMetadataStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
