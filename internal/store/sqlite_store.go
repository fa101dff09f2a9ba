// Package store provides SQLite-backed persistence for a BM25 corpus.
// Uses ncruces/go-sqlite3/driver, a cgo-free database/sql driver.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/kittclouds/bm25agg/pkg/bm25agg"
)

// SQLiteStore is the SQLite-backed corpus store.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// schema defines the documents/postings tables. Postings are keyed by
// (term, doc_id) rather than an auto-increment id since a term's posting
// list is always read back whole, by term, for a TermPostingRow.
const schema = `
CREATE TABLE IF NOT EXISTS documents (
    id INTEGER PRIMARY KEY,
    text TEXT NOT NULL,
    length INTEGER NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS postings (
    term TEXT NOT NULL,
    doc_id INTEGER NOT NULL,
    fq INTEGER NOT NULL,
    PRIMARY KEY (term, doc_id)
);

CREATE INDEX IF NOT EXISTS idx_postings_term ON postings(term);
`

// NewSQLiteStore creates a new in-memory SQLite store.
func NewSQLiteStore() (*SQLiteStore, error) {
	return NewSQLiteStoreWithDSN(":memory:")
}

// NewSQLiteStoreWithDSN creates a store with a specific data source name.
// Use ":memory:" for in-memory or a file path for persistent storage.
func NewSQLiteStoreWithDSN(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// PutDocument inserts or replaces a document.
func (s *SQLiteStore) PutDocument(ctx context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, text, length, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET text = excluded.text, length = excluded.length
	`, doc.ID, doc.Text, doc.Length, doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("put document %d: %w", doc.ID, err)
	}
	return nil
}

// GetDocument retrieves a document by id. Returns (nil, nil) if absent.
func (s *SQLiteStore) GetDocument(ctx context.Context, id int32) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var doc Document
	err := s.db.QueryRowContext(ctx, `
		SELECT id, text, length, created_at FROM documents WHERE id = ?
	`, id).Scan(&doc.ID, &doc.Text, &doc.Length, &doc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document %d: %w", id, err)
	}
	return &doc, nil
}

// PutPostings inserts or replaces a batch of postings in one transaction.
func (s *SQLiteStore) PutPostings(ctx context.Context, postings []Posting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin postings tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO postings (term, doc_id, fq)
		VALUES (?, ?, ?)
		ON CONFLICT(term, doc_id) DO UPDATE SET fq = excluded.fq
	`)
	if err != nil {
		return fmt.Errorf("prepare postings insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range postings {
		if _, err := stmt.ExecContext(ctx, p.Term, p.DocID, p.Fq); err != nil {
			return fmt.Errorf("put posting %q/%d: %w", p.Term, p.DocID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit postings tx: %w", err)
	}
	return nil
}

// CorpusStats reports the document count and average document length needed
// by the aggregator's limited/parameterized entry points.
func (s *SQLiteStore) CorpusStats(ctx context.Context) (corpusSize uint64, avgDocLen float32, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	var avg sql.NullFloat64
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*), AVG(length) FROM documents`)
	if err := row.Scan(&count, &avg); err != nil {
		return 0, 0, fmt.Errorf("corpus stats: %w", err)
	}
	if count == 0 {
		return 0, 0, nil
	}
	return uint64(count), float32(avg.Float64), nil
}

// LoadTermPostings builds one bm25agg.TermPostingRow per requested term from
// durable postings, with doc_ids sorted ascending, ready to feed directly
// into an Aggregator. Terms with no postings are silently omitted, matching
// the row-shape contract: the aggregator never sees an empty row for a term
// that simply never occurred in the corpus.
func (s *SQLiteStore) LoadTermPostings(ctx context.Context, terms []string) ([]bm25agg.TermPostingRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]bm25agg.TermPostingRow, 0, len(terms))
	for _, term := range terms {
		row, err := s.loadOneTermLocked(ctx, term)
		if err != nil {
			return nil, err
		}
		if row != nil {
			rows = append(rows, *row)
		}
	}

	// Processing-order hint: ascending posting-list
	// length first, so cheap/discriminating terms populate the exact score
	// map before a very common term's promotion check is evaluated.
	sort.Slice(rows, func(i, j int) bool { return len(rows[i].DocIDs) < len(rows[j].DocIDs) })
	return rows, nil
}

func (s *SQLiteStore) loadOneTermLocked(ctx context.Context, term string) (*bm25agg.TermPostingRow, error) {
	dbRows, err := s.db.QueryContext(ctx, `
		SELECT p.doc_id, p.fq, d.length
		FROM postings p
		JOIN documents d ON d.id = p.doc_id
		WHERE p.term = ?
		ORDER BY p.doc_id ASC
	`, term)
	if err != nil {
		return nil, fmt.Errorf("load postings for %q: %w", term, err)
	}
	defer dbRows.Close()

	var docIDs, fqs, docLens []int32
	for dbRows.Next() {
		var docID, fq, length int32
		if err := dbRows.Scan(&docID, &fq, &length); err != nil {
			return nil, fmt.Errorf("scan posting row for %q: %w", term, err)
		}
		docIDs = append(docIDs, docID)
		fqs = append(fqs, fq)
		docLens = append(docLens, length)
	}
	if err := dbRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate postings for %q: %w", term, err)
	}
	if len(docIDs) == 0 {
		return nil, nil
	}

	return bm25agg.NewRowInt32(term, int32(len(docIDs)), docIDs, fqs, docLens), nil
}
