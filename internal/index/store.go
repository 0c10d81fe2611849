// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package index stores the chunks of one paper in a SQLite database and
// answers retrieve(query, top_k) over them. Full-text ranking uses FTS5
// BM25 when the driver is built with the sqlite_fts5 tag; otherwise a
// term-frequency scan is used.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stevebottos/dxtr-cli/pkg/types"
)

// DBFile is the database file inside a paper's index directory.
const DBFile = "chunks.db"

// ErrNotFound is returned by Open when the index has not been built.
var ErrNotFound = errors.New("index not found")

// Index is an open per-paper chunk index.
type Index struct {
	db      *sql.DB
	paperID string
	fts     bool
}

// Create opens the index in dir, creating the directory and schema when
// missing.
func Create(dir, paperID string) (*Index, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	ix, err := open(filepath.Join(dir, DBFile), paperID)
	if err != nil {
		return nil, err
	}
	if err := ix.createSchema(); err != nil {
		ix.db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return ix, nil
}

// Open opens an existing index in dir. It returns ErrNotFound when the
// directory or database file does not exist.
func Open(dir, paperID string) (*Index, error) {
	path := filepath.Join(dir, DBFile)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, dir)
		}
		return nil, err
	}
	ix, err := open(path, paperID)
	if err != nil {
		return nil, err
	}

	var n int
	if err := ix.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name IN ('chunks', 'chunks_fts')`,
	).Scan(&n); err != nil {
		ix.db.Close()
		return nil, fmt.Errorf("inspecting index: %w", err)
	}
	if n == 0 {
		ix.db.Close()
		return nil, fmt.Errorf("%w: %s has no chunks table", ErrNotFound, path)
	}
	ix.fts = n == 2
	return ix, nil
}

func open(path, paperID string) (*Index, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return &Index{db: db, paperID: paperID}, nil
}

// Close releases the database connection.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// FullText reports whether FTS5 ranking is in use.
func (ix *Index) FullText() bool { return ix.fts }

func (ix *Index) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS chunks (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			paper_id TEXT NOT NULL,
			section TEXT,
			page INTEGER,
			ordinal INTEGER NOT NULL,
			text TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_ordinal ON chunks(ordinal)`,
	}
	for _, stmt := range statements {
		if _, err := ix.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	var ftsExists int
	if err := ix.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='chunks_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists == 1 {
		ix.fts = true
		return nil
	}

	if _, err := ix.db.Exec(
		`CREATE VIRTUAL TABLE chunks_fts USING fts5(text, section, content=chunks, content_rowid=rowid)`,
	); err != nil {
		if strings.Contains(err.Error(), "no such module") {
			ix.fts = false
			return nil
		}
		return fmt.Errorf("creating FTS table: %w", err)
	}

	triggers := []string{
		`CREATE TRIGGER chunks_ai AFTER INSERT ON chunks BEGIN
			INSERT INTO chunks_fts(rowid, text, section) VALUES (new.rowid, new.text, new.section);
		END`,
		`CREATE TRIGGER chunks_ad AFTER DELETE ON chunks BEGIN
			INSERT INTO chunks_fts(chunks_fts, rowid, text, section) VALUES('delete', old.rowid, old.text, old.section);
		END`,
	}
	for _, stmt := range triggers {
		if _, err := ix.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating FTS infrastructure: %w", err)
		}
	}
	ix.fts = true
	return nil
}

// Replace swaps the index contents for chunks in a single transaction.
func (ix *Index) Replace(ctx context.Context, chunks []types.Chunk) error {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, paper_id, section, page, ordinal, text) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, c.PaperID, c.Section, c.Page, i, c.Text); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// Size returns the number of chunks in the index.
func (ix *Index) Size(ctx context.Context) (int, error) {
	var n int
	if err := ix.db.QueryRowContext(ctx, `SELECT count(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

var termPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// queryTerms lowercases query and splits it into distinct search terms,
// dropping stop words and single characters.
func queryTerms(query string) []string {
	seen := map[string]bool{}
	var terms []string
	for _, t := range termPattern.FindAllString(strings.ToLower(query), -1) {
		if len([]rune(t)) < 2 || stopWords[t] || seen[t] {
			continue
		}
		seen[t] = true
		terms = append(terms, t)
	}
	return terms
}

// Retrieve returns up to topK chunks most relevant to query, best first.
// A query without usable terms returns no chunks.
func (ix *Index) Retrieve(ctx context.Context, query string, topK int) ([]types.Chunk, error) {
	if topK <= 0 {
		return nil, nil
	}
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}
	if ix.fts {
		return ix.retrieveFTS(ctx, terms, topK)
	}
	return ix.retrieveScan(ctx, terms, topK)
}

func (ix *Index) retrieveFTS(ctx context.Context, terms []string, topK int) ([]types.Chunk, error) {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + t + `"`
	}
	match := strings.Join(quoted, " OR ")

	rows, err := ix.db.QueryContext(ctx,
		`SELECT c.id, c.paper_id, c.section, c.page, c.text, chunks_fts.rank
		FROM chunks_fts
		JOIN chunks c ON c.rowid = chunks_fts.rowid
		WHERE chunks_fts MATCH ?
		ORDER BY chunks_fts.rank, c.ordinal
		LIMIT ?`, match, topK)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	defer rows.Close()

	var out []types.Chunk
	for rows.Next() {
		var (
			c       types.Chunk
			section sql.NullString
			rank    float64
		)
		if err := rows.Scan(&c.ID, &c.PaperID, &section, &c.Page, &c.Text, &rank); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		c.Section = section.String
		// FTS5 rank is negated BM25: more negative is better.
		c.Score = -rank
		out = append(out, c)
	}
	return out, rows.Err()
}

func (ix *Index) retrieveScan(ctx context.Context, terms []string, topK int) ([]types.Chunk, error) {
	rows, err := ix.db.QueryContext(ctx,
		`SELECT id, paper_id, section, page, text FROM chunks ORDER BY ordinal`)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	defer rows.Close()

	var out []types.Chunk
	for rows.Next() {
		var (
			c       types.Chunk
			section sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.PaperID, &section, &c.Page, &c.Text); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		c.Section = section.String

		words := termPattern.FindAllString(strings.ToLower(c.Text+" "+c.Section), -1)
		counts := make(map[string]int, len(words))
		for _, w := range words {
			counts[w]++
		}
		for _, t := range terms {
			if n := counts[t]; n > 0 {
				// One point per matched term plus a damped frequency bonus.
				c.Score += 1 + float64(n)/float64(n+2)
			}
		}
		if c.Score > 0 {
			out = append(out, c)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true,
	"by": true, "do": true, "does": true, "for": true, "from": true, "how": true, "in": true,
	"is": true, "it": true, "of": true, "on": true, "or": true, "the": true, "this": true,
	"that": true, "to": true, "what": true, "which": true, "with": true, "why": true,
	"was": true, "were": true, "paper": true, "authors": true,
}
