// Package sqlite implements the article replica on an embedded SQLite
// database. Replica files are disposable caches: each store instance
// owns one database file and removes it on Close.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/veridian-labs/newsvault/internal/core/domain"
	"github.com/veridian-labs/newsvault/internal/core/ports/driven"
)

// Ensure interfaces are implemented.
var (
	_ driven.ArticleStore = (*Replica)(nil)
	_ driven.StoreFactory = (*Factory)(nil)
)

// defaultScanLimit caps scans that do not request an explicit limit.
const defaultScanLimit = 100

const schema = `
CREATE TABLE IF NOT EXISTS articles (
	id TEXT PRIMARY KEY,
	partition_key TEXT NOT NULL,
	title TEXT NOT NULL,
	body TEXT NOT NULL,
	company TEXT NOT NULL,
	category TEXT NOT NULL,
	source TEXT NOT NULL,
	url TEXT NOT NULL,
	sentiment REAL NOT NULL,
	published_at_us INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_articles_partition ON articles(partition_key);
CREATE INDEX IF NOT EXISTS idx_articles_company ON articles(company);
CREATE INDEX IF NOT EXISTS idx_articles_category ON articles(category);
CREATE INDEX IF NOT EXISTS idx_articles_published ON articles(published_at_us);
`

// Factory creates replica instances backed by files in a data
// directory.
type Factory struct {
	dataDir string
}

// NewFactory creates a replica factory. If dataDir is empty, replicas
// live under the system temp directory.
func NewFactory(dataDir string) (*Factory, error) {
	if dataDir == "" {
		dataDir = filepath.Join(os.TempDir(), "newsvault")
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &Factory{dataDir: dataDir}, nil
}

// Empty creates a new empty replica.
func (f *Factory) Empty(_ context.Context) (driven.ArticleStore, error) {
	return open(f.newPath())
}

// FromBytes creates a replica loaded from a Serialize blob.
func (f *Factory) FromBytes(_ context.Context, data []byte) (driven.ArticleStore, error) {
	path := f.newPath()
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("writing replica file: %w", err)
	}
	return open(path)
}

func (f *Factory) newPath() string {
	return filepath.Join(f.dataDir, "replica-"+uuid.NewString()+".db")
}

// Replica is a SQLite-backed implementation of driven.ArticleStore.
type Replica struct {
	db      *sql.DB
	path    string
	dataDir string
}

func open(path string) (*Replica, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening replica: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Replica{db: db, path: path, dataDir: filepath.Dir(path)}, nil
}

// Path returns the replica's database file path.
func (r *Replica) Path() string {
	return r.path
}

// UpsertBatch inserts or replaces articles keyed by ID. The batch is
// applied in order inside one transaction, so later rows win on
// duplicate IDs.
func (r *Replica) UpsertBatch(ctx context.Context, articles []domain.Article) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO articles (id, partition_key, title, body, company, category, source, url, sentiment, published_at_us)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			partition_key = excluded.partition_key,
			title = excluded.title,
			body = excluded.body,
			company = excluded.company,
			category = excluded.category,
			source = excluded.source,
			url = excluded.url,
			sentiment = excluded.sentiment,
			published_at_us = excluded.published_at_us
	`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, a := range articles {
		_, err := stmt.ExecContext(ctx,
			a.ID, a.PartitionKey(), a.Title, a.Body, a.Company, a.Category,
			a.Source, a.URL, a.Sentiment, a.PublishedAt.UTC().UnixMicro())
		if err != nil {
			return fmt.Errorf("upserting %s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing upsert: %w", err)
	}
	return nil
}

const articleColumns = "id, title, body, company, category, source, url, sentiment, published_at_us"

func scanArticle(row interface{ Scan(...any) error }) (domain.Article, error) {
	var a domain.Article
	var us int64
	err := row.Scan(&a.ID, &a.Title, &a.Body, &a.Company, &a.Category, &a.Source, &a.URL, &a.Sentiment, &us)
	if err != nil {
		return domain.Article{}, err
	}
	a.PublishedAt = time.UnixMicro(us).UTC()
	return a, nil
}

// Lookup returns the article with the given ID.
func (r *Replica) Lookup(ctx context.Context, id string) (*domain.Article, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+articleColumns+" FROM articles WHERE id = ?", id)
	a, err := scanArticle(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("article %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("looking up %s: %w", id, err)
	}
	return &a, nil
}

// Scan returns articles matching the filter, newest first.
func (r *Replica) Scan(ctx context.Context, filter domain.ScanFilter) ([]domain.Article, error) {
	query := "SELECT " + articleColumns + " FROM articles WHERE 1=1"
	var args []any

	if filter.Company != "" {
		query += " AND company LIKE '%' || ? || '%'"
		args = append(args, filter.Company)
	}
	if filter.Category != "" {
		query += " AND category LIKE '%' || ? || '%'"
		args = append(args, filter.Category)
	}
	if !filter.Since.IsZero() {
		query += " AND published_at_us >= ?"
		args = append(args, filter.Since.UTC().UnixMicro())
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultScanLimit
	}
	query += " ORDER BY published_at_us DESC, id LIMIT ?"
	args = append(args, limit)

	return r.queryArticles(ctx, query, args...)
}

// Search returns articles whose title or body contains keyword,
// newest first.
func (r *Replica) Search(ctx context.Context, keyword string, limit int) ([]domain.Article, error) {
	if limit <= 0 {
		limit = defaultScanLimit
	}
	query := "SELECT " + articleColumns + ` FROM articles
		WHERE title LIKE '%' || ? || '%' OR body LIKE '%' || ? || '%'
		ORDER BY published_at_us DESC, id LIMIT ?`
	return r.queryArticles(ctx, query, keyword, keyword, limit)
}

func (r *Replica) queryArticles(ctx context.Context, query string, args ...any) ([]domain.Article, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying articles: %w", err)
	}
	defer rows.Close()

	var articles []domain.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning article: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating articles: %w", err)
	}
	return articles, nil
}

// RowCount returns the number of stored articles.
func (r *Replica) RowCount(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting articles: %w", err)
	}
	return n, nil
}

// PartitionCount returns the number of distinct partitions.
func (r *Replica) PartitionCount(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT partition_key) FROM articles").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting partitions: %w", err)
	}
	return n, nil
}

// Clone copies the replica into a new database file via VACUUM INTO
// and opens it as an independent store.
func (r *Replica) Clone(ctx context.Context) (driven.ArticleStore, error) {
	clonePath := filepath.Join(r.dataDir, "replica-"+uuid.NewString()+".db")
	if _, err := r.db.ExecContext(ctx, "VACUUM INTO ?", clonePath); err != nil {
		return nil, fmt.Errorf("cloning replica: %w", err)
	}
	clone, err := open(clonePath)
	if err != nil {
		os.Remove(clonePath)
		return nil, err
	}
	return clone, nil
}

// Serialize returns the full database file after checkpointing the
// WAL, so the blob alone reproduces the store.
func (r *Replica) Serialize(ctx context.Context) ([]byte, error) {
	if _, err := r.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return nil, fmt.Errorf("checkpointing: %w", err)
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("reading replica file: %w", err)
	}
	return data, nil
}

// Close closes the database and removes its backing files.
func (r *Replica) Close() error {
	err := r.db.Close()
	os.Remove(r.path)
	os.Remove(r.path + "-wal")
	os.Remove(r.path + "-shm")
	return err
}
