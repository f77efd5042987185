package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite-backed cache of fetched pages
type Store struct {
	db   *sql.DB
	path string
}

// CachedPage is the extracted text of a page fetched earlier
type CachedPage struct {
	URL         string
	Title       string
	Text        string
	ContentHash string
	DateFetched time.Time
}

// CacheStats describes the cache contents
type CacheStats struct {
	PageCount   int
	CacheSize   int64
	LastUpdated time.Time
}

// NewStore creates a new store instance with SQLite database
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "studio.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows a single writer at a time.
	db.SetMaxOpenConns(1)

	store := &Store{
		db:   db,
		path: dbPath,
	}

	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// initialize creates the necessary tables
func (s *Store) initialize() error {
	pagesTable := `
	CREATE TABLE IF NOT EXISTS pages (
		url TEXT PRIMARY KEY,
		title TEXT,
		content TEXT,
		content_hash TEXT,
		date_fetched DATETIME
	);`

	if _, err := s.db.Exec(pagesTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// CachePage stores the extracted text of url, replacing any earlier entry
func (s *Store) CachePage(url, title, text string) error {
	query := `
	INSERT OR REPLACE INTO pages (url, title, content, content_hash, date_fetched)
	VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.Exec(query, url, title, text, contentHash(text), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to cache page: %w", err)
	}
	return nil
}

// GetCachedPage returns the cached page for url, or nil when there is no
// entry younger than maxAge. A zero maxAge accepts any age.
func (s *Store) GetCachedPage(url string, maxAge time.Duration) (*CachedPage, error) {
	query := `
	SELECT url, title, content, content_hash, date_fetched
	FROM pages WHERE url = ?`

	var page CachedPage
	err := s.db.QueryRow(query, url).Scan(
		&page.URL,
		&page.Title,
		&page.Text,
		&page.ContentHash,
		&page.DateFetched,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached page: %w", err)
	}

	if maxAge > 0 && time.Since(page.DateFetched) > maxAge {
		return nil, nil
	}
	return &page, nil
}

// GetCacheStats returns statistics about the cache
func (s *Store) GetCacheStats() (*CacheStats, error) {
	stats := &CacheStats{}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM pages").Scan(&stats.PageCount); err != nil {
		return nil, fmt.Errorf("failed to get count: %w", err)
	}

	if fileInfo, err := os.Stat(s.path); err == nil {
		stats.CacheSize = fileInfo.Size()
		stats.LastUpdated = fileInfo.ModTime()
	}

	return stats, nil
}

// ClearCache removes all cached pages
func (s *Store) ClearCache() error {
	if _, err := s.db.Exec("DELETE FROM pages"); err != nil {
		return fmt.Errorf("failed to clear pages table: %w", err)
	}

	if _, err := s.db.Exec("VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}

	return nil
}

// CleanupOldCache removes pages fetched longer than maxAge ago and reports
// how many were removed
func (s *Store) CleanupOldCache(maxAge time.Duration) (int64, error) {
	res, err := s.db.Exec("DELETE FROM pages WHERE date_fetched < ?", time.Now().UTC().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("failed to clean old pages: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func contentHash(content string) string {
	if content == "" {
		return "empty"
	}
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:8])
}
