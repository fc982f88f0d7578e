package fulltext

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Cache stores extracted full text in SQLite so repeated runs against
// the same records skip the download and PDF extraction.
type Cache struct {
	db *sql.DB
}

// OpenCache opens or creates a document cache at the given path.
func OpenCache(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createCacheSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the cache database.
func (c *Cache) Close() error {
	return c.db.Close()
}

func createCacheSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS fulltext_cache (
			key TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
	`
	_, err := db.Exec(schema)
	return err
}

// Get returns the cached text and its provider for a record key.
func (c *Cache) Get(key string) (text, source string, ok bool) {
	err := c.db.QueryRow(`
		SELECT text, source FROM fulltext_cache WHERE key = ?
	`, key).Scan(&text, &source)
	if err != nil {
		return "", "", false
	}
	return text, source, true
}

// Put stores extracted text under a record key, replacing any previous
// entry.
func (c *Cache) Put(key, source, text string) error {
	if key == "" {
		return nil
	}
	_, err := c.db.Exec(`
		INSERT OR REPLACE INTO fulltext_cache (key, source, text, created_at)
		VALUES (?, ?, ?, ?)
	`, key, source, text, time.Now().Unix())
	return err
}

// Count returns the number of cached documents.
func (c *Cache) Count() (int, error) {
	var count int
	err := c.db.QueryRow("SELECT COUNT(*) FROM fulltext_cache").Scan(&count)
	return count, err
}
