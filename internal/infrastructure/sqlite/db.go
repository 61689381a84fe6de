// Package sqlite stores the bytes behind disk-backed representations.
package sqlite

import (
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/zjrosen/datarep/internal/log"
)

//go:embed schema.sql
var schema string

// DB wraps the blob store connection.
type DB struct {
	conn *sql.DB
	path string
}

// NewDB opens (creating if needed) the store at path. The parent directory is
// created with 0700 permissions. Connections run in WAL mode with foreign keys on
// and a 5s busy timeout.
func NewDB(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	dsn := "file:" + path + "?" + url.Values{
		"_pragma": []string{"journal_mode(WAL)", "foreign_keys(1)", "busy_timeout(5000)"},
	}.Encode()
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("connecting to store: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	log.Debug(log.CatStore, "store opened", "path", path)
	return &DB{conn: conn, path: path}, nil
}

// Close closes the connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the file the store was opened from.
func (db *DB) Path() string { return db.path }

// Connection returns the underlying *sql.DB.
func (db *DB) Connection() *sql.DB { return db.conn }

// Blobs returns the blob repository for this store.
func (db *DB) Blobs() *BlobRepository {
	return &BlobRepository{db: db.conn}
}
