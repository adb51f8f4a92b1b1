package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// PathEnv overrides the ledger location.
const PathEnv = "TRIPLEBILLION_DB_PATH"

type Config struct {
	Path string
}

// DefaultConfig uses $TRIPLEBILLION_DB_PATH, else ~/.triplebillion/history.db.
func DefaultConfig() Config {
	path := os.Getenv(PathEnv)
	if path == "" {
		dir, err := os.UserHomeDir()
		if err != nil || dir == "" {
			dir = "."
		}
		path = filepath.Join(dir, ".triplebillion", "history.db")
	}
	return Config{Path: path}
}

// dsn carries the pragmas as driver parameters so every pooled connection
// gets them, not only the one a PRAGMA statement happens to run on.
func (c Config) dsn() string {
	params := url.Values{}
	params.Set("_foreign_keys", "on")
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", "5000")
	return "file:" + c.Path + "?" + params.Encode()
}

// Open creates the parent directory if needed and returns a verified handle.
func Open(cfg Config) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Path, err)
	}
	return db, nil
}
