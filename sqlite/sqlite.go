package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const (
	// InmemPath opens a private in memory database.
	InmemPath = ":memory:"
	// DefaultFilename is the file created inside a store directory.
	DefaultFilename = "mlcore.sqlite"
)

// SqlStore is a wrapper around the db and provides basic functionality for
// maintaining the db including schema version and transactions.
type SqlStore struct {
	DB   *sqlx.DB
	log  *zap.Logger
	path string
}

// NewSqlStore opens the database at path. A directory path gets
// DefaultFilename appended.
func NewSqlStore(path string, log *zap.Logger) (*SqlStore, error) {
	s := &SqlStore{
		log:  log,
		path: path,
	}

	if path != InmemPath {
		if fi, err := os.Stat(path); err == nil && fi.IsDir() {
			s.path = filepath.Join(path, DefaultFilename)
		}
		if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
			return nil, fmt.Errorf("unable to create directory %s: %v", s.path, err)
		}
	}

	if err := s.openDB(); err != nil {
		return nil, err
	}

	s.log.Debug("Resources opened", zap.String("path", s.path))
	return s, nil
}

func (s *SqlStore) openDB() error {
	dsn := s.path
	if s.path != InmemPath {
		dsn += "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	}

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("open database failed: %w", err)
	}

	// A single connection keeps an in memory database alive across calls and
	// serializes writers.
	db.SetMaxOpenConns(1)
	s.DB = db
	return nil
}

// Path returns the database file, or InmemPath.
func (s *SqlStore) Path() string {
	return s.path
}

// Close the connection to the sqlite database.
func (s *SqlStore) Close() error {
	if err := s.DB.Close(); err != nil {
		return err
	}
	s.log.Debug("Resources closed", zap.String("path", s.path))
	return nil
}

// userVersion returns the current schema version of the database.
func (s *SqlStore) userVersion() (int, error) {
	var version int
	if err := s.DB.Get(&version, `PRAGMA user_version`); err != nil {
		return 0, err
	}
	return version, nil
}

// execTrans runs stmt inside a single transaction.
func (s *SqlStore) execTrans(ctx context.Context, stmt string) error {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SqlStore) tableNames() ([]string, error) {
	var names []string
	err := s.DB.Select(&names, `SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`)
	return names, err
}
