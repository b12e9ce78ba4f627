package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// IDStore persists the project-root to random-storage-id mapping. Each
// project root gets one UUID for the lifetime of the installation, so
// path-addressed applications keep a stable storage directory across runs
// without deriving anything from the link itself.
//
// Concurrency: in-process access is serialized by the mutex. Across
// processes the insert is read-or-create; concurrent first launches of the
// same root may race and the surviving row wins, which is acceptable for a
// single-instance-per-launch tool.
type IDStore struct {
	db    *sql.DB
	mu    sync.Mutex
	cache map[string]string
}

// OpenIDStore opens (creating if needed) the id database at dbPath.
// Use ":memory:" for an in-memory database in tests.
func OpenIDStore(dbPath string) (*IDStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, fmt.Errorf("create id store directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open id store: %w", err)
	}

	store := &IDStore{db: db, cache: make(map[string]string)}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize id store schema: %w", err)
	}
	return store, nil
}

func (s *IDStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS storage_ids (
		project_root TEXT PRIMARY KEY,
		id TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// IDFor returns the storage id for projectRoot, generating and persisting
// one on first use.
func (s *IDStore) IDFor(projectRoot string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.cache[projectRoot]; ok {
		return id, nil
	}

	var id string
	err := s.db.QueryRow("SELECT id FROM storage_ids WHERE project_root = ?", projectRoot).Scan(&id)
	switch err {
	case nil:
		s.cache[projectRoot] = id
		return id, nil
	case sql.ErrNoRows:
		// fall through to create
	default:
		return "", fmt.Errorf("query storage id: %w", err)
	}

	id = uuid.NewString()
	_, err = s.db.Exec(
		"INSERT INTO storage_ids (project_root, id, created_at) VALUES (?, ?, ?) ON CONFLICT(project_root) DO NOTHING",
		projectRoot, id, time.Now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("persist storage id: %w", err)
	}

	// Re-read in case another process inserted first.
	if err := s.db.QueryRow("SELECT id FROM storage_ids WHERE project_root = ?", projectRoot).Scan(&id); err != nil {
		return "", fmt.Errorf("reread storage id: %w", err)
	}
	s.cache[projectRoot] = id
	return id, nil
}

// Close closes the underlying database.
func (s *IDStore) Close() error {
	return s.db.Close()
}
