package store

import (
	"database/sql"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db   *sql.DB
	mu   sync.RWMutex
	stop chan struct{}
}

func newSQLite(dbPath string) (Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// SQLite doesn't handle concurrent writes well
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS signal_cache (
			k          TEXT PRIMARY KEY,
			data       TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_updated_at ON signal_cache(updated_at)`); err != nil {
		db.Close()
		return nil, err
	}

	s := &sqliteStore{
		db:   db,
		stop: make(chan struct{}),
	}
	go s.cleanupLoop()

	log.Printf("[store] SQLite signal cache opened: %s", dbPath)
	return s, nil
}

func (s *sqliteStore) Get(key string, maxAge time.Duration) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().Add(-maxAge).Unix()
	var data string
	err := s.db.QueryRow(
		"SELECT data FROM signal_cache WHERE k = ? AND updated_at > ?",
		key, cutoff,
	).Scan(&data)
	if err != nil {
		return nil, false
	}
	return []byte(data), true
}

func (s *sqliteStore) Set(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.db.Exec(
		`INSERT INTO signal_cache (k, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(k) DO UPDATE SET data=excluded.data, updated_at=excluded.updated_at`,
		key, string(data), time.Now().Unix(),
	)
}

func (s *sqliteStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM signal_cache").Scan(&count); err != nil {
		return 0
	}
	return count
}

func (s *sqliteStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxRetention).Unix()
	result, err := s.db.Exec("DELETE FROM signal_cache WHERE updated_at <= ?", cutoff)
	if err != nil {
		log.Printf("[store] SQLite cleanup error: %v", err)
		return
	}
	if affected, _ := result.RowsAffected(); affected > 0 {
		log.Printf("[store] SQLite cleanup: removed %d expired entries", affected)
	}
}

func (s *sqliteStore) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Cleanup()
		case <-s.stop:
			return
		}
	}
}

func (s *sqliteStore) Close() {
	close(s.stop)
	s.db.Close()
	log.Printf("[store] SQLite signal cache closed")
}
