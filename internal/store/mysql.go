package store

import (
	"database/sql"
	"log"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

type mysqlStore struct {
	db   *sql.DB
	mu   sync.RWMutex
	stop chan struct{}
}

func newMySQL(dsn string) (Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS signal_cache (
			k          VARCHAR(64) PRIMARY KEY,
			data       TEXT NOT NULL,
			updated_at BIGINT NOT NULL,
			INDEX idx_updated_at (updated_at)
		)
	`); err != nil {
		db.Close()
		return nil, err
	}

	s := &mysqlStore{
		db:   db,
		stop: make(chan struct{}),
	}
	go s.cleanupLoop()

	log.Printf("[store] MySQL signal cache opened")
	return s, nil
}

func (s *mysqlStore) Get(key string, maxAge time.Duration) ([]byte, bool) {
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

func (s *mysqlStore) Set(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.db.Exec(
		`INSERT INTO signal_cache (k, data, updated_at) VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE data=VALUES(data), updated_at=VALUES(updated_at)`,
		key, string(data), time.Now().Unix(),
	)
}

func (s *mysqlStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM signal_cache").Scan(&count); err != nil {
		return 0
	}
	return count
}

func (s *mysqlStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxRetention).Unix()
	result, err := s.db.Exec("DELETE FROM signal_cache WHERE updated_at <= ?", cutoff)
	if err != nil {
		log.Printf("[store] MySQL cleanup error: %v", err)
		return
	}
	if affected, _ := result.RowsAffected(); affected > 0 {
		log.Printf("[store] MySQL cleanup: removed %d expired entries", affected)
	}
}

func (s *mysqlStore) cleanupLoop() {
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

func (s *mysqlStore) Close() {
	close(s.stop)
	s.db.Close()
	log.Printf("[store] MySQL signal cache closed")
}
