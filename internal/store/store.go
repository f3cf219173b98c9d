package store

import (
	"fmt"
	"time"
)

// Retention ceiling for stored signal results. Readers pass their own
// maxAge per signal type, so this only bounds what cleanup keeps around.
const maxRetention = 24 * time.Hour

// Store is an optional second-level cache for signal results, keyed the
// same way as the memory cache ("<type>:<ip>"). It holds cached provider
// responses only; tokens and the used-token set are never persisted.
type Store interface {
	// Get returns the stored blob if it is younger than maxAge.
	Get(key string, maxAge time.Duration) ([]byte, bool)
	Set(key string, data []byte)
	Size() int
	Cleanup()
	Close()
}

// New creates a store backend by type: "sqlite" or "mysql".
func New(storeType, dsn string) (Store, error) {
	switch storeType {
	case "sqlite":
		return newSQLite(dsn)
	case "mysql":
		return newMySQL(dsn)
	default:
		return nil, fmt.Errorf("unknown store type: %s", storeType)
	}
}
