// Package bolt keeps users and design sessions in a single local BoltDB file.
package bolt

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	sessionsBucket      = []byte("sessions")
	userSessionsBucket  = []byte("user_sessions")
	usersBucket         = []byte("users")
	telegramUsersBucket = []byte("telegram_users")
)

// Open opens the database file, creating it and its buckets when missing.
func Open(path string, timeout time.Duration) (*bolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create bolt dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db %s: %w", path, err)
	}
	err = db.Update(
		func(tx *bolt.Tx) error {
			for _, name := range [][]byte{sessionsBucket, userSessionsBucket, usersBucket, telegramUsersBucket} {
				if _, err := tx.CreateBucketIfNotExists(name); err != nil {
					return err
				}
			}
			return nil
		},
	)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bolt buckets: %w", err)
	}
	return db, nil
}
