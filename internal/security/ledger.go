package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketConsumed = []byte("consumed_tokens")

// ErrTokenUsed is returned when a token ID has already been consumed
var ErrTokenUsed = errors.New("token already used")

// Ledger remembers consumed token IDs until they expire
type Ledger struct {
	db  *bolt.DB
	now func() time.Time
}

// OpenLedger opens or creates the ledger database at path
func OpenLedger(path string) (*Ledger, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketConsumed)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create ledger bucket: %w", err)
	}
	return &Ledger{db: db, now: time.Now}, nil
}

// Close closes the ledger database
func (l *Ledger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Consume records jti as used until expiresAt. It fails with ErrTokenUsed if
// jti was consumed before. Expired entries are purged on the way.
func (l *Ledger) Consume(jti string, expiresAt time.Time) error {
	now := l.now().UTC()
	return l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketConsumed)

		var expired [][]byte
		err := b.ForEach(func(k, v []byte) error {
			exp, err := time.Parse(time.RFC3339Nano, string(v))
			if err != nil || !exp.After(now) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
		}

		key := []byte(jti)
		if b.Get(key) != nil {
			return ErrTokenUsed
		}
		return b.Put(key, []byte(expiresAt.UTC().Format(time.RFC3339Nano)))
	})
}

// Used reports whether jti is recorded as consumed
func (l *Ledger) Used(jti string) (bool, error) {
	var used bool
	err := l.db.View(func(tx *bolt.Tx) error {
		used = tx.Bucket(bucketConsumed).Get([]byte(jti)) != nil
		return nil
	})
	return used, err
}
