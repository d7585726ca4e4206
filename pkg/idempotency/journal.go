// Package idempotency records processed payment callbacks in a local bolt
// file so a redelivered webhook is answered without touching the database.
package idempotency

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "github.com/boltdb/bolt"
)

const bucketName = "payment_callbacks"

var ErrNotFound = errors.New("idempotency key not found")

type Journal struct {
	db *bolt.DB
}

// Open creates the file and bucket if needed.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) Get(key string) ([]byte, error) {
	var out []byte
	err := j.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketName)).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

// Put stores value under key unless the key is already present. It returns
// the stored value and whether this call wrote it.
func (j *Journal) Put(key string, value []byte) ([]byte, bool, error) {
	var (
		out     []byte
		created bool
	)
	err := j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if existing := b.Get([]byte(key)); existing != nil {
			out = append([]byte(nil), existing...)
			return nil
		}
		out = value
		created = true
		return b.Put([]byte(key), value)
	})
	if err != nil {
		return nil, false, err
	}
	return out, created, nil
}
