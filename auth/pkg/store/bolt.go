package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const openTimeout = time.Second

// BoltStore keeps each profile in its own bucket of a bbolt database.
type BoltStore struct {
	db      *bbolt.DB
	profile []byte
	owned   bool
}

// NewBoltStore uses an already open database. Close does not close db.
func NewBoltStore(db *bbolt.DB, profile string) *BoltStore {
	return &BoltStore{db: db, profile: []byte(profile)}
}

// NewBoltStoreFromFile opens the database at path. A nil options waits at
// most one second for the file lock held by another process.
func NewBoltStoreFromFile(path, profile string, options *bbolt.Options) (*BoltStore, error) {
	if options == nil {
		options = &bbolt.Options{Timeout: openTimeout}
	}
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	s := NewBoltStore(db, profile)
	s.owned = true
	return s, nil
}

func (s *BoltStore) Load(_ context.Context) (Credential, error) {
	var cred Credential
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.profile)
		if b == nil {
			return nil
		}
		cred.AccessToken = string(b.Get([]byte(KeyToken)))
		cred.RefreshToken = string(b.Get([]byte(KeyRefreshToken)))
		return nil
	})
	return cred, err
}

// Save writes both keys in one transaction.
func (s *BoltStore) Save(_ context.Context, cred Credential) error {
	if cred.IsZero() {
		return ErrEmptyCredential
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(s.profile)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(KeyToken), []byte(cred.AccessToken)); err != nil {
			return err
		}
		if cred.RefreshToken == "" {
			return b.Delete([]byte(KeyRefreshToken))
		}
		return b.Put([]byte(KeyRefreshToken), []byte(cred.RefreshToken))
	})
}

func (s *BoltStore) Clear(_ context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		err := tx.DeleteBucket(s.profile)
		if errors.Is(err, bbolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
}

// Close closes the database if the store opened it.
func (s *BoltStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
