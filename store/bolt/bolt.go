// Package bolt implements a record backend in a Bolt database file.
package bolt

import (
	"bytes"
	"context"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"

	"github.com/bobg/hashio"
	"github.com/bobg/hashio/store"
)

var _ hashio.Backend = &Store{}

var bucketName = []byte("records")

// Store is a Bolt-based record backend.
// Records are kept in a single bucket keyed by the raw bytes of their hashes,
// which Bolt keeps in byte order.
type Store struct {
	db *bolt.DB
}

// New produces a new Store using db for storage,
// creating its bucket if needed.
func New(db *bolt.DB) (*Store, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	return &Store{db: db}, errors.Wrap(err, "creating bucket")
}

// Open opens (creating if necessary) the Bolt database at path
// and produces a Store on it.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get gets the record with hash h.
func (s *Store) Get(_ context.Context, h hashio.Hash) ([]byte, error) {
	if h.IsNone() {
		return nil, hashio.ErrNotFound
	}
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get(h.Bytes())
		if v == nil {
			return hashio.ErrNotFound
		}
		// Values are only valid for the life of the transaction.
		data = append([]byte(nil), v...)
		return nil
	})
	return data, err
}

// Has tells whether the record with hash h exists.
func (s *Store) Has(_ context.Context, h hashio.Hash) (bool, error) {
	if h.IsNone() {
		return false, nil
	}
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		ok = tx.Bucket(bucketName).Get(h.Bytes()) != nil
		return nil
	})
	return ok, err
}

// Put adds a record if it wasn't already present.
func (s *Store) Put(_ context.Context, data []byte) (hashio.Hash, bool, error) {
	var (
		h     = hashio.HashBytes(data)
		added bool
	)
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b.Get(h.Bytes()) != nil {
			return nil
		}
		added = true
		if data == nil {
			data = []byte{} // a nil value reads back as absent
		}
		return b.Put(h.Bytes(), data)
	})
	if err != nil {
		return hashio.None, false, errors.Wrap(err, "storing record")
	}
	return h, added, nil
}

// ListHashes produces all record hashes in the store, in lexicographic order,
// starting after the given one.
func (s *Store) ListHashes(ctx context.Context, start hashio.Hash, f func(hashio.Hash) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		var (
			c      = tx.Bucket(bucketName).Cursor()
			k      []byte
			startK = start.Bytes()
		)
		if startK == nil {
			k, _ = c.First()
		} else {
			k, _ = c.Seek(startK)
			if bytes.Equal(k, startK) {
				k, _ = c.Next()
			}
		}
		for ; k != nil; k, _ = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			h, err := hashio.FromBytes(k)
			if err != nil {
				return errors.Wrapf(err, "bad key %x", k)
			}
			if err = f(h); err != nil {
				return err
			}
		}
		return nil
	})
}

func init() {
	store.Register("bolt", func(_ context.Context, conf map[string]interface{}) (hashio.Backend, error) {
		path, ok := conf["root"].(string)
		if !ok || path == "" {
			return nil, errors.New(`missing "root" parameter`)
		}
		return Open(path)
	})
}
