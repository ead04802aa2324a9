// Package sqlite3 implements a record backend in a SQLite database.
package sqlite3

import (
	"context"
	"database/sql"
	stderrs "errors"

	"github.com/bobg/sqlutil"
	_ "github.com/mattn/go-sqlite3" // register the sqlite3 type for sql.Open
	"github.com/pkg/errors"

	"github.com/bobg/hashio"
	"github.com/bobg/hashio/store"
)

var _ hashio.Backend = &Store{}

// Store is a Sqlite-based record backend.
type Store struct {
	db *sql.DB
}

// Schema is the SQL that New executes.
// It creates the `records` table if it does not exist.
// (If it does exist, it must have the columns and constraints described here.)
const Schema = `
CREATE TABLE IF NOT EXISTS records (
  hash BLOB PRIMARY KEY NOT NULL,
  data BLOB NOT NULL
);
`

// New produces a new Store using db for storage.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	_, err := db.ExecContext(ctx, Schema)
	return &Store{db: db}, errors.Wrap(err, "creating schema")
}

// Get gets the record with hash h.
func (s *Store) Get(ctx context.Context, h hashio.Hash) ([]byte, error) {
	const q = `SELECT data FROM records WHERE hash = $1`

	var data []byte
	err := s.db.QueryRowContext(ctx, q, h).Scan(&data)
	if stderrs.Is(err, sql.ErrNoRows) {
		return nil, hashio.ErrNotFound
	}
	return data, errors.Wrapf(err, "querying record %s", h)
}

// Has tells whether the record with hash h exists.
func (s *Store) Has(ctx context.Context, h hashio.Hash) (bool, error) {
	const q = `SELECT COUNT(*) FROM records WHERE hash = $1`

	var n int
	err := s.db.QueryRowContext(ctx, q, h).Scan(&n)
	return n > 0, errors.Wrapf(err, "counting record %s", h)
}

// Put adds a record if it wasn't already present.
func (s *Store) Put(ctx context.Context, data []byte) (hashio.Hash, bool, error) {
	const q = `INSERT INTO records (hash, data) VALUES ($1, $2) ON CONFLICT DO NOTHING`

	h := hashio.HashBytes(data)
	if data == nil {
		data = []byte{} // nil would bind as NULL
	}
	res, err := s.db.ExecContext(ctx, q, h, data)
	if err != nil {
		return hashio.None, false, errors.Wrap(err, "inserting record")
	}

	aff, err := res.RowsAffected()
	if err != nil {
		return hashio.None, false, errors.Wrap(err, "counting affected rows")
	}

	return h, aff > 0, nil
}

// ListHashes produces all record hashes in the store, in lexicographic order.
func (s *Store) ListHashes(ctx context.Context, start hashio.Hash, f func(hashio.Hash) error) error {
	const q = `SELECT hash FROM records WHERE hash > $1 ORDER BY hash`
	return sqlutil.ForQueryRows(ctx, s.db, q, start, func(h hashio.Hash) error {
		return f(h)
	})
}

func init() {
	store.Register("sqlite3", func(ctx context.Context, conf map[string]interface{}) (hashio.Backend, error) {
		conn, ok := conf["conn"].(string)
		if !ok || conn == "" {
			return nil, errors.New(`missing "conn" parameter`)
		}
		db, err := sql.Open("sqlite3", conn)
		if err != nil {
			return nil, errors.Wrap(err, "opening db")
		}
		return New(ctx, db)
	})
}
