// Package file implements a record backend as a file hierarchy.
//
// The record for a hash with hex form s lives at <root>/s[0:2]/s[2:].
// It is written first to the sibling path <root>/s[0:2]/s[2:]_
// and then renamed into place,
// so the final path is either absent or complete.
// A writer that finds <root>/s[0:2]/s[2:]_ already present
// writes to a uniquely named <root>/s[0:2]/s[2:]_* instead,
// so concurrent writers of the same record never share a temp file.
// A temporary file left behind by a failed write is not cleaned up;
// Stale lists such files.
package file

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/bobg/hashio"
	"github.com/bobg/hashio/store"
)

var _ hashio.Backend = &Store{}

// tempSuffix marks a record that is still being written.
const tempSuffix = "_"

// Replaced in tests to simulate a crash between writing and renaming.
var rename = os.Rename

// Store is a file-based implementation of a record backend.
type Store struct {
	root string
}

// New produces a new Store storing records beneath root.
// Directories are created as needed.
func New(root string) *Store {
	return &Store{root: root}
}

// Root returns the directory s stores records in.
func (s *Store) Root() string { return s.root }

// Path returns the location of the record for h,
// or the empty string for hashio.None.
func (s *Store) Path(h hashio.Hash) string {
	if h.IsNone() {
		return ""
	}
	hex := h.String()
	return filepath.Join(s.root, hex[:2], hex[2:])
}

// Get gets the record with hash h.
func (s *Store) Get(_ context.Context, h hashio.Hash) ([]byte, error) {
	if h.IsNone() {
		return nil, hashio.ErrNotFound
	}
	path := s.Path(h)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(hashio.ErrNotFound, "opening %s", path)
	}
	return data, errors.Wrapf(err, "opening %s", path)
}

// Has tells whether the record with hash h exists.
func (s *Store) Has(_ context.Context, h hashio.Hash) (bool, error) {
	if h.IsNone() {
		return false, nil
	}
	path := s.Path(h)
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "checking %s", path)
	}
	return true, nil
}

// Put adds a record to the store if it wasn't already present.
func (s *Store) Put(_ context.Context, data []byte) (hashio.Hash, bool, error) {
	var (
		h    = hashio.HashBytes(data)
		path = s.Path(h)
		dir  = filepath.Dir(path)
	)

	_, err := os.Stat(path)
	if err == nil {
		return h, false, nil
	}
	if !os.IsNotExist(err) {
		return hashio.None, false, errors.Wrapf(err, "checking %s", path)
	}

	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return hashio.None, false, errors.Wrapf(err, "ensuring path %s exists", dir)
	}

	tmp, err := writeTemp(path, data)
	if err != nil {
		return hashio.None, false, err
	}

	err = rename(tmp, path)
	if err != nil {
		if _, serr := os.Stat(path); serr == nil {
			// Another writer installed the record first.
			os.Remove(tmp)
			return h, false, nil
		}
		return hashio.None, false, errors.Wrapf(err, "renaming %s", tmp)
	}

	return h, true, nil
}

// writeTemp writes data to a new temporary sibling of path and returns its name.
// The temp file is normally path+"_".
// If that already exists,
// because a concurrent writer holds it or an earlier write left it behind,
// a uniquely named path+"_*" is used instead.
// An existing temp file is never truncated.
func writeTemp(path string, data []byte) (string, error) {
	tmp := path + tempSuffix
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if os.IsExist(err) {
		f, err = os.CreateTemp(filepath.Dir(path), filepath.Base(tmp)+"*")
		if err == nil {
			err = f.Chmod(0644)
		}
	}
	if err != nil {
		return "", errors.Wrapf(err, "creating %s", tmp)
	}
	tmp = f.Name()

	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return tmp, errors.Wrapf(err, "writing data to %s", tmp)
}

// ListHashes produces all record hashes in the store, in lexicographic order,
// starting after the given one.
func (s *Store) ListHashes(ctx context.Context, start hashio.Hash, f func(hashio.Hash) error) error {
	topLevel, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "reading dir %s", s.root)
	}

	startHex := start.String()
	if startHex == "" {
		startHex = "00"
	}
	topIndex := sort.Search(len(topLevel), func(n int) bool {
		return topLevel[n].Name() >= startHex[:2]
	})
	for i := topIndex; i < len(topLevel); i++ {
		topInfo := topLevel[i]
		if !topInfo.IsDir() {
			continue
		}
		topName := topInfo.Name()
		if !isShard(topName) {
			continue
		}

		entries, err := os.ReadDir(filepath.Join(s.root, topName))
		if err != nil {
			return errors.Wrapf(err, "reading dir %s/%s", s.root, topName)
		}
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			if entry.IsDir() || isTemp(entry.Name()) {
				continue
			}
			h, err := hashio.FromHex(topName + entry.Name())
			if err != nil || h.IsNone() {
				continue
			}
			if !start.Less(h) {
				continue
			}
			if err = f(h); err != nil {
				return err
			}
		}
	}
	return nil
}

// Stale calls f with the path of every temporary file left behind by an interrupted write.
func (s *Store) Stale(ctx context.Context, f func(path string) error) error {
	topLevel, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "reading dir %s", s.root)
	}
	for _, topInfo := range topLevel {
		if !topInfo.IsDir() || !isShard(topInfo.Name()) {
			continue
		}
		dir := filepath.Join(s.root, topInfo.Name())
		entries, err := os.ReadDir(dir)
		if err != nil {
			return errors.Wrapf(err, "reading dir %s", dir)
		}
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			if entry.IsDir() || !isTemp(entry.Name()) {
				continue
			}
			if err := f(filepath.Join(dir, entry.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

func isTemp(name string) bool {
	return strings.Contains(name, tempSuffix)
}

func isShard(name string) bool {
	if len(name) != 2 {
		return false
	}
	_, err := strconv.ParseUint(name, 16, 8)
	return err == nil && strings.ToLower(name) == name
}

func init() {
	store.Register("file", func(_ context.Context, conf map[string]interface{}) (hashio.Backend, error) {
		root, ok := conf["root"].(string)
		if !ok || root == "" {
			return nil, errors.New(`missing "root" parameter`)
		}
		return New(root), nil
	})
}
