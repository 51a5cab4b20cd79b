package memstore

import (
	"fmt"
	"iter"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/btree"

	"deltaglass.dev/deltaglass/storage"
)

type object struct {
	key     string
	data    []byte
	modTime time.Time
}

// Store is an in-memory ObjectStore for tests and dry runs. Objects are kept
// in a btree so prefix listings come back in ascending key order without
// re-sorting on every call.
//
// ReadCalls and ListCalls count storage round trips which lets tests assert
// properties like "resolving from the version summary file performs zero log
// reads".
type Store struct {
	tree      *btree.BTreeG[object]
	ReadCalls atomic.Int64
	ListCalls atomic.Int64
}

func NewStore() *Store {
	return &Store{
		tree: btree.NewG(2, func(a, b object) bool {
			return a.key < b.key
		}),
	}
}

// Put stores data at key with the given modification time. Existing objects
// are overwritten.
func (s *Store) Put(key string, data []byte, modTime time.Time) {
	s.tree.ReplaceOrInsert(object{key: key, data: data, modTime: modTime})
}

func (s *Store) Delete(key string) {
	s.tree.Delete(object{key: key})
}

func (s *Store) Exists(key string) bool {
	_, ok := s.tree.Get(object{key: key})
	return ok
}

func (s *Store) List(prefix string) iter.Seq2[storage.FileMeta, error] {
	// Snapshot the matching objects so the caller may Put during iteration.
	var metas []storage.FileMeta
	s.tree.AscendGreaterOrEqual(object{key: prefix}, func(o object) bool {
		if !strings.HasPrefix(o.key, prefix) {
			return false
		}
		metas = append(metas, storage.FileMeta{
			Path:         o.key,
			Size:         int64(len(o.data)),
			LastModified: o.modTime,
		})
		return true
	})

	return func(yield func(storage.FileMeta, error) bool) {
		s.ListCalls.Add(1)
		for _, m := range metas {
			if !yield(m, nil) {
				return
			}
		}
	}
}

func (s *Store) Read(path string) ([]byte, error) {
	s.ReadCalls.Add(1)
	o, ok := s.tree.Get(object{key: path})
	if !ok {
		return nil, fmt.Errorf("memstore read %s: %w", path, storage.ErrNotExist)
	}
	return o.data, nil
}

var _ storage.ObjectStore = (*Store)(nil)
