package storage

import (
	"errors"
	"iter"
	"time"
)

// ErrNotExist is returned by Read when no object exists at the given path.
// Implementations wrap their backend's not-found condition with this error.
var ErrNotExist = errors.New("object does not exist")

// FileMeta describes one object returned from a listing: its full path
// relative to the store root, its size in bytes, and its last-modified time.
type FileMeta struct {
	Path         string
	Size         int64
	LastModified time.Time
}

// ObjectStore is the narrow capability this module needs from a storage
// backend. Listing yields objects in ascending path order which the log
// listing code depends on. Read returns the whole object; log files are
// consumed one at a time so this bounds memory to a single file.
type ObjectStore interface {
	List(prefix string) iter.Seq2[FileMeta, error]
	Read(path string) ([]byte, error)
}
