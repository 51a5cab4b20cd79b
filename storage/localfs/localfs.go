package localfs

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"deltaglass.dev/deltaglass/storage"
)

// Directory is an ObjectStore over a local directory tree. Paths handed to
// List and Read are slash-separated and relative to the directory root.
type Directory struct {
	Path string
}

func NewDirectory(path string) *Directory {
	return &Directory{Path: path}
}

func NewInWorkingDirectory(path string) *Directory {
	wd, err := os.Getwd()
	if err != nil {
		panic(fmt.Errorf("failed getting working directory: %w", err))
	}
	return NewDirectory(filepath.Join(wd, path))
}

func (d *Directory) List(prefix string) iter.Seq2[storage.FileMeta, error] {
	errStop := errors.New("walk-dir-stop")

	return func(yield func(storage.FileMeta, error) bool) {
		var metas []storage.FileMeta
		err := filepath.WalkDir(d.Path, func(p string, entry os.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return errStop
				}
				return err
			}
			if entry.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(d.Path, p)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			if !strings.HasPrefix(rel, prefix) {
				return nil
			}
			info, err := entry.Info()
			if err != nil {
				return err
			}
			metas = append(metas, storage.FileMeta{
				Path:         rel,
				Size:         info.Size(),
				LastModified: info.ModTime(),
			})
			return nil
		})
		if err != nil && !errors.Is(err, errStop) {
			yield(storage.FileMeta{}, err)
			return
		}

		// WalkDir visits lexically within each directory but the listing
		// contract is ascending over the full slash path.
		sort.Slice(metas, func(i, j int) bool { return metas[i].Path < metas[j].Path })
		for _, m := range metas {
			if !yield(m, nil) {
				return
			}
		}
	}
}

func (d *Directory) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(d.Path, filepath.FromSlash(path)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("localfs read %s: %w", path, storage.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("localfs read %s: %w", path, err)
	}
	return data, nil
}

var _ storage.ObjectStore = (*Directory)(nil)
