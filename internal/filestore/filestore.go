// Package filestore provides the durable key-value file store every persistence
// component in this module is built on. Paths are slash-separated names
// relative to the store root.
package filestore

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
)

var (
	// ErrNotExist is returned when a named path is absent.
	ErrNotExist = eris.New("filestore: path does not exist")
	// ErrExist is returned by CreateExclusive when the path is already present.
	ErrExist = eris.New("filestore: path already exists")
)

// Store reads and writes named documents under a root directory.
type Store struct {
	fs afero.Fs
}

// New wraps an arbitrary afero filesystem.
func New(fsys afero.Fs) *Store {
	return &Store{fs: fsys}
}

// NewOS returns a store rooted at dir on the local filesystem, creating dir if needed.
func NewOS(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "filestore: create root %s", dir)
	}
	return New(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

// NewMemory returns an in-memory store.
func NewMemory() *Store {
	return New(afero.NewMemMapFs())
}

func clean(name string) string {
	return strings.TrimPrefix(path.Clean("/"+name), "/")
}

// ReadFile returns the contents of name.
func (s *Store) ReadFile(name string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, clean(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotExist
		}
		return nil, eris.Wrapf(err, "filestore: read %s", name)
	}
	return data, nil
}

// WriteFile replaces name atomically: the data is written to a sibling temp
// file which is then renamed over the target.
func (s *Store) WriteFile(name string, data []byte) error {
	name = clean(name)
	if err := s.fs.MkdirAll(path.Dir(name), 0o755); err != nil {
		return eris.Wrapf(err, "filestore: mkdir for %s", name)
	}
	tmp := name + ".tmp-" + uuid.NewString()[:8]
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		_ = s.fs.Remove(tmp)
		return eris.Wrapf(err, "filestore: write %s", name)
	}
	if err := s.fs.Rename(tmp, name); err != nil {
		_ = s.fs.Remove(tmp)
		return eris.Wrapf(err, "filestore: rename into %s", name)
	}
	return nil
}

// CreateExclusive creates name with data, failing with ErrExist if it is
// already present.
func (s *Store) CreateExclusive(name string, data []byte) error {
	name = clean(name)
	if err := s.fs.MkdirAll(path.Dir(name), 0o755); err != nil {
		return eris.Wrapf(err, "filestore: mkdir for %s", name)
	}
	f, err := s.fs.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ErrExist
		}
		return eris.Wrapf(err, "filestore: create %s", name)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return eris.Wrapf(err, "filestore: write %s", name)
	}
	return eris.Wrapf(f.Close(), "filestore: close %s", name)
}

// Exists reports whether name is present.
func (s *Store) Exists(name string) (bool, error) {
	ok, err := afero.Exists(s.fs, clean(name))
	if err != nil {
		return false, eris.Wrapf(err, "filestore: stat %s", name)
	}
	return ok, nil
}

// ModTime returns the last modification time of name.
func (s *Store) ModTime(name string) (time.Time, error) {
	info, err := s.fs.Stat(clean(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return time.Time{}, ErrNotExist
		}
		return time.Time{}, eris.Wrapf(err, "filestore: stat %s", name)
	}
	return info.ModTime(), nil
}

// Remove deletes name. Removing an absent path is not an error.
func (s *Store) Remove(name string) error {
	err := s.fs.Remove(clean(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return eris.Wrapf(err, "filestore: remove %s", name)
	}
	return nil
}

// RemoveAll deletes dir and everything below it.
func (s *Store) RemoveAll(dir string) error {
	return eris.Wrapf(s.fs.RemoveAll(clean(dir)), "filestore: remove all %s", dir)
}

// List returns the sorted names of regular files directly inside dir. A
// missing directory yields an empty list. In-flight temp files are skipped.
func (s *Store) List(dir string) ([]string, error) {
	infos, err := afero.ReadDir(s.fs, clean(dir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "filestore: list %s", dir)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() || strings.Contains(info.Name(), ".tmp-") {
			continue
		}
		names = append(names, info.Name())
	}
	sort.Strings(names)
	return names, nil
}

// ReadJSON decodes the document at name into v.
func (s *Store) ReadJSON(name string, v any) error {
	data, err := s.ReadFile(name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return eris.Wrapf(err, "filestore: decode %s", name)
	}
	return nil
}

// WriteJSON encodes v as indented JSON and writes it atomically to name.
func (s *Store) WriteJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "filestore: encode %s", name)
	}
	return s.WriteFile(name, data)
}
