// Package templates persists engine templates, one file per subject id.
//
// The presence of a *.dat file is the only existence signal: Open scans the
// directory once and later lookups are served from memory. A file's id is
// derived with subject.Resolve, so S1.L01.dat serves id S1. Writes go to
// <dir>/<id>.dat through a temp file and a rename so a crash never leaves a
// partial template behind.
package templates

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/renameio"

	"github.com/kozaktomas/iris-batch/internal/constants"
	"github.com/kozaktomas/iris-batch/internal/subject"
)

// NotFoundError is returned by Load for ids without a persisted template.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("template not found: %s", e.ID)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// Store is a directory-backed template cache.
type Store struct {
	dir   string
	mu    sync.RWMutex
	files map[string]string // id -> file name in dir
}

// Open creates dir if needed and loads the set of populated ids.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create template directory: %w", err)
	}
	return OpenExisting(dir)
}

// OpenExisting is like Open but never creates dir. A missing directory yields
// an error matching os.ErrNotExist.
func OpenExisting(dir string) (*Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan template directory: %w", err)
	}

	files := make(map[string]string, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || !strings.HasSuffix(name, constants.TemplateExt) {
			continue
		}
		id := subject.Resolve(strings.TrimSuffix(name, constants.TemplateExt))
		if id == "" {
			continue
		}
		// S1.dat wins over S1.L01.dat
		if _, dup := files[id]; dup && name != id+constants.TemplateExt {
			continue
		}
		files[id] = name
	}

	return &Store{dir: dir, files: files}, nil
}

// Dir returns the backing directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file the template for id is read from, or written to when
// id is not stored yet.
func (s *Store) Path(id string) string {
	s.mu.RLock()
	name, ok := s.files[id]
	s.mu.RUnlock()
	if !ok {
		name = id + constants.TemplateExt
	}
	return filepath.Join(s.dir, name)
}

// Has reports whether a template for id exists.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.files[id]
	return ok
}

// Count returns the number of stored templates.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// IDs returns all stored ids, sorted.
func (s *Store) IDs() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.files))
	for id := range s.files {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Load reads the template for id.
func (s *Store) Load(id string) ([]byte, error) {
	if !s.Has(id) {
		return nil, &NotFoundError{ID: id}
	}
	data, err := os.ReadFile(s.Path(id))
	if errors.Is(err, os.ErrNotExist) {
		// Removed behind our back by external housekeeping.
		s.mu.Lock()
		delete(s.files, id)
		s.mu.Unlock()
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", id, err)
	}
	return data, nil
}

// Put atomically writes the template for id. An existing template is replaced
// as a whole.
func (s *Store) Put(id string, data []byte) error {
	if err := validateID(id); err != nil {
		return err
	}
	name := id + constants.TemplateExt
	if err := renameio.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("write template %s: %w", id, err)
	}

	s.mu.Lock()
	s.files[id] = name
	s.mu.Unlock()
	return nil
}

func validateID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("invalid template id %q", id)
	}
	return nil
}
