package document

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Scope owns temporary files for the lifetime of one request. Release
// removes everything tracked so far and may be called more than once.
type Scope struct {
	paths []string
}

func NewScope() *Scope {
	return &Scope{}
}

// Track registers path for removal.
func (s *Scope) Track(path string) {
	if path != "" {
		s.paths = append(s.paths, path)
	}
}

// Len reports how many files are still tracked.
func (s *Scope) Len() int { return len(s.paths) }

// Release deletes every tracked file. Files that are already gone are not
// an error.
func (s *Scope) Release() error {
	var errs []error
	for _, path := range s.paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", path, err))
		}
	}
	s.paths = nil
	return errors.Join(errs...)
}
