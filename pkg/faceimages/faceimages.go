// Package faceimages stores the reference thumbnail captured when a person
// is first enrolled. Caregivers review these when confirming identities.
package faceimages

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store keeps one JPEG per person on disk.
type Store struct {
	dir string
}

// NewStore creates the backing directory if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("face image directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating face image directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(personID string) string {
	// Person ids are uuids, but never trust them as path components.
	safe := strings.ReplaceAll(personID, string(filepath.Separator), "_")
	return filepath.Join(s.dir, safe+".jpg")
}

// Save writes the person's thumbnail, replacing any existing one.
func (s *Store) Save(personID string, jpeg []byte) error {
	if err := os.WriteFile(s.path(personID), jpeg, 0o644); err != nil {
		return fmt.Errorf("writing face image: %w", err)
	}
	return nil
}

// Read returns the person's thumbnail. A missing file returns
// os.ErrNotExist via the wrapped error.
func (s *Store) Read(personID string) ([]byte, error) {
	data, err := os.ReadFile(s.path(personID))
	if err != nil {
		return nil, fmt.Errorf("reading face image: %w", err)
	}
	return data, nil
}

// Exists reports whether a thumbnail is stored for the person.
func (s *Store) Exists(personID string) bool {
	_, err := os.Stat(s.path(personID))
	return err == nil
}

// Delete removes the person's thumbnail. Missing files are not an error.
func (s *Store) Delete(personID string) error {
	err := os.Remove(s.path(personID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting face image: %w", err)
	}
	return nil
}
