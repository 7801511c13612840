package receipt

import (
	"fmt"
	"os"
	"path/filepath"
)

// Storage defines the interface for archiving resolved image bytes so a
// scan's original input can be fetched back later
type Storage interface {
	// Save archives the image bytes for a scan ID
	Save(id string, data []byte) error

	// Get retrieves the archived bytes for a scan ID
	Get(id string) ([]byte, error)

	// Delete removes the archived bytes for a scan ID
	Delete(id string) error
}

// LocalStorage implements the Storage interface using the local
// filesystem, one file per scan ID
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// Save archives image bytes under the scan ID
func (l *LocalStorage) Save(id string, data []byte) error {
	if err := os.WriteFile(l.path(id), data, 0644); err != nil {
		return fmt.Errorf("writing archive file: %w", err)
	}
	return nil
}

// Get retrieves archived image bytes by scan ID
func (l *LocalStorage) Get(id string) ([]byte, error) {
	data, err := os.ReadFile(l.path(id))
	if err != nil {
		return nil, fmt.Errorf("reading archive file: %w", err)
	}
	return data, nil
}

// Delete removes the archived bytes for a scan ID
func (l *LocalStorage) Delete(id string) error {
	if err := os.Remove(l.path(id)); err != nil {
		return fmt.Errorf("deleting archive file: %w", err)
	}
	return nil
}

func (l *LocalStorage) path(id string) string {
	// Scan IDs are generated internally, but keep path traversal out
	// anyway.
	return filepath.Join(l.basePath, filepath.Base(id)+".img")
}
