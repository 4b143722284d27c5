package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	errs "github.com/tvpsh2021/social-snap-sub001/pkg/errors"
	"github.com/tvpsh2021/social-snap-sub001/pkg/urlutil"
)

// Manager writes downloaded files into one output directory and hands out
// names that never collide with files already there.
type Manager struct {
	outputDir string
	taken     map[string]bool
	mu        sync.Mutex
}

// NewManager creates a new storage manager
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "failed to create output directory")
	}

	manager := &Manager{
		outputDir: outputDir,
		taken:     make(map[string]bool),
	}

	if err := manager.scanExistingFiles(); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "failed to scan existing files")
	}

	return manager, nil
}

// scanExistingFiles marks every regular file in the output directory as taken
func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".tmp") {
			continue
		}
		m.taken[entry.Name()] = true
	}
	return nil
}

// Exists reports whether name is present in the output directory
func (m *Manager) Exists(name string) bool {
	name = urlutil.SanitizeFilename(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.taken[name] {
		return true
	}
	_, err := os.Stat(filepath.Join(m.outputDir, name))
	return err == nil
}

// Reserve returns a sanitized variant of name that no other file or
// reservation uses, appending _1, _2, ... before the extension.
func (m *Manager) Reserve(name string) string {
	name = urlutil.SanitizeFilename(name)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	m.mu.Lock()
	defer m.mu.Unlock()

	candidate := name
	for i := 1; m.inUse(candidate); i++ {
		candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
	}
	m.taken[candidate] = true
	return candidate
}

func (m *Manager) inUse(name string) bool {
	if m.taken[name] {
		return true
	}
	_, err := os.Stat(filepath.Join(m.outputDir, name))
	return err == nil
}

// Release forgets a reservation whose file was never written
func (m *Manager) Release(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := os.Stat(filepath.Join(m.outputDir, name)); err != nil {
		delete(m.taken, name)
	}
}

// Save writes r to name through a temporary file and an atomic rename.
// It returns the final path and the number of bytes written.
func (m *Manager) Save(r io.Reader, name string) (string, int64, error) {
	name = urlutil.SanitizeFilename(name)
	target := filepath.Join(m.outputDir, name)

	out, err := os.CreateTemp(m.outputDir, "."+name+".*.tmp")
	if err != nil {
		return "", 0, errs.Wrap(errs.ErrorTypeStorage, err, "failed to create temporary file")
	}
	tempFile := out.Name()

	n, err := io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return "", n, errs.Wrap(errs.ErrorTypeStorage, err, "failed to write file data")
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return "", n, errs.Wrap(errs.ErrorTypeStorage, closeErr, "failed to close file")
	}

	if err := os.Rename(tempFile, target); err != nil {
		os.Remove(tempFile)
		return "", n, errs.Wrap(errs.ErrorTypeStorage, err, "failed to rename temporary file")
	}

	m.mu.Lock()
	m.taken[name] = true
	m.mu.Unlock()

	return target, n, nil
}

// Path returns the absolute location name would be stored at
func (m *Manager) Path(name string) string {
	return filepath.Join(m.outputDir, urlutil.SanitizeFilename(name))
}

// OutputDir returns the output directory path
func (m *Manager) OutputDir() string {
	return m.outputDir
}

// Count returns the number of files known to the manager, reservations
// included
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.taken)
}
