package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/sight/pkg/ports"
)

// Extensions lists the file extensions recognized as configuration documents, in lookup order.
var Extensions = []string{".yaml", ".yml", ".json"}

// Loader implements ports.ConfigLoader over a directory. The id of a configuration is its
// path relative to the directory, without extension and with forward slashes.
type Loader struct {
	Dir string
}

// NewLoader creates a Loader rooted at dir.
func NewLoader(dir string) *Loader {
	return &Loader{Dir: dir}
}

// GetConfig reads the document of id, trying each known extension.
func (l *Loader) GetConfig(id string) ([]byte, error) {
	if id == "" || strings.Contains(id, "..") {
		return nil, fmt.Errorf("invalid config id %q", id)
	}
	base := filepath.Join(l.Dir, filepath.FromSlash(id))
	for _, ext := range Extensions {
		data, err := os.ReadFile(base + ext)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", id, err)
		}
	}
	return nil, fmt.Errorf("%w: %s", ports.ErrConfigNotFound, id)
}

// ListConfigs walks the directory and returns every configuration id. Hidden directories are
// skipped.
func (l *Loader) ListConfigs() ([]string, error) {
	seen := map[string]bool{}
	err := filepath.WalkDir(l.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// hidden directories hold state, such as the preference store
			if path != l.Dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !isConfigFile(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(l.Dir, path)
		if err != nil {
			return err
		}
		seen[filepath.ToSlash(strings.TrimSuffix(rel, filepath.Ext(rel)))] = true
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list configs: %w", err)
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func isConfigFile(name string) bool {
	ext := filepath.Ext(name)
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
