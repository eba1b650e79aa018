// Package mapstore persists named maps. Two implementations back the
// mapping coordinator's Store interface: JSON files in a maps directory
// and a NATS JetStream object store bucket for networked deployments.
package mapstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/smilesmith9879/new-car/errors"
	"github.com/smilesmith9879/new-car/mapping"
)

const fileExt = ".json"

// FileStore keeps each map as a JSON file named after the map.
type FileStore struct {
	dir string
}

var _ mapping.Store = (*FileStore)(nil)

// NewFileStore creates the maps directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.WrapInvalidArgument(errors.ErrMissingConfig,
			"mapstore", "NewFileStore", "directory validation")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.WrapIOFailure(err, "mapstore", "NewFileStore", "create maps directory")
	}
	return &FileStore{dir: dir}, nil
}

// filename converts a map name to a safe file path.
func (s *FileStore) filename(name string) string {
	safe := strings.ReplaceAll(name, " ", "_")
	safe = strings.ReplaceAll(safe, string(filepath.Separator), "_")
	return filepath.Join(s.dir, safe+fileExt)
}

// Save writes the map as indented JSON.
func (s *FileStore) Save(_ context.Context, name string, m *mapping.Map) error {
	if name == "" {
		return errors.WrapInvalidArgument(
			fmt.Errorf("map name must not be empty"),
			"mapstore", "Save", "name validation")
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.WrapIOFailure(err, "mapstore", "Save", "serialize map")
	}

	if err := os.WriteFile(s.filename(name), data, 0o644); err != nil {
		return errors.WrapIOFailure(err, "mapstore", "Save", "write map file")
	}
	return nil
}

// Load reads a named map, accepting names with or without the extension.
func (s *FileStore) Load(_ context.Context, name string) (*mapping.Map, error) {
	name = strings.TrimSuffix(name, fileExt)

	data, err := os.ReadFile(s.filename(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapNotFound(
				fmt.Errorf("%w: %q", errors.ErrMapNotFound, name),
				"mapstore", "Load", "map lookup")
		}
		return nil, errors.WrapIOFailure(err, "mapstore", "Load", "read map file")
	}

	var m mapping.Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.WrapIOFailure(err, "mapstore", "Load", "deserialize map")
	}
	return &m, nil
}

// List returns the names of all stored maps, without extensions.
func (s *FileStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.WrapIOFailure(err, "mapstore", "List", "read maps directory")
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), fileExt))
	}
	return names, nil
}

// Delete removes a stored map.
func (s *FileStore) Delete(_ context.Context, name string) error {
	name = strings.TrimSuffix(name, fileExt)
	if err := os.Remove(s.filename(name)); err != nil {
		if os.IsNotExist(err) {
			return errors.WrapNotFound(
				fmt.Errorf("%w: %q", errors.ErrMapNotFound, name),
				"mapstore", "Delete", "map lookup")
		}
		return errors.WrapIOFailure(err, "mapstore", "Delete", "remove map file")
	}
	return nil
}
