package varsfile

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/turtacn/certgate/internal/domain/models"
	"github.com/turtacn/certgate/internal/domain/service"
	"github.com/turtacn/certgate/pkg/constants"
	apperrors "github.com/turtacn/certgate/pkg/errors"
	"github.com/turtacn/certgate/pkg/utils"
)

// Store is the file-backed VarsStore. A single mutex serializes writers.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore returns a store for the vars file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

var _ service.VarsStore = (*Store)(nil)

// Path returns the vars file location.
func (s *Store) Path() string { return s.path }

// Read parses the vars file. An absent file yields the defaults and false.
func (s *Store) Read() (models.CAConfig, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.DefaultCAConfig(), false, nil
		}
		return models.CAConfig{}, false, apperrors.Internal(err)
	}
	return Parse(string(data)), true, nil
}

// Write validates cfg and atomically replaces the vars file. On validation
// failure the file is not touched.
func (s *Store) Write(cfg models.CAConfig) error {
	if cfg.OrganizationalUnit == "" {
		cfg.OrganizationalUnit = constants.DefaultOrganizationalUnit
	}
	if err := utils.ValidateStruct(cfg); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeFileAtomic(s.path, []byte(Encode(cfg)), 0o644); err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

// writeFileAtomic writes data to a temp file in the target directory, syncs it and
// renames it over path.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	tmpName = ""
	return nil
}
