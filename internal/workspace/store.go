package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/tmuxsnap/tmuxsnap/internal/errors"
	"github.com/tmuxsnap/tmuxsnap/internal/logging"
)

// Info describes a saved workspace file.
type Info struct {
	Name     string
	ModTime  time.Time
	Size     int64
	Sessions int
}

// Store reads and writes saved workspaces in a directory.
type Store struct {
	fs     afero.Fs
	dir    string
	logger *logging.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithFs sets the filesystem. Defaults to the OS filesystem.
func WithFs(fs afero.Fs) StoreOption {
	return func(s *Store) {
		s.fs = fs
	}
}

// WithStoreLogger sets the logger.
func WithStoreLogger(logger *logging.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string, opts ...StoreOption) *Store {
	s := &Store{
		fs:     afero.NewOsFs(),
		dir:    dir,
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file of the named workspace.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid workspace name %q", name)
	}
	return nil
}

// Save writes model under name. An empty model is not written; Save logs
// and returns a WorkspaceError wrapping errors.ErrEmptyWorkspace.
func (s *Store) Save(model *Model, name string) error {
	if err := validateName(name); err != nil {
		return errors.NewWorkspaceError("save", name, err)
	}
	if model.IsEmpty() {
		s.logger.Info("refusing to save empty workspace", "name", name)
		return errors.NewWorkspaceError("save", name, errors.ErrEmptyWorkspace)
	}

	data, err := Encode(model)
	if err != nil {
		return errors.NewWorkspaceError("save", name, err)
	}

	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return errors.NewWorkspaceError("save", name, fmt.Errorf("create directory: %w", err))
	}

	target := s.Path(name)
	tmp := filepath.Join(s.dir, "."+name+".tmp")
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return errors.NewWorkspaceError("save", name, fmt.Errorf("write temp file: %w", err))
	}
	if err := s.fs.Rename(tmp, target); err != nil {
		_ = s.fs.Remove(tmp)
		return errors.NewWorkspaceError("save", name, fmt.Errorf("rename temp file: %w", err))
	}

	windows, panes := model.Counts()
	s.logger.Info("workspace saved",
		"name", name,
		"sessions", len(model.Sessions),
		"windows", windows,
		"panes", panes,
	)
	return nil
}

// Load reads the named workspace.
func (s *Store) Load(name string) (*Model, error) {
	if err := validateName(name); err != nil {
		return nil, errors.NewWorkspaceError("load", name, err)
	}
	return s.load(s.Path(name), name)
}

// LoadPath reads a workspace from an explicit file path.
func (s *Store) LoadPath(path string) (*Model, error) {
	return s.load(path, filepath.Base(path))
}

func (s *Store) load(path, name string) (*Model, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewWorkspaceError("load", name, errors.ErrWorkspaceNotFound)
		}
		return nil, errors.NewWorkspaceError("load", name, err)
	}

	model, err := Decode(data)
	if err != nil {
		return nil, errors.NewWorkspaceError("load", name,
			fmt.Errorf("%w: %v", errors.ErrWorkspaceCorrupted, err))
	}
	return model, nil
}

// List returns the saved workspaces sorted by name. Unreadable files are
// listed with Sessions set to -1.
func (s *Store) List() ([]Info, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read workspace directory: %w", err)
	}

	infos := make([]Info, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info := Info{Name: e.Name(), ModTime: e.ModTime(), Size: e.Size(), Sessions: -1}
		if m, err := s.Load(e.Name()); err == nil {
			info.Sessions = len(m.Sessions)
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Delete removes the named workspace.
func (s *Store) Delete(name string) error {
	if err := validateName(name); err != nil {
		return errors.NewWorkspaceError("delete", name, err)
	}
	if err := s.fs.Remove(s.Path(name)); err != nil {
		if os.IsNotExist(err) {
			return errors.NewWorkspaceError("delete", name, errors.ErrWorkspaceNotFound)
		}
		return errors.NewWorkspaceError("delete", name, err)
	}
	s.logger.Info("workspace deleted", "name", name)
	return nil
}
