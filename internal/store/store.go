package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

const (
	workspaceDirName = ".atelier"
	dbFileName       = "atelier.sqlite"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnknownResource = errors.New("unknown resource")
)

type notFoundError struct {
	resource string
	id       int64
}

func (e notFoundError) Error() string {
	return fmt.Sprintf("%s not found: %d", e.resource, e.id)
}

func (e notFoundError) Unwrap() error { return ErrNotFound }

func errRecordNotFound(resource string, id int64) error {
	return notFoundError{resource: resource, id: id}
}

// Store is a handle to one workspace directory. It is cheap to copy; every
// operation opens (and closes) its own SQLite connection so the CLI, TUI and
// web server can share a workspace across processes.
type Store struct {
	Dir    string
	Logger *zap.Logger
}

func (s Store) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func DiscoverDir(start string) (string, bool) {
	dir := start
	for {
		candidate := filepath.Join(dir, workspaceDirName)
		if st, err := os.Stat(candidate); err == nil && st.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func DefaultDir() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	if found, ok := DiscoverDir(cwd); ok {
		return found, nil
	}
	return filepath.Join(cwd, workspaceDirName), nil
}

func WorkspaceDir(name string) (string, error) {
	name, err := NormalizeWorkspaceName(name)
	if err != nil {
		return "", err
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "workspaces", name), nil
}

func (s Store) Ensure() error {
	if s.Dir == "" {
		return errors.New("store: empty dir")
	}
	return os.MkdirAll(s.Dir, 0o755)
}

func (s Store) sqlitePath() string {
	return filepath.Join(s.Dir, dbFileName)
}

// ModTime reports the last write to the workspace database (zero if missing).
// The TUI polls it to pick up writes from other processes.
func (s Store) ModTime() (t int64) {
	for _, p := range []string{s.sqlitePath(), s.sqlitePath() + "-wal"} {
		st, err := os.Stat(p)
		if err != nil {
			continue
		}
		if n := st.ModTime().UnixNano(); n > t {
			t = n
		}
	}
	return t
}
