// Package workspace is the default local-filesystem core.WorkingDirectory:
// workspace-relative, POSIX-separated paths written atomically (temp file
// plus rename), in the same discipline core/index.go's atomicWrite uses for
// metadata files. Walk skips the .pando metadata directory entirely.
package workspace

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pandonetwork/pando/internal/core"
)

const metaDirName = ".pando"

// LocalFS is a core.WorkingDirectory rooted at a workspace directory on
// the local filesystem.
type LocalFS struct {
	root string
}

// New returns a LocalFS rooted at root.
func New(root string) *LocalFS {
	return &LocalFS{root: root}
}

func (l *LocalFS) resolve(path string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(path))
	if cleaned == "." {
		return l.root, nil
	}
	if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", &core.PathOutsideWorkspaceError{Path: path}
	}
	return filepath.Join(l.root, cleaned), nil
}

// Read returns the contents of path.
func (l *LocalFS) Read(path string) ([]byte, error) {
	full, err := l.resolve(path)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(full) //nolint:gosec // path is resolved and bounded to the workspace root
}

// Write atomically replaces path's contents, creating parent directories
// as needed.
func (l *LocalFS) Write(path string, data []byte) error {
	full, err := l.resolve(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("workspace: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("workspace: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("workspace: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("workspace: close temp: %w", err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("workspace: rename: %w", err)
	}
	return nil
}

// Remove deletes path, tolerating an already-absent file.
func (l *LocalFS) Remove(path string) error {
	full, err := l.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("workspace: remove %s: %w", path, err)
	}
	return nil
}

// Mkdir creates path as a directory, including any parents.
func (l *LocalFS) Mkdir(path string) error {
	full, err := l.resolve(path)
	if err != nil {
		return err
	}
	return os.MkdirAll(full, 0o755)
}

// Exists reports whether path exists.
func (l *LocalFS) Exists(path string) (bool, error) {
	full, err := l.resolve(path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Walk yields every regular file under the workspace root, excluding the
// .pando metadata directory, as workspace-relative POSIX paths.
func (l *LocalFS) Walk(fn func(path string) error) error {
	return filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		top := strings.SplitN(rel, string(filepath.Separator), 2)[0]
		if top == metaDirName {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		return fn(filepath.ToSlash(rel))
	})
}

var _ core.WorkingDirectory = (*LocalFS)(nil)
