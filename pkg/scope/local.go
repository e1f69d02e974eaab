package scope

import (
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/ajitpratap0/harvest/pkg/errors"
)

// Local is a scope backed by a directory tree on the local filesystem.
type Local struct {
	root   string
	rel    string
	closed atomic.Bool
}

// NewLocal creates the root directory if needed and returns a scope on it.
func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create output directory").
			WithDetail("root", root)
	}
	return &Local{root: root}, nil
}

// Path returns the location relative to the root.
func (l *Local) Path() string { return l.rel }

// Dir returns the absolute directory of this scope.
func (l *Local) Dir() string { return filepath.Join(l.root, filepath.FromSlash(l.rel)) }

// Cd creates the sub-directory and returns a scope on it.
func (l *Local) Cd(name string) (Scope, error) {
	if l.closed.Load() {
		return nil, errClosed(l.rel)
	}
	child := &Local{root: l.root, rel: Join(l.rel, name)}
	if err := os.MkdirAll(child.Dir(), 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create output directory").
			WithDetail("path", child.rel)
	}
	return child, nil
}

// Create opens a file in this scope, truncating an existing one.
func (l *Local) Create(name string) (io.WriteCloser, error) {
	if l.closed.Load() {
		return nil, errClosed(l.rel)
	}
	if err := validName(name); err != nil {
		return nil, err
	}
	f, err := os.Create(filepath.Join(l.Dir(), name))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create artifact").
			WithDetail("name", name)
	}
	return f, nil
}

// Close releases the handle. The directory stays on disk.
func (l *Local) Close() error {
	l.closed.Store(true)
	return nil
}
