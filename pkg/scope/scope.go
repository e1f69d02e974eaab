// Package scope provides hierarchical output locations ("directories") that
// refiners write their artifacts into.
//
// A Scope is entered with Cd and released with Close. Closing a child scope
// never closes its parent, and a closed scope rejects further artifacts.
package scope

import (
	"io"
	"path"
	"strings"
	"unicode"

	"github.com/ajitpratap0/harvest/pkg/errors"
)

// Scope is an addressable output location.
type Scope interface {
	// Path is the slash-separated location relative to the root scope.
	Path() string

	// Cd enters (creating if needed) a sub-scope. Slash-separated names
	// descend several levels; an empty name returns a handle on the same
	// location.
	Cd(name string) (Scope, error)

	// Create opens a named artifact for writing. The artifact is committed
	// when the writer is closed.
	Create(name string) (io.WriteCloser, error)

	// Close releases the handle. It is idempotent.
	Close() error
}

// Join appends name to a scope path, dropping empty, "." and ".." segments
// so a scope never leaves its root.
func Join(base, name string) string {
	var parts []string
	for _, p := range strings.Split(base+"/"+name, "/") {
		if p != "" && p != "." && p != ".." {
			parts = append(parts, p)
		}
	}
	return path.Join(parts...)
}

// SaveName turns a display name into a name usable as a file or folder
// name: characters other than letters, digits, '.', '-' and '_' become '_',
// and runs of '_' collapse into one.
func SaveName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	lastUnderscore := false
	for _, r := range name {
		keep := r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-')
		if !keep {
			if lastUnderscore {
				continue
			}
			b.WriteByte('_')
			lastUnderscore = true
			continue
		}
		b.WriteRune(r)
		lastUnderscore = false
	}
	return b.String()
}

// SavePath applies SaveName to every segment of a slash-separated path.
func SavePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = SaveName(s)
	}
	return strings.Join(segments, "/")
}

func errClosed(p string) error {
	return errors.New(errors.ErrorTypeFile, "scope already closed").WithDetail("path", p)
}

func validName(name string) error {
	if name == "" || strings.Contains(name, "/") || name == "." || name == ".." {
		return errors.Newf(errors.ErrorTypeValidation, "invalid artifact name %q", name)
	}
	return nil
}
