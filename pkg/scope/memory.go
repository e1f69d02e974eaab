package scope

import (
	"bytes"
	"io"
	"path"
	"sort"
	"sync"
)

// Memory keeps artifacts in memory. All handles derived from one root share
// the same store, which makes it convenient for tests and dry runs.
type Memory struct {
	store  *memoryStore
	rel    string
	child  bool
	closed bool
}

type memoryStore struct {
	mu        sync.Mutex
	artifacts map[string][]byte
	dirs      map[string]struct{}
	open      int
}

// NewMemory returns an empty in-memory root scope.
func NewMemory() *Memory {
	return &Memory{store: &memoryStore{
		artifacts: make(map[string][]byte),
		dirs:      map[string]struct{}{"": {}},
	}}
}

// Path returns the location relative to the root.
func (m *Memory) Path() string { return m.rel }

// Cd returns a child handle and registers every directory on the way.
func (m *Memory) Cd(name string) (Scope, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if m.closed {
		return nil, errClosed(m.rel)
	}

	rel := Join(m.rel, name)
	for dir := rel; dir != "" && dir != "."; dir = path.Dir(dir) {
		m.store.dirs[dir] = struct{}{}
	}
	m.store.open++
	return &Memory{store: m.store, rel: rel, child: true}, nil
}

// Create returns a writer that stores the artifact on Close.
func (m *Memory) Create(name string) (io.WriteCloser, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if m.closed {
		return nil, errClosed(m.rel)
	}
	if err := validName(name); err != nil {
		return nil, err
	}
	return &memoryWriter{store: m.store, key: Join(m.rel, name)}, nil
}

// Close releases the handle. Closing the root does not discard artifacts.
func (m *Memory) Close() error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if m.child {
		m.store.open--
	}
	return nil
}

// Open returns the number of child handles entered with Cd and not yet closed.
func (m *Memory) Open() int {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return m.store.open
}

// Artifact returns the content stored under a slash-separated path.
func (m *Memory) Artifact(key string) ([]byte, bool) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	data, ok := m.store.artifacts[key]
	return data, ok
}

// Artifacts lists every stored artifact path in lexical order.
func (m *Memory) Artifacts() []string {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	keys := make([]string, 0, len(m.store.artifacts))
	for k := range m.store.artifacts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Dirs lists every directory entered so far, excluding the root.
func (m *Memory) Dirs() []string {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	dirs := make([]string, 0, len(m.store.dirs))
	for d := range m.store.dirs {
		if d != "" {
			dirs = append(dirs, d)
		}
	}
	sort.Strings(dirs)
	return dirs
}

type memoryWriter struct {
	store  *memoryStore
	key    string
	buf    bytes.Buffer
	closed bool
}

func (w *memoryWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errClosed(w.key)
	}
	return w.buf.Write(p)
}

func (w *memoryWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	w.store.artifacts[w.key] = w.buf.Bytes()
	return nil
}
