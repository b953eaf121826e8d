// Package testutil provides in-memory fakes for the service's external
// abstractions so components can be tested without an OS underneath.
package testutil

import (
	"bytes"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"maxbackup/internal/backup"
)

// MockFile is one file in a MockFilesystem.
type MockFile struct {
	Data     []byte
	ModTime  time.Time
	System   bool
	Hidden   bool
	ReadOnly bool
}

// MockFilesystem is an in-memory backup.Filesystem. Paths are slash
// separated. Errors can be injected per path to exercise failure handling.
type MockFilesystem struct {
	mu    sync.Mutex
	dirs  map[string]bool
	files map[string]*MockFile

	// CopyErr injects an error when CopyFile is called with the given
	// source path. StatErr does the same for Stat.
	CopyErr map[string]error
	StatErr map[string]error

	// MkdirErr injects an error for MkdirAll on the given path.
	MkdirErr map[string]error
}

// NewMockFilesystem creates an empty mock filesystem.
func NewMockFilesystem() *MockFilesystem {
	return &MockFilesystem{
		dirs:     map[string]bool{"/": true},
		files:    map[string]*MockFile{},
		CopyErr:  map[string]error{},
		StatErr:  map[string]error{},
		MkdirErr: map[string]error{},
	}
}

// AddDirectory creates a directory and all parents.
func (m *MockFilesystem) AddDirectory(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addDirLocked(path.Clean(p))
}

func (m *MockFilesystem) addDirLocked(p string) {
	for p != "/" && p != "." {
		m.dirs[p] = true
		p = path.Dir(p)
	}
}

// AddFile creates a file (and parent directories) with the given content
// and a fixed modification time.
func (m *MockFilesystem) AddFile(p string, data []byte, modTime time.Time) *MockFile {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = path.Clean(p)
	m.addDirLocked(path.Dir(p))
	f := &MockFile{Data: append([]byte(nil), data...), ModTime: modTime}
	m.files[p] = f
	return f
}

// RemoveFile deletes a file, simulating it disappearing mid-run.
func (m *MockFilesystem) RemoveFile(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path.Clean(p))
}

// File returns the file at p, or nil.
func (m *MockFilesystem) File(p string) *MockFile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[path.Clean(p)]
}

// Stat returns file info for a path.
func (m *MockFilesystem) Stat(p string) (fs.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = path.Clean(p)
	if err := m.StatErr[p]; err != nil {
		return nil, err
	}
	if f, ok := m.files[p]; ok {
		return mockInfo{name: path.Base(p), size: int64(len(f.Data)), modTime: f.ModTime}, nil
	}
	if m.dirs[p] {
		return mockInfo{name: path.Base(p), dir: true}, nil
	}
	return nil, fmt.Errorf("stat %s: %w", p, fs.ErrNotExist)
}

// MkdirAll creates a directory and any missing parents.
func (m *MockFilesystem) MkdirAll(p string, _ fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = path.Clean(p)
	if err := m.MkdirErr[p]; err != nil {
		return err
	}
	m.addDirLocked(p)
	return nil
}

// WalkDir walks the tree rooted at root in lexical order, like
// filepath.WalkDir.
func (m *MockFilesystem) WalkDir(root string, fn fs.WalkDirFunc) error {
	m.mu.Lock()
	root = path.Clean(root)
	if !m.dirs[root] {
		m.mu.Unlock()
		return fn(root, nil, fmt.Errorf("walk %s: %w", root, fs.ErrNotExist))
	}

	var paths []string
	for d := range m.dirs {
		if d == root || underRoot(d, root) {
			paths = append(paths, d)
		}
	}
	for f := range m.files {
		if underRoot(f, root) {
			paths = append(paths, f)
		}
	}
	m.mu.Unlock()
	sort.Strings(paths)

	for _, p := range paths {
		m.mu.Lock()
		f, isFile := m.files[p]
		m.mu.Unlock()

		var entry fs.DirEntry
		if isFile {
			entry = mockEntry{info: mockInfo{name: path.Base(p), size: int64(len(f.Data)), modTime: f.ModTime}}
		} else {
			entry = mockEntry{info: mockInfo{name: path.Base(p), dir: true}}
		}
		if err := fn(p, entry, nil); err != nil {
			if err == fs.SkipDir || err == fs.SkipAll {
				return nil
			}
			return err
		}
	}
	return nil
}

func underRoot(p, root string) bool {
	if root == "/" {
		return p != "/"
	}
	return strings.HasPrefix(p, root+"/")
}

// CopyFile copies src over dst in memory.
func (m *MockFilesystem) CopyFile(src, dst string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, dst = path.Clean(src), path.Clean(dst)
	if err := m.CopyErr[src]; err != nil {
		return 0, err
	}
	f, ok := m.files[src]
	if !ok {
		return 0, fmt.Errorf("open %s: %w", src, fs.ErrNotExist)
	}
	if !m.dirs[path.Dir(dst)] {
		return 0, fmt.Errorf("open %s: %w", dst, fs.ErrNotExist)
	}
	m.files[dst] = &MockFile{Data: append([]byte(nil), f.Data...), ModTime: time.Now()}
	return int64(len(f.Data)), nil
}

// CopyTimes propagates the source modification time.
func (m *MockFilesystem) CopyTimes(src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.files[path.Clean(src)]
	if !ok {
		return fmt.Errorf("stat %s: %w", src, fs.ErrNotExist)
	}
	d, ok := m.files[path.Clean(dst)]
	if !ok {
		return fmt.Errorf("stat %s: %w", dst, fs.ErrNotExist)
	}
	d.ModTime = s.ModTime
	return nil
}

// ClearHiddenReadOnly clears the hidden and read-only flags.
func (m *MockFilesystem) ClearHiddenReadOnly(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[path.Clean(p)]
	if !ok {
		return fmt.Errorf("stat %s: %w", p, fs.ErrNotExist)
	}
	f.Hidden = false
	f.ReadOnly = false
	return nil
}

// HasSystemAttribute reports the file's system flag.
func (m *MockFilesystem) HasSystemAttribute(p string) (has, known bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[path.Clean(p)]
	if !ok {
		return false, false
	}
	return f.System, true
}

// SameContent reports whether the file at p holds exactly data.
func (m *MockFilesystem) SameContent(p string, data []byte) bool {
	f := m.File(p)
	return f != nil && bytes.Equal(f.Data, data)
}

type mockInfo struct {
	name    string
	size    int64
	modTime time.Time
	dir     bool
}

func (i mockInfo) Name() string       { return i.name }
func (i mockInfo) Size() int64        { return i.size }
func (i mockInfo) Mode() fs.FileMode  { return modeOf(i.dir) }
func (i mockInfo) ModTime() time.Time { return i.modTime }
func (i mockInfo) IsDir() bool        { return i.dir }
func (i mockInfo) Sys() any           { return nil }

func modeOf(dir bool) fs.FileMode {
	if dir {
		return fs.ModeDir | 0755
	}
	return 0644
}

type mockEntry struct {
	info mockInfo
}

func (e mockEntry) Name() string               { return e.info.name }
func (e mockEntry) IsDir() bool                { return e.info.dir }
func (e mockEntry) Type() fs.FileMode          { return e.info.Mode().Type() }
func (e mockEntry) Info() (fs.FileInfo, error) { return e.info, nil }

// Compile-time check that MockFilesystem implements backup.Filesystem.
var _ backup.Filesystem = (*MockFilesystem)(nil)
