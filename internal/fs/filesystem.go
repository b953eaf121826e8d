// Package fs is the real-filesystem implementation of backup.Filesystem.
package fs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"maxbackup/internal/backup"
)

// OSFilesystem performs actual filesystem operations using the os package.
type OSFilesystem struct{}

// NewOSFilesystem creates a filesystem backed by the real OS.
func NewOSFilesystem() *OSFilesystem {
	return &OSFilesystem{}
}

// Stat returns file info for a path.
func (*OSFilesystem) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// WalkDir walks the file tree rooted at root in lexical order.
func (*OSFilesystem) WalkDir(root string, fn fs.WalkDirFunc) error {
	return filepath.WalkDir(root, fn)
}

// MkdirAll creates a directory and any missing parents.
func (*OSFilesystem) MkdirAll(path string, perm fs.FileMode) error {
	return os.MkdirAll(path, perm)
}

// CopyFile copies src over dst, truncating any existing destination.
// Returns the number of bytes copied.
func (*OSFilesystem) CopyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, mapOSError(err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return 0, mapOSError(err)
	}

	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return n, mapOSError(fmt.Errorf("copying %s: %w", src, err))
	}
	if err := out.Close(); err != nil {
		return n, mapOSError(err)
	}
	return n, nil
}

// Compile-time check that OSFilesystem implements backup.Filesystem.
var _ backup.Filesystem = (*OSFilesystem)(nil)
