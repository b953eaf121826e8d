package backup

import (
	"io/fs"
)

// Filesystem provides an interface for the filesystem operations the backup
// engine performs. It abstracts file access to enable testing without
// touching the real filesystem.
type Filesystem interface {
	// Stat returns file info for a path.
	Stat(path string) (fs.FileInfo, error)

	// WalkDir walks the file tree rooted at root, calling fn for each file
	// or directory, in lexical order.
	WalkDir(root string, fn fs.WalkDirFunc) error

	// MkdirAll creates a directory and any missing parents.
	MkdirAll(path string, perm fs.FileMode) error

	// CopyFile copies src over dst, creating or truncating dst.
	// Returns the number of bytes copied.
	CopyFile(src, dst string) (int64, error)

	// CopyTimes propagates creation and last-write times from src to dst.
	// Creation time is only representable on some platforms; implementations
	// propagate what the platform supports.
	CopyTimes(src, dst string) error

	// ClearHiddenReadOnly removes the hidden and read-only attributes from
	// path, where the platform has such attributes.
	ClearHiddenReadOnly(path string) error

	// HasSystemAttribute reports whether path carries the OS "system"
	// attribute. known is false when the platform or file does not expose
	// the attribute.
	HasSystemAttribute(path string) (has, known bool)
}
