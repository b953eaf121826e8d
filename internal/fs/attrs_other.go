//go:build !windows

package fs

import "os"

// ClearHiddenReadOnly ensures the destination is writable. Unix has no
// hidden attribute; read-only is a missing owner-write bit.
func (f *OSFilesystem) ClearHiddenReadOnly(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return mapOSError(err)
	}
	if info.Mode().Perm()&0200 != 0 {
		return nil
	}
	if err := os.Chmod(path, info.Mode().Perm()|0200); err != nil {
		return mapOSError(err)
	}
	return nil
}

// HasSystemAttribute always reports unknown: Unix has no system attribute.
func (*OSFilesystem) HasSystemAttribute(string) (has, known bool) {
	return false, false
}

// CopyTimes propagates the last-write time from src to dst. Creation time
// is not settable on Unix.
func (*OSFilesystem) CopyTimes(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return mapOSError(err)
	}
	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return mapOSError(err)
	}
	return nil
}
