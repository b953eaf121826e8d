//go:build windows

package fs

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/windows"
)

// ClearHiddenReadOnly removes the hidden and read-only attributes so the
// destination can be overwritten and timestamp-compared.
func (*OSFilesystem) ClearHiddenReadOnly(path string) error {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return fmt.Errorf("encoding path: %w", err)
	}
	attrs, err := windows.GetFileAttributes(p)
	if err != nil {
		return mapOSError(err)
	}
	cleared := attrs &^ (windows.FILE_ATTRIBUTE_HIDDEN | windows.FILE_ATTRIBUTE_READONLY)
	if cleared == attrs {
		return nil
	}
	if cleared == 0 {
		cleared = windows.FILE_ATTRIBUTE_NORMAL
	}
	if err := windows.SetFileAttributes(p, cleared); err != nil {
		return mapOSError(err)
	}
	return nil
}

// HasSystemAttribute reports whether path carries FILE_ATTRIBUTE_SYSTEM.
func (*OSFilesystem) HasSystemAttribute(path string) (has, known bool) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return false, false
	}
	attrs, err := windows.GetFileAttributes(p)
	if err != nil {
		return false, false
	}
	return attrs&windows.FILE_ATTRIBUTE_SYSTEM != 0, true
}

// CopyTimes propagates creation and last-write times from src to dst.
func (*OSFilesystem) CopyTimes(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return mapOSError(err)
	}
	sys, ok := info.Sys().(*windows.Win32FileAttributeData)
	if !ok {
		return os.Chtimes(dst, info.ModTime(), info.ModTime())
	}

	h, err := windows.CreateFile(
		windows.StringToUTF16Ptr(dst),
		windows.FILE_WRITE_ATTRIBUTES,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_ATTRIBUTE_NORMAL,
		0,
	)
	if err != nil {
		return mapOSError(err)
	}
	defer windows.CloseHandle(h)

	write := windows.NsecToFiletime(info.ModTime().UnixNano())
	access := windows.NsecToFiletime(time.Now().UnixNano())
	if err := windows.SetFileTime(h, &sys.CreationTime, &access, &write); err != nil {
		return mapOSError(err)
	}
	return nil
}
