//go:build !windows

package server

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
)

// Listen opens a Unix socket endpoint for the pipe name. The socket is
// world-writable; per-request authorization rides on SO_PEERCRED-style
// mechanisms if ever needed, matching the any-authenticated-local-user
// grant of the named-pipe ACL.
func Listen(pipeName string) (net.Listener, error) {
	path := SocketPath(pipeName)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating socket directory: %w", err)
	}
	// A stale socket from an unclean shutdown blocks bind.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing stale socket: %w", err)
	}

	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listening on socket %s: %w", path, err)
	}
	if err := os.Chmod(path, 0666); err != nil {
		l.Close()
		return nil, fmt.Errorf("setting socket permissions: %w", err)
	}
	return l, nil
}

// SocketPath maps a pipe name to its filesystem location.
func SocketPath(pipeName string) string {
	if dir := os.Getenv("MAXBACKUP_SOCKET_DIR"); dir != "" {
		return filepath.Join(dir, pipeName+".sock")
	}
	return filepath.Join("/run", pipeName+".sock")
}
