//go:build !windows

package main

import (
	"net"
	"time"

	"maxbackup/internal/server"
)

func dial(pipeName string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("unix", server.SocketPath(pipeName), timeout)
}
