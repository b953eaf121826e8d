//go:build windows

package main

import (
	"net"
	"time"

	"github.com/Microsoft/go-winio"
)

func dial(pipeName string, timeout time.Duration) (net.Conn, error) {
	return winio.DialPipe(`\\.\pipe\`+pipeName, &timeout)
}
