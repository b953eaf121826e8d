//go:build windows

package server

import (
	"fmt"
	"net"

	"github.com/Microsoft/go-winio"
)

// pipeSecurity grants authenticated users read/write, and administrators
// and the service account full control.
const pipeSecurity = "D:(A;;GRGW;;;AU)(A;;FA;;;BA)(A;;FA;;;SY)"

// Listen opens the named pipe endpoint.
func Listen(pipeName string) (net.Listener, error) {
	l, err := winio.ListenPipe(`\\.\pipe\`+pipeName, &winio.PipeConfig{
		SecurityDescriptor: pipeSecurity,
	})
	if err != nil {
		return nil, fmt.Errorf("listening on pipe %s: %w", pipeName, err)
	}
	return l, nil
}
