//go:build !windows

package server_test

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"maxbackup/internal/backup"
	"maxbackup/internal/pipeproto"
	"maxbackup/internal/server"
)

func TestServer_ServeOverSocket(t *testing.T) {
	t.Setenv("MAXBACKUP_SOCKET_DIR", t.TempDir())

	f := newFixture(t)

	listener, err := server.Listen("MaxBackupPipe")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	srv := server.New(listener, f.sup, nil, backup.Discard, testTimeout)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx) }()

	// Several concurrent clients; each gets its own complete conversation.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, err := net.Dial("unix", server.SocketPath("MaxBackupPipe"))
			if err != nil {
				t.Errorf("dial: %v", err)
				return
			}
			defer conn.Close()

			if err := pipeproto.WriteMessage(conn, testTimeout, pipeproto.Request{Action: "STATUS", SID: "S-0"}); err != nil {
				t.Errorf("write: %v", err)
				return
			}
			var resp pipeproto.Response
			if err := pipeproto.ReadMessage(conn, testTimeout, &resp); err != nil {
				t.Errorf("read: %v", err)
				return
			}
			if !resp.IsFinal || !strings.Contains(resp.Message, "Not registered") {
				t.Errorf("response = %+v", resp)
			}
		}()
	}
	wg.Wait()

	srv.Close()
	select {
	case err := <-served:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(testTimeout):
		t.Error("Serve did not return after Close")
	}
}
