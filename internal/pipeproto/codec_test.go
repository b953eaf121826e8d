package pipeproto_test

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"maxbackup/internal/backup"
	"maxbackup/internal/pipeproto"
)

const testTimeout = 2 * time.Second

func TestReadWriteMessage_RoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	want := pipeproto.Request{
		Action:     "REGISTER",
		SID:        "S-1-5-21-1111",
		ConfigPath: "/home/alice/backup.json",
	}

	done := make(chan error, 1)
	go func() {
		done <- pipeproto.WriteMessage(client, testTimeout, want)
	}()

	var got pipeproto.Request
	if err := pipeproto.ReadMessage(server, testTimeout, &got); err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	if got != want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestReadMessage_CaseInsensitiveFields(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go writeRawFrame(t, client, []byte(`{"ACTION":"status","Sid":"S-1-5-21-2","CONFIGPATH":"/x"}`))

	var got pipeproto.Request
	if err := pipeproto.ReadMessage(server, testTimeout, &got); err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if got.Action != "status" || got.SID != "S-1-5-21-2" || got.ConfigPath != "/x" {
		t.Errorf("got %+v", got)
	}
}

func TestReadMessage_LengthBounds(t *testing.T) {
	tests := []struct {
		name   string
		length uint32
	}{
		{"zero length", 0},
		{"over limit", pipeproto.MaxFrameSize + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := net.Pipe()
			defer client.Close()
			defer server.Close()

			go func() {
				var header [4]byte
				binary.LittleEndian.PutUint32(header[:], tt.length)
				client.Write(header[:])
			}()

			var got pipeproto.Request
			err := pipeproto.ReadMessage(server, testTimeout, &got)
			if !errors.Is(err, pipeproto.ErrProtocol) {
				t.Errorf("ReadMessage() error = %v, want ErrProtocol", err)
			}
		})
	}
}

func TestReadMessage_MaxSizePayloadAccepted(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	// Build a JSON document of exactly MaxFrameSize bytes.
	prefix := `{"message":"`
	suffix := `"}`
	filler := strings.Repeat("x", pipeproto.MaxFrameSize-len(prefix)-len(suffix))
	body := []byte(prefix + filler + suffix)
	if len(body) != pipeproto.MaxFrameSize {
		t.Fatalf("test payload is %d bytes, want %d", len(body), pipeproto.MaxFrameSize)
	}

	go writeRawFrame(t, client, body)

	var got pipeproto.Response
	if err := pipeproto.ReadMessage(server, testTimeout, &got); err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if len(got.Message) != len(filler) {
		t.Errorf("message length = %d, want %d", len(got.Message), len(filler))
	}
}

func TestWriteMessage_RefusesOversize(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	resp := pipeproto.Response{Message: strings.Repeat("x", pipeproto.MaxFrameSize)}
	err := pipeproto.WriteMessage(client, testTimeout, resp)
	if !errors.Is(err, pipeproto.ErrProtocol) {
		t.Errorf("WriteMessage() error = %v, want ErrProtocol", err)
	}
}

func TestReadMessage_PeerClosed(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	client.Close()

	var got pipeproto.Request
	err := pipeproto.ReadMessage(server, testTimeout, &got)
	if !errors.Is(err, io.EOF) {
		t.Errorf("ReadMessage() error = %v, want io.EOF", err)
	}
}

func TestReadMessage_Timeout(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	var got pipeproto.Request
	err := pipeproto.ReadMessage(server, 50*time.Millisecond, &got)
	if !errors.Is(err, backup.ErrTimeout) {
		t.Errorf("ReadMessage() error = %v, want ErrTimeout", err)
	}
}

func TestReadMessage_PartialWrites(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	body := []byte(`{"action":"STATUS","sid":"S-1"}`)
	go func() {
		var header [4]byte
		binary.LittleEndian.PutUint32(header[:], uint32(len(body)))
		// Dribble the frame out a few bytes at a time.
		frame := append(header[:], body...)
		for i := 0; i < len(frame); i += 3 {
			end := min(i+3, len(frame))
			client.Write(frame[i:end])
			time.Sleep(time.Millisecond)
		}
	}()

	var got pipeproto.Request
	if err := pipeproto.ReadMessage(server, testTimeout, &got); err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if got.Action != "STATUS" || got.SID != "S-1" {
		t.Errorf("got %+v", got)
	}
}

func TestNormalizeAction(t *testing.T) {
	if got := pipeproto.NormalizeAction(" register "); got != pipeproto.ActionRegister {
		t.Errorf("NormalizeAction() = %q", got)
	}
}

func writeRawFrame(t *testing.T, conn net.Conn, body []byte) {
	t.Helper()
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(body)))
	if _, err := conn.Write(append(header[:], body...)); err != nil {
		t.Errorf("writing raw frame: %v", err)
	}
}
