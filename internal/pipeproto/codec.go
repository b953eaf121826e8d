package pipeproto

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"maxbackup/internal/backup"
)

// MaxFrameSize is the maximum allowed message body in bytes.
const MaxFrameSize = 8192

// frameHeaderSize is the length prefix: a little-endian uint32 byte count.
const frameHeaderSize = 4

// ErrProtocol is returned for malformed frames: a length prefix outside
// [1, MaxFrameSize] or a body that is not valid JSON for the target type.
var ErrProtocol = errors.New("protocol error")

// ReadMessage reads one length-prefixed JSON message from conn into v.
// It returns io.EOF if the peer closed the stream before the first header
// byte, backup.ErrTimeout if the deadline passes without a full message,
// and ErrProtocol for malformed input. Partial reads are retried until the
// full count is satisfied.
func ReadMessage(conn net.Conn, timeout time.Duration, v any) error {
	// A closed net.Pipe refuses new deadlines; the read below then returns
	// at once with io.EOF (peer closed) or io.ErrClosedPipe (this end closed).
	if err := conn.SetReadDeadline(deadline(timeout)); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		return fmt.Errorf("setting read deadline: %w", err)
	}

	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(conn, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return classify(err, "reading message header")
	}

	length := binary.LittleEndian.Uint32(header[:])
	if length == 0 || length > MaxFrameSize {
		return fmt.Errorf("%w: frame length %d outside [1, %d]", ErrProtocol, length, MaxFrameSize)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(conn, body); err != nil {
		return classify(err, "reading message body")
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: decoding message: %v", ErrProtocol, err)
	}
	return nil
}

// WriteMessage encodes v as JSON and writes it as one length-prefixed frame.
// Encoded messages larger than MaxFrameSize are refused.
func WriteMessage(conn net.Conn, timeout time.Duration, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	if len(body) > MaxFrameSize {
		return fmt.Errorf("%w: encoded message is %d bytes, limit %d", ErrProtocol, len(body), MaxFrameSize)
	}

	if err := conn.SetWriteDeadline(deadline(timeout)); err != nil {
		return fmt.Errorf("setting write deadline: %w", err)
	}

	// Header and body go out in a single write so a frame is never split
	// across a peer-visible boundary.
	buf := make([]byte, frameHeaderSize+len(body))
	binary.LittleEndian.PutUint32(buf[:frameHeaderSize], uint32(len(body)))
	copy(buf[frameHeaderSize:], body)

	if _, err := conn.Write(buf); err != nil {
		return classify(err, "writing message")
	}
	return nil
}

func deadline(timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}

func classify(err error, context string) error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return fmt.Errorf("%s: %w", context, backup.ErrTimeout)
	}
	return fmt.Errorf("%s: %w", context, err)
}
