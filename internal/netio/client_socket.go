package netio

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// ErrConnectionClosed is returned by Recv on a half-close (zero-byte
// read), per spec.md §4.3.
var ErrConnectionClosed = errors.New("netio: connection closed")

const recvChunkSize = 512

// Recv drains the edge-triggered read-readiness of fd in 512-byte chunks
// until EAGAIN, appending each chunk to into. A zero-byte read mid-drain
// is a half-close and returns ErrConnectionClosed immediately — any bytes
// already appended to into are still valid and returned alongside it.
func Recv(fd int, into []byte) ([]byte, error) {
	buf := make([]byte, recvChunkSize)
	for {
		n, err := unix.Read(fd, buf)
		switch {
		case err == nil && n == 0:
			return into, ErrConnectionClosed
		case err == nil:
			into = append(into, buf[:n]...)
		case err == unix.EAGAIN:
			return into, nil
		case err == unix.EINTR:
			continue
		default:
			return into, fmt.Errorf("netio: recv: %w", err)
		}
	}
}

// CloseFD closes a raw client fd, as used when the server drops a
// connection after a socket or half-close error.
func CloseFD(fd int) error {
	return unix.Close(fd)
}

// Send writes the full buffer to fd, looping only over EINTR. Any other
// failure — including EAGAIN on this non-blocking socket — fails the
// send immediately per spec.md §4.3's "any error fails with
// socket_error"; the caller drops the connection rather than spinning on
// a stalled client.
func Send(fd int, data []byte) error {
	for len(data) > 0 {
		n, err := unix.Write(fd, data)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("netio: send: %w", err)
		}
		data = data[n:]
	}
	return nil
}
