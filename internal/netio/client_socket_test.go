package netio

import (
	"bytes"
	"errors"
	"testing"

	"golang.org/x/sys/unix"
)

func socketPair(t *testing.T) (a, b int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestSendRecvRoundTrip(t *testing.T) {
	a, b := socketPair(t)

	payload := bytes.Repeat([]byte("hello world "), 100) // force multiple 512B chunks
	if err := Send(a, payload); err != nil {
		t.Fatalf("Send: %v", err)
	}

	var got []byte
	got, err := Recv(b, got)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("Recv returned %d bytes, want %d matching Send", len(got), len(payload))
	}
}

func TestRecvDetectsHalfClose(t *testing.T) {
	a, b := socketPair(t)
	unix.Close(a)

	_, err := Recv(b, nil)
	if !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("Recv err = %v, want ErrConnectionClosed", err)
	}
}

func TestRecvAppendsToExistingBuffer(t *testing.T) {
	a, b := socketPair(t)
	if err := Send(a, []byte("world")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	got, err := Recv(b, []byte("hello "))
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if string(got) != "hello world" {
		t.Fatalf("got %q, want %q", got, "hello world")
	}
}
