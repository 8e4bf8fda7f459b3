package reactor

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestAddWaitFiresCallbackOnWritableReadEnd(t *testing.T) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK); err != nil {
		t.Fatalf("pipe2: %v", err)
	}
	readFD, writeFD := fds[0], fds[1]
	defer unix.Close(readFD)
	defer unix.Close(writeFD)

	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	fired := make(chan int, 1)
	if err := r.Add(readFD, func(fd int) { fired <- fd }); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if _, err := unix.Write(writeFD, []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- r.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Wait: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait never returned after readiness")
	}

	select {
	case fd := <-fired:
		if fd != readFD {
			t.Errorf("callback fd = %d, want %d", fd, readFD)
		}
	default:
		t.Fatal("callback never fired")
	}
}

func TestRemoveStopsDelivery(t *testing.T) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK); err != nil {
		t.Fatalf("pipe2: %v", err)
	}
	readFD, writeFD := fds[0], fds[1]
	defer unix.Close(readFD)
	defer unix.Close(writeFD)

	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	if err := r.Add(readFD, func(int) {}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	r.Remove(readFD)

	if _, ok := r.callbacks[readFD]; ok {
		t.Fatal("expected callback removed from table")
	}
}
