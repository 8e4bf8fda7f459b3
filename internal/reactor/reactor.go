// Package reactor implements the single-threaded, edge-triggered
// readiness loop from spec.md §4.1: add(fd, callback), remove(fd), wait().
// Built directly on golang.org/x/sys/unix's epoll syscalls, since the
// pack's own poller packages (e.g. fast-server's core/poller) are not
// importable standalone files rather than a fetchable module.
package reactor

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Callback handles a readiness event for one fd. It MUST be non-blocking
// — a read-drain or accept-drain followed by an enqueue, per spec.md §4.1.
type Callback func(fd int)

// Reactor owns one epoll instance and the fd→callback table.
type Reactor struct {
	epfd int

	mu        sync.Mutex
	callbacks map[int]Callback
}

// New creates an epoll instance.
func New() (*Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll_create1: %w", err)
	}
	return &Reactor{epfd: epfd, callbacks: make(map[int]Callback)}, nil
}

// Add registers fd for edge-triggered read-readiness and records its
// callback.
func (r *Reactor) Add(fd int, cb Callback) error {
	r.mu.Lock()
	r.callbacks[fd] = cb
	r.mu.Unlock()

	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLET, Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		r.mu.Lock()
		delete(r.callbacks, fd)
		r.mu.Unlock()
		return fmt.Errorf("reactor: epoll_ctl add %d: %w", fd, err)
	}
	return nil
}

// Remove deregisters fd. It is not an error to remove an fd that was
// never added or was already closed out from under epoll.
func (r *Reactor) Remove(fd int) {
	r.mu.Lock()
	delete(r.callbacks, fd)
	r.mu.Unlock()
	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// Wait blocks for one round of readiness events (up to 128 at once) and
// fans them out to callbacks. Error and hangup events still invoke the
// callback — the socket layer treats a subsequent zero-byte read as the
// close signal, per spec.md §4.3. Wait returns an error only on an
// unrecoverable OS failure (EBADF); EINTR is retried transparently.
func (r *Reactor) Wait() error {
	var events [128]unix.EpollEvent
	for {
		n, err := unix.EpollWait(r.epfd, events[:], -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("reactor: epoll_wait: %w", err)
		}
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			r.mu.Lock()
			cb, ok := r.callbacks[fd]
			r.mu.Unlock()
			if ok {
				cb(fd)
			}
		}
		return nil
	}
}

// Close releases the epoll fd.
func (r *Reactor) Close() error {
	return unix.Close(r.epfd)
}
