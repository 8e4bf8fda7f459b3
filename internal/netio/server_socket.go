// Package netio implements the server socket, client socket, and client
// registry from spec.md §4.2/§4.3: raw non-blocking fds driven directly
// by golang.org/x/sys/unix, since the reactor operates on fds rather than
// net.Conn.
package netio

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// ServerSocket is the passive listening endpoint.
type ServerSocket struct {
	fd int
}

// Bind resolves a stream endpoint on port, family-agnostic per spec.md
// §4.2 — mirroring the original's getaddrinfo(AF_UNSPEC) and binding
// whichever family resolves. It tries a dual-stack IPv6 wildcard bind
// first (IPV6_V6ONLY disabled, so IPv4 clients connect via their
// IPv4-mapped address too), then falls back to plain IPv4 for hosts
// without IPv6, so the server isn't IPv4-only.
func Bind(port int) (*ServerSocket, error) {
	if s, err := bindFamily(unix.AF_INET6, port); err == nil {
		return s, nil
	}
	return bindFamily(unix.AF_INET, port)
}

func bindFamily(family, port int) (*ServerSocket, error) {
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("netio: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("netio: setsockopt SO_REUSEADDR: %w", err)
	}

	var addr unix.Sockaddr
	if family == unix.AF_INET6 {
		if err := unix.SetsockoptInt(fd, unix.SOL_IPV6, unix.IPV6_V6ONLY, 0); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("netio: setsockopt IPV6_V6ONLY: %w", err)
		}
		addr = &unix.SockaddrInet6{Port: port}
	} else {
		addr = &unix.SockaddrInet4{Port: port}
	}

	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("netio: bind port %d: %w", port, err)
	}
	return &ServerSocket{fd: fd}, nil
}

// Listen marks the socket passive with the OS maximum backlog.
func (s *ServerSocket) Listen() error {
	if err := unix.Listen(s.fd, unix.SOMAXCONN); err != nil {
		return fmt.Errorf("netio: listen: %w", err)
	}
	return nil
}

// FD returns the listening fd for reactor registration.
func (s *ServerSocket) FD() int { return s.fd }

// Port reports the bound port, useful after Bind(0) let the OS choose
// an ephemeral one (as tests do).
func (s *ServerSocket) Port() (int, error) {
	sa, err := unix.Getsockname(s.fd)
	if err != nil {
		return 0, fmt.Errorf("netio: getsockname: %w", err)
	}
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return a.Port, nil
	case *unix.SockaddrInet6:
		return a.Port, nil
	default:
		return 0, fmt.Errorf("netio: unexpected sockaddr type %T", sa)
	}
}

// AcceptAll drains the accept queue until EAGAIN, handing each new
// non-blocking, close-on-exec fd to accept. This is the accept4-style
// loop spec.md §4.2 describes for the reactor's accept callback.
func (s *ServerSocket) AcceptAll(accept func(fd int)) error {
	for {
		fd, _, err := unix.Accept4(s.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if err == unix.EAGAIN {
				return nil
			}
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("netio: accept4: %w", err)
		}
		accept(fd)
	}
}

// Close shuts down the listening socket.
func (s *ServerSocket) Close() error {
	return unix.Close(s.fd)
}
