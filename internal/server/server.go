// Package server wires the reactor, socket layer, queues, worker pool,
// and dispatcher into the Start/Wait/Stop lifecycle of spec.md §4.8.
package server

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"

	"github.com/kbarnes/sqlited/internal/config"
	"github.com/kbarnes/sqlited/internal/dispatch"
	"github.com/kbarnes/sqlited/internal/netio"
	"github.com/kbarnes/sqlited/internal/reactor"
	"github.com/kbarnes/sqlited/internal/session"
	"github.com/kbarnes/sqlited/internal/wire"
	"github.com/kbarnes/sqlited/internal/workerpool"
	"github.com/kbarnes/sqlited/internal/writelock"
)

// noFD marks a not-yet-opened (or already-closed) wake-pipe fd; 0 is a
// valid fd (stdin) so it can't serve as the sentinel.
const noFD = -1

// Server owns every long-lived component and their lifecycle.
type Server struct {
	cfg *config.Config
	log *log.Logger

	listener *netio.ServerSocket
	react    *reactor.Reactor
	clients  *netio.Registry
	sessions *session.Registry
	writers  *writelock.Controller
	dispatch *dispatch.Dispatcher
	pool     *workerpool.Pool

	// wakeR/wakeW are a self-pipe registered with the reactor so Stop can
	// interrupt a react.Wait() blocked indefinitely in epoll_wait.
	wakeR, wakeW int

	stopping atomic.Bool
	done     chan error
	waitOnce sync.Once
	waitErr  error
}

// New constructs a server from cfg without binding or starting anything.
func New(cfg *config.Config, logger *log.Logger) *Server {
	writers := writelock.New()
	sessions := session.NewRegistry(writers)
	s := &Server{
		cfg:      cfg,
		log:      logger,
		clients:  netio.NewRegistry(),
		sessions: sessions,
		writers:  writers,
		dispatch: dispatch.New(sessions, writers, cfg.Session, logger),
		wakeR:    noFD,
		wakeW:    noFD,
		done:     make(chan error, 1),
	}
	return s
}

// Start binds and listens per spec.md §4.2, then submits the
// reactor loop, request workers, and response writer, per §4.8.
func (s *Server) Start(ctx context.Context) error {
	listener, err := netio.Bind(s.cfg.Server.Port)
	if err != nil {
		return fmt.Errorf("server: bind: %w", err)
	}
	if err := listener.Listen(); err != nil {
		_ = listener.Close()
		return fmt.Errorf("server: listen: %w", err)
	}
	s.listener = listener

	react, err := reactor.New()
	if err != nil {
		_ = listener.Close()
		return fmt.Errorf("server: reactor: %w", err)
	}
	s.react = react

	s.pool = workerpool.New(s.cfg.Server.RequestWorkers, s.handleRequest, s.sendToClient, s.disconnectClient, s.log)
	s.pool.Start()

	if err := s.react.Add(s.listener.FD(), s.onListenerReady); err != nil {
		return fmt.Errorf("server: register listener: %w", err)
	}

	wakeR, wakeW, err := newWakePipe()
	if err != nil {
		return fmt.Errorf("server: wake pipe: %w", err)
	}
	s.wakeR, s.wakeW = wakeR, wakeW
	if err := s.react.Add(s.wakeR, s.onWakeReadable); err != nil {
		return fmt.Errorf("server: register wake pipe: %w", err)
	}

	go s.run(ctx)
	return nil
}

// newWakePipe opens the non-blocking self-pipe used to interrupt a
// blocked epoll_wait from Stop.
func newWakePipe() (int, int, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return 0, 0, fmt.Errorf("pipe2: %w", err)
	}
	return fds[0], fds[1], nil
}

// onWakeReadable drains the wake pipe; its only purpose is to make
// react.Wait() return so run() can observe the stopping flag.
func (s *Server) onWakeReadable(fd int) {
	var buf [64]byte
	for {
		if _, err := unix.Read(fd, buf[:]); err != nil {
			return
		}
	}
}

func (s *Server) run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	for {
		if err := s.react.Wait(); err != nil {
			if s.stopping.Load() {
				s.done <- nil
			} else {
				s.done <- err
			}
			return
		}
		if s.stopping.Load() {
			s.done <- nil
			return
		}
	}
}

// Wait blocks until the reactor loop exits, returning its error (nil on
// a clean stop). Later calls return the same result without blocking.
func (s *Server) Wait() error {
	s.waitOnce.Do(func() { s.waitErr = <-s.done })
	return s.waitErr
}

// Stop sets the stopping flag, joins the worker pool, wakes a
// react.Wait() that may be blocked indefinitely in epoll_wait, and
// releases OS resources. Safe to call more than once.
func (s *Server) Stop() {
	if !s.stopping.CompareAndSwap(false, true) {
		return
	}
	if s.pool != nil {
		s.pool.Stop()
	}
	if s.wakeW != noFD {
		_, _ = unix.Write(s.wakeW, []byte{0})
	}
	if s.react != nil {
		_ = s.react.Close()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.wakeW != noFD {
		_ = unix.Close(s.wakeW)
		s.wakeW = noFD
	}
	if s.wakeR != noFD {
		_ = unix.Close(s.wakeR)
		s.wakeR = noFD
	}
}

func (s *Server) onListenerReady(int) {
	_ = s.listener.AcceptAll(func(fd int) {
		s.clients.Insert(fd)
		if err := s.react.Add(fd, s.onClientReadable); err != nil && s.log != nil {
			s.log.Warn("failed to register client fd", "fd", fd, "err", err)
		}
	})
}

func (s *Server) onClientReadable(fd int) {
	// One edge-triggered drain is one request, per spec.md §4.3's framing
	// note — no partial buffer persists across calls.
	buf, err := netio.Recv(fd, nil)
	if err != nil {
		s.dropClient(fd)
		return
	}
	if len(buf) == 0 {
		return
	}
	s.pool.Submit(workerpool.Request{ClientID: session.ClientID(fd), Payload: buf})
}

func (s *Server) handleRequest(req workerpool.Request) workerpool.Response {
	reply := s.dispatch.Dispatch(context.Background(), req.ClientID, req.Payload)
	data, err := reply.Encode()
	if err != nil {
		data, _ = wire.Encode(map[string]interface{}{"status": int64(1), "message": "encode failure"})
	}
	return workerpool.Response{ClientID: req.ClientID, Data: data}
}

func (s *Server) sendToClient(id session.ClientID, data []byte) error {
	return netio.Send(int(id), data)
}

func (s *Server) disconnectClient(id session.ClientID) {
	s.dropClient(int(id))
}

func (s *Server) dropClient(fd int) {
	s.react.Remove(fd)
	s.clients.Erase(fd)
	s.sessions.Remove(session.ClientID(fd))
	_ = netio.CloseFD(fd)
}
