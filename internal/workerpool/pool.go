// Package workerpool runs the fixed-size request-worker pool and the
// single response writer from spec.md §4.4/§4.8: N request workers drain
// the request queue and push encoded replies to the response queue; one
// writer drains that queue to client sockets. The Start/Stop/graceful
// shutdown shape is adapted from the teacher's jobs.Runtime and
// sse.Broker (stopCh/WaitGroup), generalized to sync.Cond-backed queues
// instead of Asynq/channels.
package workerpool

import (
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/kbarnes/sqlited/internal/queue"
	"github.com/kbarnes/sqlited/internal/session"
)

// Request is one decoded request awaiting a handler.
type Request struct {
	ClientID session.ClientID
	Payload  []byte
}

// Response is one encoded reply awaiting delivery to its client.
type Response struct {
	ClientID session.ClientID
	Data     []byte
}

// Handler processes one request and produces its encoded reply.
type Handler func(Request) Response

// SendFunc delivers data to clientID's socket.
type SendFunc func(clientID session.ClientID, data []byte) error

// DisconnectFunc is invoked when SendFunc fails, so the caller can drop
// the connection and clean up its session, per spec.md §4.4's "on
// socket_error, drop the connection".
type DisconnectFunc func(clientID session.ClientID)

// Pool owns the request-worker fleet and the response writer.
type Pool struct {
	requests   *queue.Queue[Request]
	responses  *queue.Queue[Response]
	handler    Handler
	send       SendFunc
	disconnect DisconnectFunc
	n          int
	log        *log.Logger

	stopping atomic.Bool
	wg       sync.WaitGroup
}

// New builds a pool of n request workers plus one response writer.
func New(n int, handler Handler, send SendFunc, disconnect DisconnectFunc, logger *log.Logger) *Pool {
	return &Pool{
		requests:   queue.New[Request](),
		responses:  queue.New[Response](),
		handler:    handler,
		send:       send,
		disconnect: disconnect,
		n:          n,
		log:        logger,
	}
}

// Submit enqueues a request for a worker to pick up.
func (p *Pool) Submit(req Request) {
	p.requests.Push(req)
}

// Start launches the N request workers and the response writer.
func (p *Pool) Start() {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go p.runWorker()
	}
	p.wg.Add(1)
	go p.runResponseWriter()
}

func (p *Pool) runWorker() {
	defer p.wg.Done()
	for {
		req, ok := p.requests.WaitPop()
		if !ok {
			return
		}
		resp := p.handler(req)
		p.responses.Push(resp)
	}
}

func (p *Pool) runResponseWriter() {
	defer p.wg.Done()
	for {
		resp, ok := p.responses.WaitPop()
		if !ok {
			return
		}
		if err := p.send(resp.ClientID, resp.Data); err != nil {
			if p.log != nil {
				p.log.Debug("response send failed, dropping connection", "client", resp.ClientID, "err", err)
			}
			p.disconnect(resp.ClientID)
		}
	}
}

// Stop sets the stopping flag the worker and writer loops observe via
// queue.Close, then waits for every goroutine to exit.
func (p *Pool) Stop() {
	p.stopping.Store(true)
	p.requests.Close()
	p.responses.Close()
	p.wg.Wait()
}

// Stopping reports whether Stop has been called.
func (p *Pool) Stopping() bool {
	return p.stopping.Load()
}
