package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/yndnr/condkv/pkg/wire"
)

var (
	// ErrConnectionFailed is returned to every waiter once the receive side
	// of the connection has failed and no queued message is left for it.
	ErrConnectionFailed = errors.New("condkv: connection failed")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("condkv: router closed")
)

// Router turns one bidirectional message stream into call/response
// semantics. A background goroutine decodes every incoming message and
// files it either under the call that is waiting for its sequence number
// or in a FIFO queue keyed by the call kind it answers.
type Router struct {
	conn   io.ReadWriteCloser
	enc    *wire.Encoder
	dec    *wire.Decoder
	logger *slog.Logger

	mu      sync.Mutex
	queues  map[wire.Kind][]*wire.Message
	waits   map[wire.Kind]chan struct{}
	pending map[uint32]chan *wire.Message // nil value: abandoned call
	nextSeq uint32
	err     error

	started atomic.Bool
	closing atomic.Bool
	done    chan struct{}
}

// Option configures a Router or Client.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for receive-side diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewRouter creates a Router over conn. Call Start to begin receiving.
func NewRouter(conn io.ReadWriteCloser, opts ...Option) *Router {
	o := buildOptions(opts)
	return &Router{
		conn:    conn,
		enc:     wire.NewEncoder(conn),
		dec:     wire.NewDecoder(conn),
		logger:  o.logger,
		queues:  make(map[wire.Kind][]*wire.Message),
		waits:   make(map[wire.Kind]chan struct{}),
		pending: make(map[uint32]chan *wire.Message),
		done:    make(chan struct{}),
	}
}

// Start launches the receive goroutine. Calling it more than once has no
// effect.
func (r *Router) Start() {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	go r.receiveLoop()
}

func (r *Router) receiveLoop() {
	defer close(r.done)
	for {
		m, err := r.dec.Decode()
		if err != nil {
			if r.closing.Load() {
				r.fail(ErrClosed)
			} else {
				r.fail(fmt.Errorf("%w: %w", ErrConnectionFailed, err))
			}
			return
		}
		r.route(m)
	}
}

// route files an incoming message.
func (r *Router) route(m *wire.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m.Kind == wire.KindResponse && m.Seq != 0 {
		if slot, ok := r.pending[m.Seq]; ok {
			delete(r.pending, m.Seq)
			if slot != nil {
				slot <- m
			}
			return
		}
	}

	kind := m.CallKind()
	r.queues[kind] = append(r.queues[kind], m)
	if ch, ok := r.waits[kind]; ok {
		close(ch)
		delete(r.waits, kind)
	}
}

// fail records the sticky error and wakes every waiter.
func (r *Router) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return
	}
	r.err = err
	for kind, ch := range r.waits {
		close(ch)
		delete(r.waits, kind)
	}
	for seq, slot := range r.pending {
		if slot != nil {
			close(slot)
		}
		delete(r.pending, seq)
	}
	if !errors.Is(err, ErrClosed) {
		r.logger.Debug("router receive failed", "error", err)
	}
}

// Send writes m to the connection as is.
func (r *Router) Send(m *wire.Message) error {
	if err := r.Err(); err != nil {
		return err
	}
	if err := r.enc.Encode(m); err != nil {
		return fmt.Errorf("send %s: %w", m.Kind, err)
	}
	return nil
}

// AwaitResponse blocks until a message for kind is available and returns
// the oldest one. Responses are filed under the kind they answer.
//
// Messages queued before a failure are still delivered; after that every
// caller gets an error wrapping ErrConnectionFailed (or ErrClosed).
func (r *Router) AwaitResponse(ctx context.Context, kind wire.Kind) (*wire.Message, error) {
	r.mu.Lock()
	for {
		if q := r.queues[kind]; len(q) > 0 {
			m := q[0]
			q[0] = nil
			if len(q) == 1 {
				delete(r.queues, kind)
			} else {
				r.queues[kind] = q[1:]
			}
			r.mu.Unlock()
			return m, nil
		}
		if r.err != nil {
			err := r.err
			r.mu.Unlock()
			return nil, err
		}

		ch, ok := r.waits[kind]
		if !ok {
			ch = make(chan struct{})
			r.waits[kind] = ch
		}
		r.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		r.mu.Lock()
	}
}

// Call sends req with a fresh sequence number and waits for the response
// carrying it. Unlike Send/AwaitResponse, any number of calls of the same
// kind may be outstanding at once.
func (r *Router) Call(ctx context.Context, req *wire.Message) (*wire.Message, error) {
	r.mu.Lock()
	if r.err != nil {
		err := r.err
		r.mu.Unlock()
		return nil, err
	}
	r.nextSeq++
	if r.nextSeq == 0 {
		r.nextSeq = 1
	}
	seq := r.nextSeq
	slot := make(chan *wire.Message, 1)
	r.pending[seq] = slot
	r.mu.Unlock()

	m := *req
	m.Seq = seq
	if m.Kind != wire.KindResponse {
		m.ReplyTo = m.Kind
	}
	if err := r.Send(&m); err != nil {
		r.abandon(seq, true)
		return nil, err
	}

	select {
	case resp, ok := <-slot:
		if !ok {
			return nil, r.Err()
		}
		return resp, nil
	case <-ctx.Done():
		r.abandon(seq, false)
		return nil, ctx.Err()
	}
}

// abandon forgets a call. Unless the request never left, the entry stays
// as a tombstone so the late response is dropped instead of queued.
func (r *Router) abandon(seq uint32, unsent bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pending[seq]; !ok {
		return
	}
	if unsent {
		delete(r.pending, seq)
		return
	}
	r.pending[seq] = nil
}

// Err returns the sticky receive failure, or nil while healthy.
func (r *Router) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Done is closed when the receive goroutine exits.
func (r *Router) Done() <-chan struct{} {
	return r.done
}

// Close stops the receiver, fails every waiter with ErrClosed and closes
// the connection.
func (r *Router) Close() error {
	if !r.closing.CompareAndSwap(false, true) {
		return nil
	}
	err := r.conn.Close()
	if r.started.Load() {
		<-r.done
	}
	r.fail(ErrClosed)
	return err
}
