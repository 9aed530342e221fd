package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/condkv/pkg/wire"
)

// peer is the server end of a net.Pipe driven by the test.
type peer struct {
	t    *testing.T
	conn net.Conn
	enc  *wire.Encoder
	dec  *wire.Decoder
}

func newPipe(t *testing.T) (*Router, *peer) {
	t.Helper()
	c, s := net.Pipe()
	r := NewRouter(c)
	r.Start()
	p := &peer{t: t, conn: s, enc: wire.NewEncoder(s), dec: wire.NewDecoder(s)}
	t.Cleanup(func() {
		_ = r.Close()
		_ = s.Close()
	})
	return r, p
}

func (p *peer) recv() *wire.Message {
	p.t.Helper()
	m, err := p.dec.Decode()
	if err != nil {
		p.t.Fatalf("peer decode: %v", err)
	}
	return m
}

func (p *peer) reply(req *wire.Message, payload string) {
	p.t.Helper()
	resp := wire.NewResponse(req)
	resp.Success = true
	resp.Payload = payload
	if err := p.enc.Encode(resp); err != nil {
		p.t.Fatalf("peer encode: %v", err)
	}
}

func TestRouter_KindCorrelation(t *testing.T) {
	r, p := newPipe(t)
	ctx := context.Background()

	go func() {
		_ = r.Send(wire.NewRequest(wire.KindGet))
		_ = r.Send(wire.NewRequest(wire.KindPut))
	}()
	get := p.recv()
	put := p.recv()

	// Answer in reverse order; each waiter gets its own kind.
	go func() {
		p.reply(put, "put-reply")
		p.reply(get, "get-reply")
	}()

	m, err := r.AwaitResponse(ctx, wire.KindGet)
	if err != nil {
		t.Fatalf("AwaitResponse(GET): %v", err)
	}
	if m.Payload != "get-reply" {
		t.Errorf("GET got %q", m.Payload)
	}

	m, err = r.AwaitResponse(ctx, wire.KindPut)
	if err != nil {
		t.Fatalf("AwaitResponse(PUT): %v", err)
	}
	if m.Payload != "put-reply" {
		t.Errorf("PUT got %q", m.Payload)
	}
}

func TestRouter_QueueIsFIFO(t *testing.T) {
	r, p := newPipe(t)
	ctx := context.Background()

	go func() {
		for i := 0; i < 3; i++ {
			resp := &wire.Message{Kind: wire.KindResponse, ReplyTo: wire.KindGet, Payload: fmt.Sprint(i)}
			_ = p.enc.Encode(resp)
		}
	}()

	for i := 0; i < 3; i++ {
		m, err := r.AwaitResponse(ctx, wire.KindGet)
		if err != nil {
			t.Fatalf("AwaitResponse: %v", err)
		}
		if m.Payload != fmt.Sprint(i) {
			t.Fatalf("message %d payload = %q", i, m.Payload)
		}
	}
}

func TestRouter_NonResponseQueuedUnderOwnKind(t *testing.T) {
	r, p := newPipe(t)

	go func() {
		_ = p.enc.Encode(&wire.Message{Kind: wire.KindLogout})
	}()

	m, err := r.AwaitResponse(context.Background(), wire.KindLogout)
	if err != nil {
		t.Fatalf("AwaitResponse: %v", err)
	}
	if m.Kind != wire.KindLogout {
		t.Errorf("Kind = %v", m.Kind)
	}
}

func TestRouter_CallCorrelatesBySeq(t *testing.T) {
	r, p := newPipe(t)
	ctx := context.Background()

	const n = 5
	var wg sync.WaitGroup
	results := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := wire.NewRequest(wire.KindGet)
			req.Key = fmt.Sprintf("k%d", i)
			resp, err := r.Call(ctx, req)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = resp.Payload
		}(i)
	}

	reqs := make([]*wire.Message, n)
	for i := range reqs {
		reqs[i] = p.recv()
		if reqs[i].Seq == 0 {
			t.Fatalf("request %d has no seq", i)
		}
	}
	// Answer every call of the same kind in reverse order.
	for i := n - 1; i >= 0; i-- {
		p.reply(reqs[i], "value-of-"+reqs[i].Key)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("call %d: %v", i, errs[i])
		}
		if want := fmt.Sprintf("value-of-k%d", i); results[i] != want {
			t.Errorf("call %d got %q, want %q", i, results[i], want)
		}
	}
}

func TestRouter_AbandonedCallResponseDropped(t *testing.T) {
	r, p := newPipe(t)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := r.Call(ctx, wire.NewRequest(wire.KindGetWhen))
		errc <- err
	}()
	req := p.recv()
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("Call error = %v, want context.Canceled", err)
	}

	// The late reply must not leak into the GETWHEN queue.
	p.reply(req, "late")
	marker := &wire.Message{Kind: wire.KindResponse, ReplyTo: wire.KindGetWhen, Payload: "marker"}
	go func() { _ = p.enc.Encode(marker) }()

	m, err := r.AwaitResponse(context.Background(), wire.KindGetWhen)
	if err != nil {
		t.Fatalf("AwaitResponse: %v", err)
	}
	if m.Payload != "marker" {
		t.Fatalf("got %q, want marker", m.Payload)
	}
}

func TestRouter_FailureBroadcast(t *testing.T) {
	r, p := newPipe(t)

	const waiters = 4
	var wg sync.WaitGroup
	errs := make(chan error, waiters+1)
	kinds := []wire.Kind{wire.KindGet, wire.KindPut, wire.KindGet, wire.KindGetWhen}
	for _, k := range kinds {
		wg.Add(1)
		go func(k wire.Kind) {
			defer wg.Done()
			_, err := r.AwaitResponse(context.Background(), k)
			errs <- err
		}(k)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := r.Call(context.Background(), wire.NewRequest(wire.KindMultiGet))
		errs <- err
	}()
	p.recv() // the MULTIGET call

	time.Sleep(20 * time.Millisecond)
	_ = p.conn.Close()
	wg.Wait()
	close(errs)

	for err := range errs {
		if !errors.Is(err, ErrConnectionFailed) {
			t.Errorf("waiter error = %v, want ErrConnectionFailed", err)
		}
	}

	// Future callers fail immediately.
	if _, err := r.AwaitResponse(context.Background(), wire.KindLogin); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("late AwaitResponse error = %v", err)
	}
	if err := r.Send(wire.NewRequest(wire.KindLogin)); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Send after failure error = %v", err)
	}
	if !errors.Is(r.Err(), ErrConnectionFailed) {
		t.Errorf("Err() = %v", r.Err())
	}
}

func TestRouter_QueuedMessagesSurviveFailure(t *testing.T) {
	r, p := newPipe(t)

	resp := &wire.Message{Kind: wire.KindResponse, ReplyTo: wire.KindGet, Payload: "queued"}
	if err := p.enc.Encode(resp); err != nil {
		t.Fatalf("encode: %v", err)
	}
	_ = p.conn.Close()

	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("receiver did not stop")
	}

	m, err := r.AwaitResponse(context.Background(), wire.KindGet)
	if err != nil {
		t.Fatalf("queued message lost: %v", err)
	}
	if m.Payload != "queued" {
		t.Fatalf("payload = %q", m.Payload)
	}

	if _, err := r.AwaitResponse(context.Background(), wire.KindGet); !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("drained queue error = %v, want ErrConnectionFailed", err)
	}
}

func TestRouter_ContextCancel(t *testing.T) {
	r, _ := newPipe(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.AwaitResponse(ctx, wire.KindGet)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want DeadlineExceeded", err)
	}
	if r.Err() != nil {
		t.Fatalf("cancellation poisoned the router: %v", r.Err())
	}
}

func TestRouter_Close(t *testing.T) {
	r, _ := newPipe(t)

	errc := make(chan error, 1)
	go func() {
		_, err := r.AwaitResponse(context.Background(), wire.KindGet)
		errc <- err
	}()
	time.Sleep(10 * time.Millisecond)

	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := <-errc; !errors.Is(err, ErrClosed) {
		t.Fatalf("waiter error = %v, want ErrClosed", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := r.Call(context.Background(), wire.NewRequest(wire.KindGet)); !errors.Is(err, ErrClosed) {
		t.Fatalf("Call after Close error = %v", err)
	}
}
