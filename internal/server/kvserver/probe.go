package kvserver

import (
	"context"
	"errors"
	"net"
	"time"
)

// errPeerGone is the cancel cause when the probe sees the peer go away.
var errPeerGone = errors.New("peer disconnected")

// aLongTimeAgo is a read deadline in the past; it fails a pending read at once.
var aLongTimeAgo = time.Unix(1, 0)

// watch returns a context that is cancelled if the peer disconnects while
// a blocking operation runs, and a stop function that must be called
// before the connection is read again.
//
// The probe peeks one byte beyond what is already buffered, so requests
// the client pipelines behind the blocking one are left in place. It gives
// up once the read buffer is full.
func (c *Conn) watch(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			n := c.br.Buffered() + 1
			if n > c.br.Size() {
				return
			}
			if _, err := c.br.Peek(n); err != nil {
				var netErr net.Error
				if errors.As(err, &netErr) && netErr.Timeout() {
					return
				}
				cancel(errPeerGone)
				return
			}
		}
	}()

	stop := func() {
		_ = c.netConn.SetReadDeadline(aLongTimeAgo)
		<-done
		_ = c.netConn.SetReadDeadline(time.Time{})
		cancel(nil)
	}
	return ctx, stop
}
