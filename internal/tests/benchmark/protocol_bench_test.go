package benchmark

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/yndnr/condkv/pkg/wire"
)

func BenchmarkEncode(b *testing.B) {
	for _, size := range []int{16, 1024, 64 * 1024} {
		b.Run(sizeLabel(size), func(b *testing.B) {
			m := wire.NewRequest(wire.KindPut)
			m.Key = "some-key"
			m.Payload = "alice"
			m.Data = make([]byte, size)

			enc := wire.NewEncoder(io.Discard)
			b.SetBytes(int64(size))
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := enc.Encode(m); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkDecode(b *testing.B) {
	for _, size := range []int{16, 1024, 64 * 1024} {
		b.Run(sizeLabel(size), func(b *testing.B) {
			m := wire.NewRequest(wire.KindPut)
			m.Key = "some-key"
			m.Data = make([]byte, size)
			frame, err := wire.AppendMessage(nil, m)
			if err != nil {
				b.Fatal(err)
			}

			r := bytes.NewReader(frame)
			dec := wire.NewDecoder(r)
			b.SetBytes(int64(len(frame)))
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				r.Reset(frame)
				if _, err := dec.Decode(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkRoundTrip measures one request through the client router, the
// codec and the dispatcher.
func BenchmarkRoundTrip(b *testing.B) {
	srv, store := newServer(b, 2)
	prefillStore(b, store, 1000)
	cl := loggedInClient(b, srv, "bench")
	ctx := context.Background()

	b.Run("get", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if _, err := cl.Get(ctx, keyName(i%1000)); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("put", func(b *testing.B) {
		value := []byte("value")
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if err := cl.Put(ctx, keyName(i%1000), value); err != nil {
				b.Fatal(err)
			}
		}
	})
}

// BenchmarkRoundTripPipelined issues concurrent requests over one
// connection.
func BenchmarkRoundTripPipelined(b *testing.B) {
	srv, store := newServer(b, 2)
	prefillStore(b, store, 1000)
	cl := loggedInClient(b, srv, "bench")
	ctx := context.Background()

	for _, par := range []int{1, 8, 64} {
		b.Run(fmt.Sprintf("parallelism=%d", par), func(b *testing.B) {
			b.SetParallelism(par)
			b.ReportAllocs()
			b.RunParallel(func(pb *testing.PB) {
				i := 0
				for pb.Next() {
					if _, err := cl.Get(ctx, keyName(i%1000)); err != nil {
						b.Error(err)
						return
					}
					i++
				}
			})
		})
	}
}
