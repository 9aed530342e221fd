package benchmark

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/yndnr/condkv/internal/core/service"
	"github.com/yndnr/condkv/internal/server/kvserver"
	"github.com/yndnr/condkv/internal/storage/memory"
	"github.com/yndnr/condkv/internal/telemetry/logger"
	"github.com/yndnr/condkv/pkg/client"
)

// KeyCounts are the store sizes benchmarks run against.
var KeyCounts = []int{1000, 10000, 100000}

// fastArgon2 keeps logins cheap where password hashing is not measured.
var fastArgon2 = service.Argon2Params{Time: 1, MemoryKiB: 64, Threads: 1}

func keyName(i int) string {
	return fmt.Sprintf("key-%08d", i)
}

// prefillStore writes count keys with 64-byte values.
func prefillStore(b *testing.B, store *memory.Store, count int) {
	b.Helper()
	value := make([]byte, 64)
	for i := 0; i < count; i++ {
		if err := store.Put(keyName(i), value); err != nil {
			b.Fatalf("Put: %v", err)
		}
	}
}

// newServer returns a protocol server with no listeners; clients reach it
// through net.Pipe.
func newServer(b *testing.B, maxSessions int) (*kvserver.Server, *memory.Store) {
	b.Helper()
	store := memory.New()
	registry := service.NewSessionRegistry(&service.RegistryConfig{
		MaxConcurrentSessions: maxSessions,
		Argon2:                fastArgon2,
	})
	srv := kvserver.New(&kvserver.Config{WriteTimeout: 5 * time.Second}, store, registry, nil, logger.Discard())
	b.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return srv, store
}

// loggedInClient connects to srv over a pipe and logs in as a new user.
func loggedInClient(b *testing.B, srv *kvserver.Server, user string) *client.Client {
	b.Helper()
	c, sc := net.Pipe()
	go srv.HandleConnection(context.Background(), sc)

	cl := client.New(c, client.WithLogger(logger.Discard()))
	b.Cleanup(func() { cl.Close() })

	ctx := context.Background()
	if err := cl.Register(ctx, user, "pw"); err != nil {
		b.Fatalf("Register: %v", err)
	}
	if err := cl.Login(ctx, user, "pw"); err != nil {
		b.Fatalf("Login: %v", err)
	}
	return cl
}

func sizeLabel(size int) string {
	switch {
	case size >= 1024*1024:
		return fmt.Sprintf("%dMB", size/(1024*1024))
	case size >= 1024:
		return fmt.Sprintf("%dKB", size/1024)
	default:
		return fmt.Sprintf("%dB", size)
	}
}
