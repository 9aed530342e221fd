package command

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/condkv/internal/core/service"
	"github.com/yndnr/condkv/internal/server/kvserver"
	"github.com/yndnr/condkv/internal/storage/memory"
	"github.com/yndnr/condkv/internal/telemetry/logger"
)

// startServer runs a protocol server on a loopback port with the seeded
// accounts alice/secret and bob/hunter2.
func startServer(t *testing.T) string {
	t.Helper()

	registry := service.NewSessionRegistry(&service.RegistryConfig{
		MaxConcurrentSessions: 2,
		Argon2:                service.Argon2Params{Time: 1, MemoryKiB: 64, Threads: 1},
	})
	for user, password := range map[string]string{"alice": "secret", "bob": "hunter2"} {
		if err := registry.CreateAccount(context.Background(), user, password); err != nil {
			t.Fatalf("CreateAccount: %v", err)
		}
	}

	srv := kvserver.New(&kvserver.Config{
		Addr:         "127.0.0.1:0",
		WriteTimeout: 5 * time.Second,
	}, memory.New(), registry, nil, logger.Discard())
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	return srv.Addr().String()
}

type result struct {
	stdout string
	stderr string
	err    error
}

// runCLI runs the app with --server addr followed by args, feeding input
// to stdin.
func runCLI(t *testing.T, addr, input string, args ...string) result {
	t.Helper()

	var stdout, stderr bytes.Buffer
	app := App()
	app.Reader = strings.NewReader(input)
	app.Writer = &stdout
	app.ErrWriter = &stderr

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	argv := append([]string{"condkv-cli", "--server", addr}, args...)
	err := app.RunContext(ctx, argv)
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// mustRun fails the test if the command fails.
func mustRun(t *testing.T, addr string, args ...string) string {
	t.Helper()
	res := runCLI(t, addr, "", args...)
	if res.err != nil {
		t.Fatalf("%v: %v (stderr: %s)", args, res.err, res.stderr)
	}
	return res.stdout
}

var (
	alice = []string{"-u", "alice", "-p", "secret"}
	bob   = []string{"-u", "bob", "-p", "hunter2"}
)

func as(user []string, args ...string) []string {
	return append(append([]string(nil), user...), args...)
}
