package command

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestShell_Session(t *testing.T) {
	addr := startServer(t)
	history := filepath.Join(t.TempDir(), "history")

	input := strings.Join([]string{
		"put k1 v1",
		"login",
		"put k1 \"two words\"",
		"get k1",
		"mget k1 k2",
		"logout",
		"get k1",
		"exit",
	}, "\n") + "\n"

	res := runCLI(t, addr, input, as(alice, "shell", "--history", history)...)
	if res.err != nil {
		t.Fatalf("shell: %v", res.err)
	}
	out := res.stdout

	// Started logged in, so the first login is refused.
	for _, want := range []string{
		"condkv(alice)> ",
		"OK",
		"error: condkv: LOGIN failed",
		"two words",
		"logged out",
		"condkv> ",
		"error: condkv: GET failed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	data, err := os.ReadFile(history)
	if err != nil {
		t.Fatalf("history not saved: %v", err)
	}
	if !strings.Contains(string(data), "mget k1 k2") {
		t.Errorf("history = %q", data)
	}
}

func TestShell_Anonymous(t *testing.T) {
	addr := startServer(t)

	input := "register dave pw\nlogin dave pw\nput a b\nget a\nfrobnicate\n"
	res := runCLI(t, addr, input, "shell", "--history", "")
	if res.err != nil {
		t.Fatalf("shell: %v", res.err)
	}

	for _, want := range []string{"registered dave", "logged in as dave", "condkv(dave)> ", `unknown command "frobnicate"`} {
		if !strings.Contains(res.stdout, want) {
			t.Errorf("output missing %q:\n%s", want, res.stdout)
		}
	}
}
