package command

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"
)

func TestApp_Structure(t *testing.T) {
	app := App()

	names := make(map[string]bool)
	for _, cmd := range app.Commands {
		names[cmd.Name] = true
	}
	for _, want := range []string{"register", "put", "get", "mput", "mget", "getwhen", "shell", "version"} {
		if !names[want] {
			t.Errorf("missing command %q", want)
		}
	}

	flags := make(map[string]bool)
	for _, f := range app.Flags {
		flags[f.Names()[0]] = true
	}
	for _, want := range []string{"server", "user", "password", "output", "timeout"} {
		if !flags[want] {
			t.Errorf("missing global flag --%s", want)
		}
	}
}

func TestShellCommands_IncludeSessionCommands(t *testing.T) {
	names := make(map[string]bool)
	for _, cmd := range shellCommands() {
		names[cmd.Name] = true
	}
	if !names["login"] || !names["logout"] {
		t.Error("shell must offer login and logout")
	}
	if names["shell"] {
		t.Error("shell must not nest")
	}
}

func TestApp_BadOutputFormat(t *testing.T) {
	res := runCLI(t, "127.0.0.1:1", "", "-o", "xml", "version")
	if res.err == nil || !strings.Contains(res.err.Error(), `unknown output format "xml"`) {
		t.Errorf("err = %v", res.err)
	}
}

func TestVersion_JSON(t *testing.T) {
	res := runCLI(t, "127.0.0.1:1", "", "-o", "json", "version")
	if res.err != nil {
		t.Fatalf("version: %v", res.err)
	}

	var info map[string]string
	if err := json.Unmarshal([]byte(res.stdout), &info); err != nil {
		t.Fatalf("not JSON: %v\n%s", err, res.stdout)
	}
	if info["version"] == "" || info["go_version"] == "" {
		t.Errorf("info = %v", info)
	}
}

func TestDial_Unreachable(t *testing.T) {
	res := runCLI(t, "127.0.0.1:1", "", as(alice, "get", "k")...)
	if res.err == nil || !strings.Contains(res.err.Error(), "dial 127.0.0.1:1") {
		t.Errorf("err = %v", res.err)
	}
}

func TestRequestContext_NoTimeout(t *testing.T) {
	app := &cli.App{
		Flags: globalFlags(),
		Action: func(c *cli.Context) error {
			ctx, cancel := requestContext(c)
			defer cancel()
			if _, ok := ctx.Deadline(); ok {
				t.Error("--timeout 0 should not set a deadline")
			}
			return nil
		},
	}
	if err := app.Run([]string{"x", "--timeout", "0s"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
