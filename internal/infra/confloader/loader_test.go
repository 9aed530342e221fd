package confloader

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

type testConfig struct {
	Server struct {
		Listen struct {
			Addr      string `koanf:"addr"`
			LocalPath string `koanf:"local_path"`
		} `koanf:"listen"`
		WriteTimeout time.Duration `koanf:"write_timeout"`
	} `koanf:"server"`
	Session struct {
		MaxConcurrent int `koanf:"max_concurrent"`
	} `koanf:"session"`
	Seeds    []string `koanf:"seeds"`
	Internal string
}

func defaultTestConfig() *testConfig {
	cfg := &testConfig{}
	cfg.Server.Listen.Addr = "127.0.0.1:8080"
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Session.MaxConcurrent = 2
	return cfg
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestNewLoader(t *testing.T) {
	l := NewLoader()
	if l.envPrefix != DefaultEnvPrefix {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, DefaultEnvPrefix)
	}

	l = NewLoader(WithEnvPrefix("TEST_"), WithConfigFile("/path/to/config.yaml"))
	if l.envPrefix != "TEST_" {
		t.Errorf("envPrefix = %q, want TEST_", l.envPrefix)
	}
	if l.filePath != "/path/to/config.yaml" {
		t.Errorf("filePath = %q", l.filePath)
	}
}

func TestLoader_Load_DefaultsOnly(t *testing.T) {
	cfg := defaultTestConfig()

	if err := NewLoader(WithEnvPrefix("CONDKV_TEST_NONE_")).Load(cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Listen.Addr != "127.0.0.1:8080" {
		t.Errorf("Addr = %q", cfg.Server.Listen.Addr)
	}
	if cfg.Server.WriteTimeout != 30*time.Second {
		t.Errorf("WriteTimeout = %v", cfg.Server.WriteTimeout)
	}
	if cfg.Session.MaxConcurrent != 2 {
		t.Errorf("MaxConcurrent = %d", cfg.Session.MaxConcurrent)
	}
}

func TestLoader_Load_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  listen:
    local_path: /tmp/condkv.sock
  write_timeout: 5s
session:
  max_concurrent: 8
seeds:
  - alice:pw
`)

	cfg := defaultTestConfig()
	if err := NewLoader(WithConfigFile(path)).Load(cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Keys absent from the file keep their defaults.
	if cfg.Server.Listen.Addr != "127.0.0.1:8080" {
		t.Errorf("Addr = %q, want default", cfg.Server.Listen.Addr)
	}
	if cfg.Server.Listen.LocalPath != "/tmp/condkv.sock" {
		t.Errorf("LocalPath = %q", cfg.Server.Listen.LocalPath)
	}
	if cfg.Server.WriteTimeout != 5*time.Second {
		t.Errorf("WriteTimeout = %v, want 5s", cfg.Server.WriteTimeout)
	}
	if cfg.Session.MaxConcurrent != 8 {
		t.Errorf("MaxConcurrent = %d, want 8", cfg.Session.MaxConcurrent)
	}
	if !slices.Equal(cfg.Seeds, []string{"alice:pw"}) {
		t.Errorf("Seeds = %v", cfg.Seeds)
	}
}

func TestLoader_Load_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
server:
  listen:
    addr: "from-file:8080"
`)
	t.Setenv("CONDKV_SERVER_LISTEN_ADDR", "from-env:9090")
	t.Setenv("CONDKV_SERVER_LISTEN_LOCAL_PATH", "/run/condkv.sock")
	t.Setenv("CONDKV_SESSION_MAX_CONCURRENT", "5")

	cfg := defaultTestConfig()
	if err := NewLoader(WithConfigFile(path)).Load(cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Listen.Addr != "from-env:9090" {
		t.Errorf("Addr = %q, want env value", cfg.Server.Listen.Addr)
	}
	if cfg.Server.Listen.LocalPath != "/run/condkv.sock" {
		t.Errorf("LocalPath = %q, want env value", cfg.Server.Listen.LocalPath)
	}
	if cfg.Session.MaxConcurrent != 5 {
		t.Errorf("MaxConcurrent = %d, want 5", cfg.Session.MaxConcurrent)
	}
}

func TestLoader_Load_BadTarget(t *testing.T) {
	var n int
	if err := NewLoader().Load(&n); err == nil {
		t.Error("Load() should reject a non-struct target")
	}
}

func TestLoader_LoadFile(t *testing.T) {
	l := NewLoader()

	if err := l.LoadFile(""); err != nil {
		t.Errorf("LoadFile(\"\") error = %v", err)
	}
	if err := l.LoadFile("/nonexistent/config.yaml"); err == nil {
		t.Error("LoadFile() should fail for a missing file")
	}

	path := writeConfig(t, "log:\n  level: debug\n")
	if err := l.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if got := l.GetString("log.level"); got != "debug" {
		t.Errorf("log.level = %q, want debug", got)
	}
}

func TestLoader_LoadEnv_UnknownKeyFallback(t *testing.T) {
	t.Setenv("MYAPP_SERVER_PORT", "9090")

	l := NewLoader(WithEnvPrefix("MYAPP_"))
	if err := l.LoadEnv(); err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}

	if port := l.GetString("server.port"); port != "9090" {
		t.Errorf("server.port = %q, want 9090", port)
	}
}

func TestStructToMap(t *testing.T) {
	l := NewLoader()
	if err := l.LoadDefaults(defaultTestConfig()); err != nil {
		t.Fatalf("LoadDefaults() error = %v", err)
	}

	keys := l.Keys()
	for _, want := range []string{"server.listen.addr", "server.listen.local_path", "server.write_timeout", "session.max_concurrent"} {
		if !slices.Contains(keys, want) {
			t.Errorf("Keys() missing %q: %v", want, keys)
		}
	}
	for _, key := range keys {
		if key == "Internal" || key == "internal" {
			t.Errorf("untagged field leaked as %q", key)
		}
	}
}
