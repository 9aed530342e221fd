package config

import "time"

// ServerConfig is the root configuration for condkv-server.
type ServerConfig struct {
	Server   ServerSection   `koanf:"server"`
	Session  SessionSection  `koanf:"session"`
	Security SecuritySection `koanf:"security"`
	Limits   LimitsSection   `koanf:"limits"`
	Log      LogSection      `koanf:"log"`
}

// ServerSection configures listeners and connection timeouts.
type ServerSection struct {
	Listen ListenConfig `koanf:"listen"`
	Admin  AdminConfig  `koanf:"admin"`

	// IdleTimeout closes connections silent for this long between
	// requests. Zero disables it.
	IdleTimeout time.Duration `koanf:"idle_timeout"`

	// WriteTimeout bounds writing one response.
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// ListenConfig configures the protocol listeners.
type ListenConfig struct {
	// Addr is the TCP address. Empty disables TCP.
	Addr string `koanf:"addr"`
	// LocalPath is a Unix socket path. Empty disables it.
	LocalPath string `koanf:"local_path"`
}

// AdminConfig configures the HTTP admin listener.
type AdminConfig struct {
	// Addr is the admin HTTP address. Empty disables the admin server.
	Addr string `koanf:"addr"`
}

// SessionSection configures admission control.
type SessionSection struct {
	// MaxConcurrent is the number of sessions that may be active at once.
	MaxConcurrent int `koanf:"max_concurrent"`
}

// SecuritySection configures password verifiers and seed accounts.
type SecuritySection struct {
	Argon2Time      uint32 `koanf:"argon2_time"`
	Argon2MemoryKiB uint32 `koanf:"argon2_memory_kib"`
	Argon2Threads   uint8  `koanf:"argon2_threads"`

	// SeedAccounts are "username:password" entries registered at startup.
	SeedAccounts []string `koanf:"seed_accounts"`
}

// LimitsSection configures request limits.
type LimitsSection struct {
	// RequestsPerSecond per connection. Zero disables limiting.
	RequestsPerSecond int `koanf:"requests_per_second"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
