package config

import "time"

// Default configuration values.
const (
	DefaultListenAddr   = "127.0.0.1:8080"
	DefaultAdminAddr    = "127.0.0.1:8081"
	DefaultWriteTimeout = 30 * time.Second

	DefaultMaxConcurrentSessions = 2

	DefaultArgon2Time      = 2
	DefaultArgon2MemoryKiB = 16384
	DefaultArgon2Threads   = 2

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Listen: ListenConfig{
				Addr: DefaultListenAddr,
			},
			Admin: AdminConfig{
				Addr: DefaultAdminAddr,
			},
			IdleTimeout:  0,
			WriteTimeout: DefaultWriteTimeout,
		},
		Session: SessionSection{
			MaxConcurrent: DefaultMaxConcurrentSessions,
		},
		Security: SecuritySection{
			Argon2Time:      DefaultArgon2Time,
			Argon2MemoryKiB: DefaultArgon2MemoryKiB,
			Argon2Threads:   DefaultArgon2Threads,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
