package config

import "github.com/yndnr/condkv/internal/telemetry/logger"

// Sanitize returns a copy of the config with seed account passwords
// masked, for logging.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg

	if len(cfg.Security.SeedAccounts) > 0 {
		masked := make([]string, len(cfg.Security.SeedAccounts))
		for i, entry := range cfg.Security.SeedAccounts {
			masked[i] = logger.RedactCredentials(entry)
		}
		sanitized.Security.SeedAccounts = masked
	}

	return &sanitized
}
