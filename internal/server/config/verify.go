package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/yndnr/condkv/internal/core/domain"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if cfg.Session.MaxConcurrent < 1 {
		return errors.New("session.max_concurrent must be at least 1")
	}
	if err := verifySecurity(&cfg.Security); err != nil {
		return err
	}
	if cfg.Limits.RequestsPerSecond < 0 {
		return errors.New("limits.requests_per_second must not be negative")
	}
	return verifyLog(&cfg.Log)
}

func verifyServer(cfg *ServerSection) error {
	if cfg.Listen.Addr == "" && cfg.Listen.LocalPath == "" {
		return errors.New("server.listen: at least one of addr or local_path is required")
	}
	if cfg.Listen.Addr != "" {
		if _, _, err := net.SplitHostPort(cfg.Listen.Addr); err != nil {
			return fmt.Errorf("server.listen.addr: %w", err)
		}
	}
	if cfg.Admin.Addr != "" {
		if _, _, err := net.SplitHostPort(cfg.Admin.Addr); err != nil {
			return fmt.Errorf("server.admin.addr: %w", err)
		}
		if cfg.Admin.Addr == cfg.Listen.Addr {
			return errors.New("server.admin.addr must differ from server.listen.addr")
		}
	}
	if cfg.IdleTimeout < 0 {
		return errors.New("server.idle_timeout must not be negative")
	}
	if cfg.WriteTimeout <= 0 {
		return errors.New("server.write_timeout must be positive")
	}
	return nil
}

func verifySecurity(cfg *SecuritySection) error {
	if cfg.Argon2Time < 1 {
		return errors.New("security.argon2_time must be at least 1")
	}
	if cfg.Argon2Threads < 1 {
		return errors.New("security.argon2_threads must be at least 1")
	}
	if cfg.Argon2MemoryKiB < 8*uint32(cfg.Argon2Threads) {
		return errors.New("security.argon2_memory_kib must be at least 8 per thread")
	}

	seen := make(map[string]struct{}, len(cfg.SeedAccounts))
	for i, entry := range cfg.SeedAccounts {
		creds, err := domain.ParseCredentials(entry)
		if err != nil {
			return fmt.Errorf("security.seed_accounts[%d]: %w", i, err)
		}
		if _, dup := seen[creds.Username]; dup {
			return fmt.Errorf("security.seed_accounts[%d]: duplicate username %q", i, creds.Username)
		}
		seen[creds.Username] = struct{}{}
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch strings.ToLower(cfg.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "json", "text", "console":
	default:
		return fmt.Errorf("log.format: unknown format %q", cfg.Format)
	}
	return nil
}
