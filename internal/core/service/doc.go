// Package service provides domain services for condkv.
//
// This package contains:
//
//   - SessionRegistry: accounts, connection bindings and admission control
//   - HashPassword/VerifyPassword: Argon2id password verifiers
//   - RateLimiterRegistry: per-connection request rate limiting
//
// All types are safe for concurrent use.
package service
