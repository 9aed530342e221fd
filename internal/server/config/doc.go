// Package config provides the condkv server configuration.
//
//   - spec.go: ServerConfig struct definition
//   - default.go: default values
//   - verify.go: validation
//   - sanitize.go: masking of secrets before the config is logged
//
// Configuration is loaded by internal/infra/confloader from defaults, a
// YAML file and CONDKV_* environment variables.
package config
