// Command condkv-server runs the condkv key-value server.
//
// It serves the binary protocol on a TCP address and, optionally, a Unix
// socket, and exposes health, stats and Prometheus metrics over HTTP on a
// separate admin address.
//
// Usage:
//
//	condkv-server [-config /path/to/config.yaml]
//	condkv-server -version
//
// Settings come from defaults, the YAML file and CONDKV_* environment
// variables, in increasing priority. log.level is re-read when the
// configuration file changes; other settings need a restart.
package main
