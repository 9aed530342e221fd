// Package repl provides the interactive shell of condkv-cli.
//
//   - repl.go: read loop, line splitting and built-ins (exit, quit, history)
//   - completer.go: prefix matching used for "did you mean" hints
//   - history.go: command history persisted between runs
//
// Commands themselves are run by an Executor supplied by the caller, so
// the shell holds no protocol knowledge.
package repl
