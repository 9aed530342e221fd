// Package command defines the condkv-cli commands.
//
// Each command opens its own connection, logs in with --user and
// --password when it needs a session, runs one request and disconnects.
// The shell command keeps one connection open and runs the same commands
// against it, plus login and logout.
package command
