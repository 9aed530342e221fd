// Package client is the Go client for condkv.
//
// Router multiplexes one connection: requests go out through Send or
// Call, and a background goroutine files every decoded message either
// under the Call waiting for its sequence number or in a per-kind FIFO
// queue read by AwaitResponse. A receive failure is sticky and is
// broadcast to every waiter once its queue is drained.
//
// Client wraps a Router with one typed method per operation.
package client
