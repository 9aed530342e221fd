// Package shutdown coordinates graceful process shutdown.
//
// Usage:
//
//	h := shutdown.NewHandler(30 * time.Second)
//	h.OnShutdown("protocol server", srv.Shutdown)
//	err := h.Wait(ctx) // returns after SIGINT, SIGTERM or ctx cancellation
package shutdown
