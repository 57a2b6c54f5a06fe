// Package shutdown coordinates process termination for previewshare-server.
//
// Hooks registered with OnShutdown run in reverse registration order once
// SIGINT or SIGTERM arrives (or the parent context ends), bounded by the
// handler timeout. SIGHUP runs the OnReload hooks instead.
//
// Usage:
//
//	h := shutdown.NewHandler(15*time.Second, logger)
//	h.OnShutdown("http", srv.Shutdown)
//	err := h.Wait(ctx)
package shutdown
