// Package server wires taskboard together and runs it.
//
// One HTTP listener serves three surfaces:
//
//   - /health and /health/ready (no auth)
//   - /api/... JSON API with bearer tokens, including /api/chat
//   - everything else: the cookie-authenticated web UI
//
// The listener is a plain TCP address or, with tailscale.enabled, a tsnet
// node on the tailnet (port 80, or 443 with tailnet certificates).
//
// Run blocks until its context is canceled and then shuts down with a 5s
// timeout, closing the store and flushing queued notifications.
package server
