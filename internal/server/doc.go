// Package server implements the HTTP router using Echo.
//
// Serves the front-end document, the checkbox read and write endpoints, the WebSocket
// upgrade, and operational endpoints (health, version, metrics). Mutating and fallback
// routes pass through the per-client rate limiter.
package server
