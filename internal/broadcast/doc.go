// Package broadcast implements the WebSocket connection registry using the actor pattern.
//
// A single goroutine owns the live connection set and serves register, unregister,
// broadcast and stop commands over a channel (no mutex on the set). Each connection runs
// its own writer goroutine, heartbeat ticker and liveness timer.
package broadcast
