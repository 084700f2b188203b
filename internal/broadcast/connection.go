package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const writeDeadline = 5 * time.Second

// Close reasons, also used as metric labels.
const (
	reasonClient   = "client"
	reasonTimeout  = "timeout"
	reasonShutdown = "shutdown"
	reasonError    = "read_error"
)

type connState int32

const (
	stateConnecting connState = iota
	stateOpen
	stateClosed
)

// connection is one client push channel. All socket writes happen on the writer
// goroutine until it exits, after which only close writes the final close frame.
type connection struct {
	id         string
	remoteAddr string
	socket     *websocket.Conn
	clock      clockwork.Clock
	registry   *Registry
	ctx        context.Context

	state       atomic.Int32
	sendChannel chan []byte
	done        chan struct{}
	writerDone  chan struct{}
	closeOnce   sync.Once
	writing     atomic.Bool

	heartbeat clockwork.Ticker

	livenessMu  sync.Mutex
	liveness    clockwork.Timer
	livenessGen uint64
}

func newConnection(ctx context.Context, id, remoteAddr string, socket *websocket.Conn, r *Registry) *connection {
	c := &connection{
		id:          id,
		remoteAddr:  remoteAddr,
		socket:      socket,
		clock:       r.clock,
		registry:    r,
		ctx:         ctx,
		sendChannel: make(chan []byte, r.cfg.SendBufferSize),
		done:        make(chan struct{}),
		writerDone:  make(chan struct{}),
	}
	c.state.Store(int32(stateConnecting))
	return c
}

func (c *connection) isOpen() bool {
	return connState(c.state.Load()) == stateOpen
}

// open queues the greeting and arms both timers. The greeting is the first frame
// in the queue so it always precedes any broadcast.
func (c *connection) open(hello []byte) {
	c.sendChannel <- hello

	c.heartbeat = c.clock.NewTicker(c.registry.cfg.HeartbeatInterval)
	c.armLiveness()

	c.writing.Store(true)
	c.state.Store(int32(stateOpen))
	go c.writeLoop()
}

// enqueue hands frame to the writer without blocking. Reports false when the queue is full
// or the connection is no longer open.
func (c *connection) enqueue(frame []byte) bool {
	if !c.isOpen() {
		return false
	}
	select {
	case c.sendChannel <- frame:
		return true
	default:
		return false
	}
}

func (c *connection) writeLoop() {
	defer close(c.writerDone)
	defer c.heartbeat.Stop()

	for {
		select {
		case frame := <-c.sendChannel:
			c.write(frame)
		case <-c.heartbeat.Chan():
			c.write(c.registry.heartbeatFrame)
		case <-c.done:
			return
		}
	}
}

// write failures are not fatal; a dead peer is reaped by the liveness timer or the read loop.
func (c *connection) write(frame []byte) {
	_ = c.socket.SetWriteDeadline(c.clock.Now().Add(writeDeadline))
	if err := c.socket.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.registry.metrics.WriteFailures.Inc()
		slog.DebugContext(c.ctx, "WebSocket write failed", "error", err)
	}
}

// armLiveness cancels any pending liveness timer and starts a new one.
func (c *connection) armLiveness() {
	c.livenessMu.Lock()
	defer c.livenessMu.Unlock()

	if c.liveness != nil {
		c.liveness.Stop()
	}
	c.livenessGen++
	gen := c.livenessGen
	c.liveness = c.clock.AfterFunc(c.registry.cfg.livenessTimeout(), func() {
		c.livenessExpired(gen)
	})
}

func (c *connection) livenessExpired(gen uint64) {
	c.livenessMu.Lock()
	stale := gen != c.livenessGen
	c.livenessMu.Unlock()
	if stale {
		return
	}

	slog.DebugContext(c.ctx, "WebSocket heartbeat timed out", "timeout", c.registry.cfg.livenessTimeout())
	c.close(reasonTimeout)
}

func (c *connection) cancelLiveness() {
	c.livenessMu.Lock()
	defer c.livenessMu.Unlock()

	if c.liveness != nil {
		c.liveness.Stop()
	}
	c.livenessGen++
}

// handleFrame processes one inbound frame. Anything that is not JSON is dropped.
func (c *connection) handleFrame(data []byte) {
	msg, err := parseInbound(data)
	if err != nil {
		c.registry.metrics.MalformedFrames.Inc()
		slog.DebugContext(c.ctx, "Dropping malformed WebSocket frame", "error", err)
		return
	}
	if msg.Type != TypeHeartbeat {
		return
	}
	if !c.isOpen() {
		return
	}
	c.armLiveness()
	c.registry.metrics.HeartbeatsReceived.Inc()
}

// readLoop blocks until the socket fails or is closed and returns the close reason.
func (c *connection) readLoop() string {
	for {
		_, data, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return reasonClient
			}
			return reasonError
		}
		c.handleFrame(data)
	}
}

// close moves the connection to closed, cancels both timers, stops the writer and closes
// the socket. Safe to call any number of times from any goroutine.
func (c *connection) close(reason string) {
	c.closeOnce.Do(func() {
		c.state.Store(int32(stateClosed))
		c.cancelLiveness()

		close(c.done)
		if c.writing.Load() {
			<-c.writerDone
		}

		if reason != reasonClient && reason != reasonError {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, closeText(reason))
			_ = c.socket.WriteControl(websocket.CloseMessage, msg, c.clock.Now().Add(writeDeadline))
		}
		_ = c.socket.Close()

		c.registry.metrics.ConnectionsClosed.WithLabelValues(reason).Inc()
		slog.DebugContext(c.ctx, "WebSocket closed", "reason", reason)
	})
}

func closeText(reason string) string {
	switch reason {
	case reasonShutdown:
		return "Server shutting down"
	case reasonTimeout:
		return "Heartbeat timeout"
	default:
		return ""
	}
}

func mustMarshal(msg Message) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		panic(err)
	}
	return data
}
