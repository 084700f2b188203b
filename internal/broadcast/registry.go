package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Lyall-A/Checkboxes/internal/domain"
	"github.com/Lyall-A/Checkboxes/internal/logging"
	"github.com/Lyall-A/Checkboxes/internal/metrics"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
)

// Config controls per-connection behaviour.
type Config struct {
	HeartbeatInterval     time.Duration
	HeartbeatIntervalDiff time.Duration
	SendBufferSize        int
	MaxMessageBytes       int64
}

func (c Config) livenessTimeout() time.Duration {
	return c.HeartbeatInterval + c.HeartbeatIntervalDiff
}

// registryCmd is the command interface for the Registry actor.
type registryCmd interface{ isRegistryCmd() }

type baseRegistryCmd struct{}

func (baseRegistryCmd) isRegistryCmd() {}

type registerCmd struct {
	baseRegistryCmd
	connection   *connection
	errorChannel chan error
}

type unregisterCmd struct {
	baseRegistryCmd
	connection *connection
}

type broadcastCmd struct {
	baseRegistryCmd
	frame        []byte
	replyChannel chan int
}

type countCmd struct {
	baseRegistryCmd
	replyChannel chan int
}

type stopCmd struct {
	baseRegistryCmd
}

// Registry tracks every open push channel and fans messages out to them.
type Registry struct {
	cfg     Config
	clock   clockwork.Clock
	metrics *metrics.WebSocketMetrics

	cmdCh       chan registryCmd
	connections map[*connection]struct{}
	done        chan struct{}
	stopOnce    sync.Once
	stopTimeout time.Duration

	heartbeatFrame []byte
	helloFrame     []byte
}

// NewRegistry creates a Registry and starts its actor goroutine.
// m may be nil, in which case metrics go to a private registry.
func NewRegistry(cfg Config, clock clockwork.Clock, m *metrics.WebSocketMetrics) *Registry {
	if m == nil {
		m = metrics.NewWebSocketMetrics(prometheus.NewRegistry())
	}
	if cfg.SendBufferSize < 1 {
		cfg.SendBufferSize = 1
	}

	r := &Registry{
		cfg:            cfg,
		clock:          clock,
		metrics:        m,
		cmdCh:          make(chan registryCmd, 256),
		connections:    make(map[*connection]struct{}),
		done:           make(chan struct{}),
		stopTimeout:    stopTimeout,
		heartbeatFrame: mustMarshal(HeartbeatMessage()),
		helloFrame:     mustMarshal(HelloMessage(cfg.HeartbeatInterval)),
	}
	go r.run()
	return r
}

// Serve takes ownership of socket, opens the connection and blocks until it closes.
// The socket is closed when Serve returns.
func (r *Registry) Serve(ctx context.Context, socket *websocket.Conn, remoteAddr string) error {
	id := uuid.NewString()
	ctx = logging.WithConnectionID(ctx, id)
	c := newConnection(ctx, id, remoteAddr, socket, r)

	if r.cfg.MaxMessageBytes > 0 {
		socket.SetReadLimit(r.cfg.MaxMessageBytes)
	}

	c.open(r.helloFrame)
	if err := r.register(c); err != nil {
		c.close(reasonShutdown)
		return err
	}
	slog.DebugContext(ctx, "WebSocket opened", "remote_addr", remoteAddr)

	reason := c.readLoop()
	c.close(reason)
	r.unregister(c)
	return nil
}

// Notify broadcasts a checkbox update. Implements domain.Notifier.
func (r *Registry) Notify(update domain.Update) {
	r.Broadcast(UpdateMessage(update))
}

// Broadcast enqueues msg on every open connection and returns how many accepted it.
// Connections registered after the call do not receive it. A full send queue drops the
// message for that connection only.
func (r *Registry) Broadcast(msg Message) int {
	frame, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal broadcast message", "type", msg.Type, "error", err)
		return 0
	}

	replyCh := make(chan int, 1)
	if !r.send(broadcastCmd{frame: frame, replyChannel: replyCh}) {
		return 0
	}

	timer := r.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case n := <-replyCh:
		return n
	case <-r.done:
		return 0
	case <-timer.Chan():
		slog.Warn("Broadcast timed out", "timeout", commandTimeout)
		return 0
	}
}

// Count returns the number of registered connections, or -1 if the registry does not answer.
func (r *Registry) Count() int {
	replyCh := make(chan int, 1)
	if !r.send(countCmd{replyChannel: replyCh}) {
		return -1
	}

	timer := r.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case n := <-replyCh:
		return n
	case <-r.done:
		return -1
	case <-timer.Chan():
		slog.Warn("Count timed out", "timeout", commandTimeout)
		return -1
	}
}

// Stop closes every connection with a close frame and waits for the actor to exit.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		if !r.send(stopCmd{}) {
			return
		}

		timeout := r.clock.NewTimer(r.stopTimeout)
		defer timeout.Stop()

		select {
		case <-r.done:
			slog.Info("Connection registry stopped gracefully")
		case <-timeout.Chan():
			slog.Warn("Connection registry stop timeout exceeded", "timeout", r.stopTimeout)
		}
	})
}

func (r *Registry) register(c *connection) error {
	errCh := make(chan error, 1)
	if !r.send(registerCmd{connection: c, errorChannel: errCh}) {
		return domain.ErrRegistryStopped
	}

	timer := r.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-r.done:
		return domain.ErrRegistryStopped
	case <-timer.Chan():
		return fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

func (r *Registry) unregister(c *connection) {
	r.send(unregisterCmd{connection: c})
}

// send delivers cmd to the actor. Reports false once the actor has exited.
func (r *Registry) send(cmd registryCmd) bool {
	select {
	case r.cmdCh <- cmd:
		return true
	case <-r.done:
		return false
	}
}

func (r *Registry) run() {
	defer close(r.done)
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Connection registry panic recovered", "panic", rec)
			r.closeAll(reasonShutdown)
		}
	}()

	for cmd := range r.cmdCh {
		switch c := cmd.(type) {
		case registerCmd:
			r.handleRegister(c)
		case unregisterCmd:
			r.handleUnregister(c)
		case broadcastCmd:
			c.replyChannel <- r.handleBroadcast(c.frame)
		case countCmd:
			c.replyChannel <- len(r.connections)
		case stopCmd:
			r.handleStop()
			return
		default:
			slog.Warn("Connection registry received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (r *Registry) handleRegister(c registerCmd) {
	r.connections[c.connection] = struct{}{}
	r.metrics.ActiveConnections.Set(float64(len(r.connections)))
	c.errorChannel <- nil
}

func (r *Registry) handleUnregister(c unregisterCmd) {
	if _, ok := r.connections[c.connection]; !ok {
		return
	}
	delete(r.connections, c.connection)
	r.metrics.ActiveConnections.Set(float64(len(r.connections)))
}

func (r *Registry) handleBroadcast(frame []byte) int {
	delivered := 0
	for conn := range r.connections {
		if conn.enqueue(frame) {
			delivered++
			continue
		}
		if conn.isOpen() {
			r.metrics.FramesDropped.Inc()
		}
	}
	r.metrics.MessagesBroadcast.Inc()
	return delivered
}

func (r *Registry) handleStop() {
	slog.Info("Connection registry shutting down", "connections", len(r.connections))
	r.closeAll(reasonShutdown)
}

func (r *Registry) closeAll(reason string) {
	var wg sync.WaitGroup
	for conn := range r.connections {
		wg.Add(1)
		go func(c *connection) {
			defer wg.Done()
			c.close(reason)
		}(conn)
		delete(r.connections, conn)
	}
	wg.Wait()
	r.metrics.ActiveConnections.Set(0)
}
