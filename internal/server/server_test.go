package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Lyall-A/Checkboxes/internal/checkbox"
	"github.com/Lyall-A/Checkboxes/internal/config"
	"github.com/Lyall-A/Checkboxes/internal/domain"
	"github.com/Lyall-A/Checkboxes/internal/ratelimit"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

type memorySnapshots struct {
	mu    sync.Mutex
	state *domain.State
}

func (m *memorySnapshots) Load(context.Context) (*domain.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil, domain.ErrSnapshotNotFound
	}
	s := m.state.Clone()
	return &s, nil
}

func (m *memorySnapshots) Save(_ context.Context, state domain.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := state.Clone()
	m.state = &s
	return nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	updates []domain.Update
}

func (n *recordingNotifier) Notify(update domain.Update) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates = append(n.updates, update)
}

func (n *recordingNotifier) Updates() []domain.Update {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Update(nil), n.updates...)
}

type stubRegistry struct {
	mu     sync.Mutex
	served int
}

func (r *stubRegistry) Serve(_ context.Context, socket *websocket.Conn, _ string) error {
	r.mu.Lock()
	r.served++
	r.mu.Unlock()
	return socket.Close()
}

func testConfig() *config.Config {
	return &config.Config{
		Checkboxes:            5,
		RateLimitMaxRequests:  3,
		RateLimitResetTimeout: 10 * time.Second,
	}
}

type testEnv struct {
	srv      *Server
	store    *checkbox.Store
	limiter  *ratelimit.Limiter
	clock    *clockwork.FakeClock
	notifier *recordingNotifier
	registry *prometheus.Registry
}

type testOption func(*testOptions)

type testOptions struct {
	cfg          *config.Config
	registry     connectionRegistry
	notifier     domain.Notifier
	healthChecks []HealthCheck
}

func withConfig(cfg *config.Config) testOption {
	return func(o *testOptions) { o.cfg = cfg }
}

func withRegistry(registry connectionRegistry, notifier domain.Notifier) testOption {
	return func(o *testOptions) {
		o.registry = registry
		o.notifier = notifier
	}
}

func withHealthChecks(checks ...HealthCheck) testOption {
	return func(o *testOptions) { o.healthChecks = checks }
}

func newTestServer(t *testing.T, opts ...testOption) *testEnv {
	t.Helper()

	notifier := &recordingNotifier{}
	o := testOptions{
		cfg:      testConfig(),
		registry: &stubRegistry{},
		notifier: notifier,
	}
	for _, opt := range opts {
		opt(&o)
	}

	clock := clockwork.NewFakeClock()
	store := checkbox.NewStore(o.cfg.Checkboxes, &memorySnapshots{}, o.notifier, clock, nil)
	limiter := ratelimit.New(o.cfg.RateLimitMaxRequests, o.cfg.RateLimitResetTimeout, clock, nil)
	t.Cleanup(limiter.Stop)

	reg := prometheus.NewRegistry()
	srv := NewServer(o.cfg, store, limiter, o.registry, reg, clock, o.healthChecks)

	return &testEnv{
		srv:      srv,
		store:    store,
		limiter:  limiter,
		clock:    clock,
		notifier: notifier,
		registry: reg,
	}
}

// do sends a request through the full middleware stack from the default test client address.
func (e *testEnv) do(method, target, body string, mutators ...func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, m := range mutators {
		m(req)
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func fromAddr(addr string) func(*http.Request) {
	return func(r *http.Request) { r.RemoteAddr = addr }
}
