package database

import (
	"context"
	"strings"
	"time"

	"github.com/Lyall-A/Checkboxes/internal/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"
)

const backendName = "postgres"

// MetricsTracer implements pgx.QueryTracer to collect query metrics.
type MetricsTracer struct {
	metrics *metrics.StorageMetrics
	clock   clockwork.Clock
}

var _ pgx.QueryTracer = (*MetricsTracer)(nil)

func NewMetricsTracer(m *metrics.StorageMetrics, clock clockwork.Clock) *MetricsTracer {
	return &MetricsTracer{metrics: m, clock: clock}
}

type queryContextKey struct{}

type queryContext struct {
	startTime time.Time
	queryName string
}

func (t *MetricsTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryContextKey{}, queryContext{
		startTime: t.clock.Now(),
		queryName: extractQueryName(data.SQL),
	})
}

func (t *MetricsTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	qctx, ok := ctx.Value(queryContextKey{}).(queryContext)
	if !ok {
		return
	}

	status := "success"
	if data.Err != nil {
		status = "error"
	}
	t.metrics.OpsTotal.WithLabelValues(backendName, qctx.queryName, status).Inc()
	t.metrics.OpDuration.WithLabelValues(backendName, qctx.queryName).Observe(t.clock.Since(qctx.startTime).Seconds())
}

// extractQueryName returns the lower-cased leading SQL keyword, which keeps label cardinality low.
func extractQueryName(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	name := strings.ToLower(fields[0])
	if len(name) > 20 {
		return name[:20]
	}
	return name
}
