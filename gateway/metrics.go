package gateway

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "planity/gateway"

// requestMetrics collects per-request timings and outcome for one gateway
// route, logging them as structured fields and mirroring them onto an otel
// span.
type requestMetrics struct {
	logger *log.Logger
	route  string
	start  time.Time
	span   trace.Span

	authDuration  time.Duration
	fetchDuration time.Duration
	itemsReturned int
	errorStage    string
}

// newRequestMetrics opens a span for the route and returns the span context
// for downstream calls.
func newRequestMetrics(ctx context.Context, logger *log.Logger, route string) (*requestMetrics, context.Context) {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, route)
	return &requestMetrics{
		logger: logger,
		route:  route,
		start:  time.Now(),
		span:   span,
	}, spanCtx
}

func (m *requestMetrics) ObserveAuth(d time.Duration) {
	if d > 0 {
		m.authDuration = d
	}
}

func (m *requestMetrics) ObserveFetch(d time.Duration) {
	if d > 0 {
		m.fetchDuration = d
	}
}

func (m *requestMetrics) SetItemsReturned(n int) {
	if n < 0 {
		n = 0
	}
	m.itemsReturned = n
}

func (m *requestMetrics) SetErrorStage(stage string) {
	if stage != "" {
		m.errorStage = stage
	}
}

// Log finishes the span and emits one log entry for the request.
func (m *requestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}
	total := time.Since(m.start)

	m.span.SetAttributes(
		attribute.String("planity.route", m.route),
		attribute.Int("http.status_code", status),
		attribute.Float64("planity.total_ms", durationToMillis(total)),
		attribute.Int("planity.items_returned", m.itemsReturned),
	)
	if m.errorStage != "" {
		m.span.SetAttributes(attribute.String("planity.error_stage", m.errorStage))
	}
	if err != nil {
		m.span.SetStatus(codes.Error, err.Error())
		m.span.SetAttributes(attribute.String("error.message", err.Error()))
	}
	m.span.End()

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"route":          m.route,
		"status":         status,
		"total_ms":       durationToMillis(total),
		"auth_ms":        durationToMillis(m.authDuration),
		"fetch_ms":       durationToMillis(m.fetchDuration),
		"items_returned": m.itemsReturned,
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	entry := m.logger.WithFields(fields)
	switch severity(status, err) {
	case "ERROR":
		entry.Error("request failed")
	case "WARN":
		entry.Warn("request rejected")
	default:
		entry.Info("request completed")
	}
}

func severity(status int, err error) string {
	switch {
	case err != nil || status >= 500:
		return "ERROR"
	case status >= 400:
		return "WARN"
	default:
		return "INFO"
	}
}

func durationToMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
