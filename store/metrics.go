package store

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "taskflow/store"

type requestMetrics struct {
	logger         *log.Logger
	span           trace.Span
	start          time.Time
	op             string
	method         string
	requestID      string
	sendDuration   time.Duration
	decodeDuration time.Duration
	tasksReturned  int
	errorStage     string
}

func newRequestMetrics(ctx context.Context, logger *log.Logger, op, method, requestID string) (*requestMetrics, context.Context) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "store."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("taskflow.request_id", requestID),
		),
	)
	return &requestMetrics{
		logger:        logger,
		span:          span,
		start:         time.Now(),
		op:            op,
		method:        method,
		requestID:     requestID,
		tasksReturned: -1,
	}, ctx
}

func (m *requestMetrics) ObserveSend(d time.Duration) {
	if d <= 0 {
		return
	}
	m.sendDuration = d
}

func (m *requestMetrics) ObserveDecode(d time.Duration) {
	if d <= 0 {
		return
	}
	m.decodeDuration = d
}

func (m *requestMetrics) SetTasksReturned(n int) {
	if n < 0 {
		n = 0
	}
	m.tasksReturned = n
}

func (m *requestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

// Log ends the span and writes one structured line per request.
func (m *requestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}
	if m.span != nil {
		if status > 0 {
			m.span.SetAttributes(attribute.Int("http.response.status_code", status))
		}
		if m.tasksReturned >= 0 {
			m.span.SetAttributes(attribute.Int("taskflow.tasks_returned", m.tasksReturned))
		}
		if err != nil {
			m.span.RecordError(err)
			m.span.SetStatus(codes.Error, m.errorStage)
		}
		m.span.End()
	}
	if m.logger == nil {
		return
	}

	fields := log.Fields{
		"op":         m.op,
		"method":     m.method,
		"status":     status,
		"request_id": m.requestID,
		"total_ms":   durationToMillis(time.Since(m.start)),
	}
	if m.sendDuration > 0 {
		fields["send_ms"] = durationToMillis(m.sendDuration)
	}
	if m.decodeDuration > 0 {
		fields["decode_ms"] = durationToMillis(m.decodeDuration)
	}
	if m.tasksReturned >= 0 {
		fields["tasks_returned"] = m.tasksReturned
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
		m.logger.WithFields(fields).Warn("store.request.metrics")
		return
	}
	m.logger.WithFields(fields).Info("store.request.metrics")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
