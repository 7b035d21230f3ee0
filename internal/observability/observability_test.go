package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/authhub/internal/actorctx"
	"github.com/geocoder89/authhub/internal/apperr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestJobMetrics_Snapshot(t *testing.T) {
	m := NewJobMetrics()

	m.IncDequeued()
	m.IncDequeued()
	m.IncDone()
	m.IncRetried()
	m.ObserveDuration(10 * time.Millisecond)
	m.ObserveDuration(30 * time.Millisecond)

	s := m.Snapshot()

	if s.Dequeued != 2 || s.Done != 1 || s.Retried != 1 {
		t.Fatalf("unexpected counters: %+v", s)
	}
	if s.AverageDuration != 20*time.Millisecond {
		t.Fatalf("avg: got %v want 20ms", s.AverageDuration)
	}
	if s.MaxDuration != 30*time.Millisecond {
		t.Fatalf("max: got %v want 30ms", s.MaxDuration)
	}
}

func TestProm_NilReceiverIsSafe(t *testing.T) {
	var p *Prom

	p.IncOtpIssued()
	p.IncOtpRateLimited()
	p.ObserveOtpVerification("ok")
	p.ObserveAuth("login", "ok")
	p.ObserveJob("send_otp_email", "done", time.Millisecond)

	called := false
	err := p.ObserveDB("users.get", func() error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatalf("ObserveDB on nil receiver: called=%v err=%v", called, err)
	}
}

func TestProm_CountsOtpAndDB(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())

	p.IncOtpIssued()
	p.IncOtpIssued()
	p.ObserveOtpVerification("invalid")

	if got := testutil.ToFloat64(p.OtpIssued); got != 2 {
		t.Fatalf("otp issued: got %v want 2", got)
	}
	if got := testutil.ToFloat64(p.OtpVerification.WithLabelValues("invalid")); got != 1 {
		t.Fatalf("otp invalid: got %v want 1", got)
	}

	boom := apperr.NewStoreError(apperr.StoreConnection, errors.New("connection reset by peer"))
	if err := p.ObserveDB("users.create", func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("ObserveDB must return fn error, got %v", err)
	}
	if got := testutil.ToFloat64(p.DbErrorsTotal.WithLabelValues("users.create", "connection")); got != 1 {
		t.Fatalf("db errors: got %v want 1", got)
	}

	empty := apperr.NewStoreError(apperr.StoreEmptyResult, errors.New("no rows in result set"))
	_ = p.ObserveDB("users.get_by_email", func() error { return empty })

	if got := testutil.CollectAndCount(p.DbErrorsTotal); got != 1 {
		t.Fatalf("empty result must not count as an error, got %d series", got)
	}
}

func TestContextHandler_AddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "dev")

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	log.InfoContext(ctx, "hello")
	span.End()

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not json: %v (%s)", err, buf.String())
	}

	if rec["trace_id"] != span.SpanContext().TraceID().String() {
		t.Fatalf("trace_id: got %v", rec["trace_id"])
	}
	if rec["span_id"] == nil {
		t.Fatalf("expected span_id in %v", rec)
	}
}

func TestContextHandler_NoSpan(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "prod").Info("plain")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not json: %v", err)
	}
	if _, ok := rec["trace_id"]; ok {
		t.Fatalf("unexpected trace_id without a span: %v", rec)
	}
}

func TestContextHandler_AddsActorFromContext(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "prod")

	ctx := actorctx.WithRequestID(context.Background(), "req-1")
	ctx = actorctx.WithUserID(ctx, "user-1")

	log.InfoContext(ctx, "hello")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not json: %v (%s)", err, buf.String())
	}
	if rec["request_id"] != "req-1" || rec["user_id"] != "user-1" {
		t.Fatalf("missing actor attrs: %v", rec)
	}

	// an explicit attribute wins and is not duplicated
	buf.Reset()
	log.InfoContext(ctx, "again", "request_id", "explicit")

	if bytes.Count(buf.Bytes(), []byte(`"request_id"`)) != 1 {
		t.Fatalf("request_id written more than once: %s", buf.String())
	}
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil || rec["request_id"] != "explicit" {
		t.Fatalf("unexpected record: %v (%v)", rec, err)
	}
}
