package logctx

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

type stubSpan struct {
	trace.Span
	spanContext trace.SpanContext
}

func (s *stubSpan) SpanContext() trace.SpanContext { return s.spanContext }

func (s *stubSpan) End(...trace.SpanEndOption) {}

func contextWithValidSpan(t *testing.T) context.Context {
	t.Helper()

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	if err != nil {
		t.Fatalf("failed to build trace ID: %v", err)
	}

	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	if err != nil {
		t.Fatalf("failed to build span ID: %v", err)
	}

	span := &stubSpan{spanContext: trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	})}

	return trace.ContextWithSpan(context.Background(), span)
}

func logTo(t *testing.T, ctx context.Context) map[string]any {
	t.Helper()

	var buf bytes.Buffer

	logger := slog.New(NewTraceHandler(slog.NewJSONHandler(&buf, &slog.HandlerOptions{})))
	logger.InfoContext(ctx, "test message", "key", "value")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log output: %v", err)
	}

	return entry
}

func TestTraceHandler_NoSpanContext(t *testing.T) {
	entry := logTo(t, context.Background())

	if _, exists := entry["trace_id"]; exists {
		t.Errorf("trace_id should not be present without span context, got: %v", entry["trace_id"])
	}

	if _, exists := entry["span_id"]; exists {
		t.Errorf("span_id should not be present without span context, got: %v", entry["span_id"])
	}

	if entry["msg"] != "test message" || entry["key"] != "value" {
		t.Errorf("normal fields missing from output: %v", entry)
	}
}

func TestTraceHandler_WithValidSpan(t *testing.T) {
	entry := logTo(t, contextWithValidSpan(t))

	if entry["trace_id"] != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("unexpected trace_id: %v", entry["trace_id"])
	}

	if entry["span_id"] != "00f067aa0ba902b7" {
		t.Errorf("unexpected span_id: %v", entry["span_id"])
	}

	if entry["msg"] != "test message" {
		t.Errorf("expected msg='test message', got: %v", entry["msg"])
	}
}

func TestTraceHandler_Enabled(t *testing.T) {
	h := NewTraceHandler(slog.NewJSONHandler(nil, &slog.HandlerOptions{Level: slog.LevelWarn}))

	ctx := context.Background()

	if h.Enabled(ctx, slog.LevelInfo) {
		t.Errorf("expected Info level to be disabled when handler level is Warn")
	}

	if !h.Enabled(ctx, slog.LevelWarn) {
		t.Errorf("expected Warn level to be enabled")
	}
}

func TestTraceHandler_NilHandler(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("NewTraceHandler with nil handler should panic")
		}
	}()

	NewTraceHandler(nil)
}
