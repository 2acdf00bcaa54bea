package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func captureLine(t *testing.T, format logFormat, emit func(*slog.Logger)) string {
	t.Helper()
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	handler := newStructuredHandler(handlerConfig{
		level:    slog.LevelInfo,
		writer:   aw,
		format:   format,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	})
	emit(slog.New(handler))
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return strings.TrimSpace(buf.String())
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	ctx := WithUpdateMeta(WithRID(context.Background(), "rid-123"), 42, 7, 9)
	line := captureLine(t, formatKV, func(log *slog.Logger) {
		LogEvent(ctx, log.With("component", "app"), slog.LevelInfo, "test.event",
			slog.String("status", "ok"),
			slog.String("cause", "unit"),
		)
	})

	tokens := strings.Split(line, " ")
	expected := []string{"ts=", "level=INFO", "component=app", "event=test.event", "status=ok", "rid=rid-123", "update_id=42", "user_id=7", "chat_id=9"}
	if len(tokens) < len(expected) {
		t.Fatalf("unexpected token count: %d (%s)", len(tokens), line)
	}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	ctx := WithUpdateMeta(WithRID(context.Background(), "rid-json"), 11, 22, 33)
	line := captureLine(t, formatJSON, func(log *slog.Logger) {
		LogEvent(ctx, log.With("component", "service.orders"), slog.LevelError, "order.persist",
			slog.String("status", "failed"),
			slog.String("order_no", "SLR-2025-0001"),
			slog.String("err", "boom"),
		)
	})

	prefixes := []string{`{"ts":`, `"level":"ERROR"`, `"component":"service.orders"`, `"event":"order.persist"`, `"status":"fail"`, `"rid":"rid-json"`, `"order_no":"SLR-2025-0001"`}
	pos := -1
	for _, pref := range prefixes {
		idx := strings.Index(line, pref)
		if idx == -1 || idx < pos {
			t.Fatalf("prefix %s not found in order within %s", pref, line)
		}
		pos = idx
	}
}

func TestStructuredHandlerCompactRID(t *testing.T) {
	rawRID := BuildRID(123, 456, 789)
	ctx := WithRID(context.Background(), rawRID)

	kv := captureLine(t, formatKV, func(log *slog.Logger) {
		LogEvent(ctx, log, slog.LevelInfo, "rid.test")
	})
	if !strings.Contains(kv, "rid="+CompactRID(rawRID)) {
		t.Fatalf("expected compact rid, got %s", kv)
	}
	if strings.Contains(kv, "rid_full=") {
		t.Fatalf("rid_full should be omitted in KV output, got %s", kv)
	}

	js := captureLine(t, formatJSON, func(log *slog.Logger) {
		LogEvent(ctx, log, slog.LevelInfo, "rid.test")
	})
	if !strings.Contains(js, `"rid_full":"`+rawRID+`"`) {
		t.Fatalf("expected rid_full in JSON output, got %s", js)
	}
	if !strings.Contains(js, `"ts_unix_nano"`) {
		t.Fatalf("expected ts_unix_nano in JSON output, got %s", js)
	}
}

func TestStructuredHandlerDurationsAndDefaults(t *testing.T) {
	line := captureLine(t, formatKV, func(log *slog.Logger) {
		log.Info("", slog.Duration("duration", 1500*time.Microsecond), slog.String("empty", " "))
	})
	for _, want := range []string{"component=app", "event=unknown", "duration_ms=2"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %s in %s", want, line)
		}
	}
	if strings.Contains(line, "empty=") {
		t.Fatalf("blank attributes should be pruned: %s", line)
	}
}

func TestStructuredHandlerLevelFilter(t *testing.T) {
	line := captureLine(t, formatKV, func(log *slog.Logger) {
		log.Debug("hidden")
	})
	if line != "" {
		t.Fatalf("debug record should be filtered, got %s", line)
	}
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 3)
	got := []bool{s.Allow(), s.Allow(), s.Allow(), s.Allow()}
	want := []bool{true, false, false, true}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("allow #%d = %v, want %v", i, got[i], want[i])
		}
	}
	s.Set(0, 0)
	if !s.Allow() {
		t.Fatal("zero ratio should allow everything")
	}
}

func TestCompactRIDLeavesForeignInput(t *testing.T) {
	if got := CompactRID("abc"); got != "abc" {
		t.Fatalf("CompactRID(abc) = %q", got)
	}
	if got := CompactRID("35:36:1"); got != "z.10.1" {
		t.Fatalf("CompactRID = %q", got)
	}
}

func TestSanitizeLimit(t *testing.T) {
	if got := SanitizeLimit("a\x00b\u200bc\nd", 4); got != "abc\n" {
		t.Fatalf("SanitizeLimit = %q", got)
	}
}
