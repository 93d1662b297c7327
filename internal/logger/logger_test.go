package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelWarn, "test", nil)

	log.Info(context.Background(), "should not appear")
	if buf.Len() != 0 {
		t.Fatalf("expected info below threshold to be suppressed, got %q", buf.String())
	}

	log.Error(context.Background(), "should appear", "code", "X")
	if !strings.Contains(buf.String(), "msg=\"should appear\"") {
		t.Fatalf("expected error line, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "code=X") {
		t.Fatalf("expected key/value pair in output, got %q", buf.String())
	}
}

func TestWithFieldsFromContext(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelDebug, "test", nil)

	ctx := WithFields(context.Background(), "session", "s1")
	log.Info(ctx, "hello")

	if !strings.Contains(buf.String(), "session=s1") {
		t.Fatalf("expected contextual field in output, got %q", buf.String())
	}
}

func TestWithAttachesFieldsToDerivedLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(&buf, LevelDebug, "test", nil)
	derived := base.With("venue", "delta")

	derived.Info(context.Background(), "tick")
	base.Info(context.Background(), "tock")

	out := buf.String()
	if !strings.Contains(out, "venue=delta") {
		t.Fatalf("expected derived logger to attach field, got %q", out)
	}
	if strings.Count(out, "venue=delta") != 1 {
		t.Fatalf("expected base logger to remain unaffected, got %q", out)
	}
}
