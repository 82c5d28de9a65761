package observability

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestContextValuesAccumulate(t *testing.T) {
	ctx := context.Background()
	ctx = WithSessionID(ctx, "sess-1")
	ctx = WithBuildID(ctx, "build-123")
	ctx = WithStage(ctx, "dispatch")
	ctx = WithVariant(ctx, "development")

	lc := GetContext(ctx)
	if lc.SessionID != "sess-1" || lc.BuildID != "build-123" || lc.Stage != "dispatch" || lc.Variant != "development" {
		t.Fatalf("unexpected log context: %+v", lc)
	}
}

func TestEmptyContext(t *testing.T) {
	lc := GetContext(context.Background())
	if lc != (LogContext{}) {
		t.Fatalf("expected empty log context, got %+v", lc)
	}
}

func TestInfoContextIncludesAttributes(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	ctx := WithBuildID(WithSessionID(context.Background(), "sess-9"), "b-7")
	InfoContext(ctx, "rebuilding", slog.Int("changes", 2))

	out := buf.String()
	for _, want := range []string{"session_id=sess-9", "build_id=b-7", "changes=2", "rebuilding"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
}
