package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestJSONLoggerCarriesServiceAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLoggerTo(&buf, "worker", "warn")

	logger.Info("ignored")
	logger.Warn("prompt_oversize", "namespace", "rh")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected exactly one json line, got %q: %v", buf.String(), err)
	}
	if entry["service"] != "worker" || entry["msg"] != "prompt_oversize" || entry["namespace"] != "rh" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{"debug": slog.LevelDebug, " WARNING ": slog.LevelWarn, "error": slog.LevelError, "": slog.LevelInfo}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestWithAttrsAccumulates(t *testing.T) {
	ctx := WithAttrs(context.Background(), "namespace", "farmacia")
	ctx = WithAttrs(ctx, "document_id", "d1")

	got := Attrs(ctx)
	want := []any{"namespace", "farmacia", "document_id", "d1"}
	if len(got) != len(want) {
		t.Fatalf("attrs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("attrs = %v, want %v", got, want)
		}
	}
	if Attrs(context.Background()) != nil {
		t.Fatalf("bare context must carry no attrs")
	}
}
