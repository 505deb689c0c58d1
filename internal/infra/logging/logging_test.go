//go:build !integration

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"telegram-storefront/internal/config"
)

func TestWithAttachesContextFields(t *testing.T) {
	var buf bytes.Buffer
	base := newWithWriter(config.LogConfig{Level: "info", Format: "json"}, false, &buf)

	ctx := WithTraceID(context.Background(), "trace-1")
	ctx = WithTgID(ctx, 42)
	ctx = WithInvoiceID(ctx, "inv-9")
	With(ctx, base).Info().Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected json log line, got %q: %v", buf.String(), err)
	}
	if line["trace_id"] != "trace-1" || line["invoice_id"] != "inv-9" {
		t.Errorf("missing context fields: %v", line)
	}
	if line["tg_id"] != float64(42) {
		t.Errorf("expected tg_id 42, got %v", line["tg_id"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newWithWriter(config.LogConfig{Level: "warn", Format: "json"}, false, &buf)
	l.Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Errorf("expected info to be filtered at warn level, got %q", buf.String())
	}
}

func TestRedact(t *testing.T) {
	if got := Redact("67XZtXdR4NpKU3", false); got != "67XZ...U3" {
		t.Errorf("unexpected redaction %q", got)
	}
	if got := Redact("short", false); got != "***" {
		t.Errorf("unexpected redaction %q", got)
	}
	if got := Redact("visible", true); got != "visible" {
		t.Errorf("dev mode must not redact, got %q", got)
	}
}
