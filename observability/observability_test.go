package observability

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestFields(t *testing.T) {
	if f := String("k", "v"); f.Key() != "k" || f.Value() != "v" {
		t.Fatalf("unexpected string field: %q=%v", f.Key(), f.Value())
	}
	if f := Int("n", 7); f.Value() != 7 {
		t.Fatalf("unexpected int field value: %v", f.Value())
	}
	if f := Float64("d", 1.5); f.Value() != 1.5 {
		t.Fatalf("unexpected float field value: %v", f.Value())
	}
}

func TestSlogLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))
	log := NewSlogLogger(base).With(String("annotation", "123"))
	log.Info("assembled", Int("pages", 3))

	out := buf.String()
	if !strings.Contains(out, "annotation=123") {
		t.Fatalf("expected bound field in output, got %q", out)
	}
	if !strings.Contains(out, "pages=3") {
		t.Fatalf("expected call field in output, got %q", out)
	}
}

func TestNopLoggerIsSafe(t *testing.T) {
	var log Logger = NopLogger{}
	log = log.With(String("k", "v"))
	log.Debug("d")
	log.Error("e", Error("err", nil))
}
