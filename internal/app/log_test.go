package app

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestSyncHandler_Handle(t *testing.T) {
	ts := time.Date(2025, 3, 10, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name     string
		deviceID string
		level    slog.Level
		message  string
		attrs    []slog.Attr
		want     string
	}{
		{
			name:     "basic info message",
			deviceID: "dev-123",
			level:    slog.LevelInfo,
			message:  "change queued for sync",
			want:     "2025-03-10T14:30:45Z\tINFO\tdev-123\tchange queued for sync\n",
		},
		{
			name:     "debug level",
			deviceID: "dev-456",
			level:    slog.LevelDebug,
			message:  "job refreshed",
			want:     "2025-03-10T14:30:45Z\tDEBUG\tdev-456\tjob refreshed\n",
		},
		{
			name:     "with record attrs",
			deviceID: "dev-789",
			level:    slog.LevelWarn,
			message:  "backend unavailable",
			attrs:    []slog.Attr{slog.String("job", "j1"), slog.Int("pending", 3)},
			want:     "2025-03-10T14:30:45Z\tWARN\tdev-789\tbackend unavailable\tjob=j1\tpending=3\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &syncHandler{w: &buf, deviceID: tt.deviceID}

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			for _, a := range tt.attrs {
				r.AddAttrs(a)
			}

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestSyncHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := &syncHandler{w: &buf, deviceID: "dev-1"}

	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "queue")}).(*syncHandler)

	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "flush", 0)
	r.AddAttrs(slog.String("applied", "2"))

	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "component=queue") {
		t.Errorf("expected pre-set attr component=queue, got: %q", got)
	}
	if !strings.Contains(got, "applied=2") {
		t.Errorf("expected record attr applied=2, got: %q", got)
	}
}

func TestSyncHandler_WithAttrs_doesNotMutateOriginal(t *testing.T) {
	var buf bytes.Buffer
	h := &syncHandler{w: &buf, deviceID: "dev-1", attrs: []slog.Attr{slog.String("a", "1")}}

	h2 := h.WithAttrs([]slog.Attr{slog.String("b", "2")}).(*syncHandler)

	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}
	if len(h2.attrs) != 2 {
		t.Errorf("new handler attrs: got %d, want 2", len(h2.attrs))
	}
}

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()

	logger, f, err := newLogger(dir, "dev-1")
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer f.Close()

	if logger == nil {
		t.Fatal("newLogger() returned nil logger")
	}
	if f == nil {
		t.Fatal("newLogger() returned nil file")
	}
}
