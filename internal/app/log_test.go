package app

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestArkHandler_Handle(t *testing.T) {
	ts := time.Date(2026, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		opID    string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			opID:    "ListProjects-ab12cd34",
			level:   slog.LevelInfo,
			message: "authenticated",
			want:    "2026-06-15T14:30:45Z\tINFO\tListProjects-ab12cd34\tauthenticated\n",
		},
		{
			name:    "debug level",
			opID:    "FindContainer-11aa22bb",
			level:   slog.LevelDebug,
			message: "token issued",
			want:    "2026-06-15T14:30:45Z\tDEBUG\tFindContainer-11aa22bb\ttoken issued\n",
		},
		{
			name:    "with record attrs",
			opID:    "Upload-99ff00ee",
			level:   slog.LevelInfo,
			message: "object uploaded",
			attrs:   []slog.Attr{slog.String("container", "data"), slog.Int("bytes", 42)},
			want:    "2026-06-15T14:30:45Z\tINFO\tUpload-99ff00ee\tobject uploaded\tcontainer=data\tbytes=42\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &arkHandler{w: &buf, opID: tt.opID}

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

func TestArkHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := &arkHandler{w: &buf, opID: "op-1"}

	h2 := h.WithAttrs([]slog.Attr{slog.String("project", "demo")}).(*arkHandler)

	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "container created", 0)
	r.AddAttrs(slog.String("container", "data"))

	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "project=demo") {
		t.Errorf("expected pre-set attr project=demo, got: %q", got)
	}
	if !strings.Contains(got, "container=data") {
		t.Errorf("expected record attr container=data, got: %q", got)
	}
}

func TestArkHandler_WithAttrs_doesNotMutateOriginal(t *testing.T) {
	var buf bytes.Buffer
	h := &arkHandler{w: &buf, opID: "op-1", attrs: []slog.Attr{slog.String("a", "1")}}

	h2 := h.WithAttrs([]slog.Attr{slog.String("b", "2")}).(*arkHandler)

	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}
	if len(h2.attrs) != 2 {
		t.Errorf("new handler attrs: got %d, want 2", len(h2.attrs))
	}
}

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()

	logger, f, err := newLogger(dir, "test-op")
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
