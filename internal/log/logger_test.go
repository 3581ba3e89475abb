package log

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"moneymanager/internal/core"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return New(Config{
		Component: ComponentLedger,
		Handler:   slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.InfoContext(context.Background(), "created", FieldAccountID, "acc-1")

	out := buf.String()
	if !strings.Contains(out, "component=ledger") || !strings.Contains(out, "account_id=acc-1") {
		t.Fatalf("unexpected log line: %s", out)
	}
}

func TestFailureLevels(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantLevel string
		wantType  string
	}{
		{"domain error is a warning", fmt.Errorf("update: %w", core.ErrEditWindowExpired), "level=WARN", "error_type=edit_window_expired"},
		{"store error is an error", errors.New("database is locked"), "level=ERROR", "error_type=internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newBufferLogger(&buf)

			logger.Failure(context.Background(), "operation failed", tt.err, OpUpdate, NewFields().WithOwner("u1"))

			out := buf.String()
			if !strings.Contains(out, tt.wantLevel) || !strings.Contains(out, tt.wantType) {
				t.Errorf("log line %q missing %q or %q", out, tt.wantLevel, tt.wantType)
			}
		})
	}
}

func TestFromContext(t *testing.T) {
	if got := FromContext(context.Background()); got == nil || got.Component() != ComponentApp {
		t.Fatalf("expected default app logger, got %+v", got)
	}

	var buf bytes.Buffer
	logger := newBufferLogger(&buf)
	ctx := WithLogger(context.Background(), logger)
	if got := FromContext(ctx); got != logger {
		t.Fatalf("expected logger from context")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
