package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	log := New("test")
	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected logger to be enabled")
	}
}

func TestNewLevelFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	if got := New("test").GetLevel(); got != zerolog.DebugLevel {
		t.Errorf("level = %s, want debug", got)
	}

	t.Setenv("LOG_LEVEL", "error")
	if got := New("test").GetLevel(); got != zerolog.ErrorLevel {
		t.Errorf("level = %s, want error", got)
	}

	t.Setenv("LOG_LEVEL", "bogus")
	if got := New("test").GetLevel(); got != zerolog.InfoLevel {
		t.Errorf("level = %s, want info for unknown value", got)
	}
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Msg("test message")

	output := buf.String()
	if output == "" {
		t.Error("Expected log output, got empty string")
	}
	if !strings.Contains(output, "test message") {
		t.Errorf("Expected output to contain 'test message', got: %s", output)
	}
}

func TestWithContext(t *testing.T) {
	buf := &bytes.Buffer{}
	testLog := NewWithWriter(buf)
	ctx := WithContext(context.Background(), testLog)

	if ctx.Value(LoggerKey) == nil {
		t.Error("Expected logger in context, got nil")
	}

	retrieved := FromContext(ctx)
	retrieved.Info().Msg("via context")
	if !strings.Contains(buf.String(), "via context") {
		t.Error("Expected log output from retrieved logger")
	}
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())
	if log.GetLevel() == zerolog.Disabled {
		t.Error("Expected default logger to be enabled")
	}
}
