package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestJSON(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelInfo)
	log.Info("turn submitted", "strategy", "continuous")

	output := buf.String()
	if !strings.Contains(output, `"strategy":"continuous"`) {
		t.Fatalf("expected strategy attr in JSON output, got: %s", output)
	}
	if !strings.Contains(output, `"level":"INFO"`) {
		t.Fatalf("expected level INFO in output, got: %s", output)
	}
}

func TestLevelFiltering(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := Text(&buf, slog.LevelWarn)
	log.Info("should not appear")
	log.Debug("also should not appear")
	if buf.Len() > 0 {
		t.Fatalf("expected no output below warn level, got: %s", buf.String())
	}
	log.Warn("should appear")
	if !strings.Contains(buf.String(), "should appear") {
		t.Fatalf("expected warn message in output, got: %s", buf.String())
	}
}

func TestDiscard(t *testing.T) {
	t.Parallel()
	OrDiscard(nil).With("k", "v").WithGroup("g").Error("dropped")
	var buf bytes.Buffer
	l := Text(&buf, slog.LevelInfo)
	if OrDiscard(l) != l {
		t.Fatal("OrDiscard must keep a non-nil logger")
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format string
		want   string
		ok     bool
	}{
		{"json", `"msg":"hello"`, true},
		{"text", "msg=hello", true},
		{"pretty", "hello", true},
		{"tint", "hello", true},
		{"", "hello", true},
		{"xml", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.format, func(t *testing.T) {
			var buf bytes.Buffer
			l, err := Open(tc.format, &buf, slog.LevelInfo)
			if !tc.ok {
				if err == nil {
					t.Fatalf("expected error for format %q", tc.format)
				}
				return
			}
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			l.Info("hello")
			if !strings.Contains(buf.String(), tc.want) {
				t.Fatalf("expected %q in output, got: %s", tc.want, buf.String())
			}
		})
	}
}

func TestWith(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelInfo).With("session", "abc")
	log.Info("child message")
	if !strings.Contains(buf.String(), `"session":"abc"`) {
		t.Fatalf("expected session attr in output, got: %s", buf.String())
	}
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	ctx := WithContext(context.Background(), JSON(&buf, slog.LevelInfo))
	FromContext(ctx).Info("roundtrip test")
	if !strings.Contains(buf.String(), "roundtrip test") {
		t.Fatalf("expected message via context logger, got: %s", buf.String())
	}
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext with no logger returned nil")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tc := range tests {
		if result := ParseLevel(tc.input); result != tc.expected {
			t.Errorf("ParseLevel(%q): expected %v, got %v", tc.input, tc.expected, result)
		}
	}
}

func TestPrettyHandlerEnabled(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("expected info to be disabled at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("expected error to be enabled at warn level")
	}
}

func TestPrettyHandlerAttrsAndGroups(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	h := NewPrettyHandler(&buf, nil)

	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("service", "luachat")}).WithGroup("a").WithGroup("b"))
	logger.Info("nested", "key", "val", slog.Group("g", slog.Int("n", 3)))

	output := buf.String()
	for _, want := range []string{"service=luachat", "a.b.key=val", "a.b.g.n=3", "INFO "} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in output, got: %s", want, output)
		}
	}
	if h.WithGroup("") != slog.Handler(h) {
		t.Fatal("WithGroup empty string should return same handler")
	}
}

func TestPrettyQuoting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value string
		want  string
	}{
		{"simple", "msg=simple"},
		{"hello world", `msg="hello world"`},
		{"line\nbreak", `msg="line\nbreak"`},
		{"", `msg=""`},
	}
	for _, tc := range tests {
		var buf bytes.Buffer
		slog.New(NewPrettyHandler(&buf, nil)).Info("test", "msg", tc.value)
		if !strings.Contains(buf.String(), tc.want) {
			t.Errorf("value %q: expected %s in output, got: %s", tc.value, tc.want, buf.String())
		}
	}
}
