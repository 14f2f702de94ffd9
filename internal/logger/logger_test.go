package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

// resetLogger resets the logger to default state for test isolation
func resetLogger() {
	Init(Options{})
}

func TestInit_Levels(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		logged    []string
		notLogged []string
	}{
		{
			name:      "default is info",
			logged:    []string{"info", "warn", "error"},
			notLogged: []string{"debug"},
		},
		{
			name:   "debug",
			opts:   Options{Debug: true},
			logged: []string{"debug", "info", "warn", "error"},
		},
		{
			name:      "quiet",
			opts:      Options{Quiet: true},
			logged:    []string{"error"},
			notLogged: []string{"debug", "info", "warn"},
		},
		{
			name:      "quiet overrides debug",
			opts:      Options{Debug: true, Quiet: true},
			logged:    []string{"error"},
			notLogged: []string{"debug", "info", "warn"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			opts := tt.opts
			opts.Output = buf
			Init(opts)
			defer resetLogger()

			Debug("msg-debug")
			Info("msg-info")
			Warn("msg-warn")
			Error("msg-error")

			output := buf.String()
			for _, lvl := range tt.logged {
				if !strings.Contains(output, "msg-"+lvl) {
					t.Errorf("%s message should be logged", lvl)
				}
			}
			for _, lvl := range tt.notLogged {
				if strings.Contains(output, "msg-"+lvl) {
					t.Errorf("%s message should not be logged", lvl)
				}
			}
		})
	}
}

func TestInit_JSONFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{JSON: true, Output: buf})
	defer resetLogger()

	Info("run finished", "leads", 3)

	output := buf.String()
	if !strings.HasPrefix(strings.TrimSpace(output), "{") {
		t.Errorf("JSON format should produce JSON output, got %q", output)
	}
	if !strings.Contains(output, `"leads":3`) {
		t.Errorf("expected structured attribute in output, got %q", output)
	}
}

func TestInit_CustomLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	custom := slog.New(slog.NewTextHandler(buf, nil))
	Init(Options{Logger: custom, Quiet: true})
	defer resetLogger()

	Info("from custom logger")

	if !strings.Contains(buf.String(), "from custom logger") {
		t.Error("custom logger should take precedence over other options")
	}
}

func TestComponent_TagsOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{Output: buf})
	defer resetLogger()

	Component("capture").Info("entry read", "index", 2)

	output := buf.String()
	if !strings.Contains(output, "component=capture") {
		t.Errorf("expected component attribute, got %q", output)
	}
	if !strings.Contains(output, "index=2") {
		t.Errorf("expected index attribute, got %q", output)
	}
}

func TestWith_ReturnsLoggerWithAttrs(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{Output: buf})
	defer resetLogger()

	With("run", "abc").Info("test with attrs")

	if !strings.Contains(buf.String(), "run=abc") {
		t.Errorf("expected attributes in output, got %q", buf.String())
	}
}

func TestContextVariants(t *testing.T) {
	buf := &bytes.Buffer{}
	Init(Options{Debug: true, Output: buf})
	defer resetLogger()

	ctx := context.Background()
	DebugContext(ctx, "debug with context")
	InfoContext(ctx, "info with context")
	WarnContext(ctx, "warn with context")
	ErrorContext(ctx, "error with context")

	for _, msg := range []string{"debug with context", "info with context", "warn with context", "error with context"} {
		if !strings.Contains(buf.String(), msg) {
			t.Errorf("expected %q in output", msg)
		}
	}
}
