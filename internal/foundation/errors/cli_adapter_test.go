package errors

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

type exitErr struct{ code int }

func (e exitErr) Error() string { return fmt.Sprintf("exit status %d", e.code) }
func (e exitErr) ExitCode() int { return e.code }

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: 0},
		{name: "config error", err: ConfigError("bad config").Build(), expected: 1},
		{name: "build error", err: BuildError("compile failed").Build(), expected: 1},
		{name: "validation error", err: ValidationError("bad env").Build(), expected: 1},
		{name: "unclassified", err: errors.New("unknown"), expected: 1},
		{name: "child exit code", err: fmt.Errorf("build step: %w", exitErr{code: 3}), expected: 3},
		{
			name:     "child exit code under classified",
			err:      ProcessError("one-shot build failed").WithCause(exitErr{code: 42}).Build(),
			expected: 42,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.ExitCodeFor(tt.err); got != tt.expected {
				t.Errorf("ExitCodeFor() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCLIErrorAdapter_Report(t *testing.T) {
	var out bytes.Buffer
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	adapter := NewCLIErrorAdapter(false, logger).WithOutput(&out)

	code := adapter.Report(NotFoundError("configuration file not found").WithContext("path", "x.yaml").Build())

	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(out.String(), "configuration file not found") {
		t.Errorf("expected user message, got %q", out.String())
	}
	if !strings.Contains(logs.String(), "severity=fatal") {
		t.Errorf("expected severity in log output, got %q", logs.String())
	}
	if !strings.Contains(logs.String(), "path=x.yaml") {
		t.Errorf("expected context in log output, got %q", logs.String())
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	quiet := NewCLIErrorAdapter(false, slog.Default())
	verbose := NewCLIErrorAdapter(true, slog.Default())
	err := ArtifactError("path-mapping file is not valid JSON").WithCause(errors.New("unexpected EOF")).Build()

	if got := quiet.FormatError(err); !strings.HasPrefix(got, "Error (artifact): path-mapping file is not valid JSON") {
		t.Errorf("unexpected quiet format: %q", got)
	}
	if got := verbose.FormatError(err); !strings.Contains(got, "[artifact:fatal]") {
		t.Errorf("unexpected verbose format: %q", got)
	}
	if got := quiet.FormatError(nil); got != "" {
		t.Errorf("expected empty string for nil, got %q", got)
	}
}
