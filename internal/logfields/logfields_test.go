package logfields

import (
	"errors"
	"log/slog"
	"testing"
)

// TestHelperKeyNames verifies helper key stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attr    slog.Attr
	}{
		{"Service", KeyService, Service("api")},
		{"ServiceKind", KeyServiceKind, ServiceKind("backend")},
		{"Variant", KeyVariant, Variant("production")},
		{"SessionID", KeySessionID, SessionID("s1")},
		{"BuildID", KeyBuildID, BuildID("b1")},
		{"State", KeyState, State("running")},
		{"Path", KeyPath, Path("/tmp/x")},
		{"File", KeyFile, File("main.ts")},
		{"PID", KeyPID, PID(12)},
		{"ExitCode", KeyExitCode, ExitCode(2)},
		{"Command", KeyCommand, Command("node")},
		{"DurationMS", KeyDurationMS, DurationMS(1.5)},
		{"Count", KeyCount, Count(3)},
	}

	for _, tc := range cases {
		if tc.attr.Key != tc.attrKey {
			// Key drift would break log ingestion schemas.
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, tc.attr.Key)
		}
	}
}

func TestErrorHelper(t *testing.T) {
	if got := Error(nil).Value.String(); got != "" {
		t.Fatalf("expected empty value for nil error, got %q", got)
	}
	if got := Error(errors.New("boom")).Value.String(); got != "boom" {
		t.Fatalf("expected boom, got %q", got)
	}
}
