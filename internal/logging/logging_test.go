package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestParseLevel_AllBranches(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"trace", "trace"},
		{"debug", "debug"},
		{"info", "info"},
		{"warn", "warn"},
		{"warning", "warn"},
		{"error", "error"},
		{"", "info"},
		{"   nonsense   ", "info"},
	}
	for _, c := range cases {
		lvl := parseLevel(c.in)
		if strings.ToLower(lvl.String()) != c.want {
			t.Fatalf("parseLevel(%q) = %q, want %q", c.in, lvl, c.want)
		}
	}
}

func TestInit_Get_Named_C(t *testing.T) {
	var buf bytes.Buffer

	Init(Options{Level: "info", Format: "console", Component: "root", Writer: &buf})

	Get().Info().Str("k", "v").Msg("root-msg")
	Named("planner").Info().Msg("named-msg")

	ctx := WithSession(context.Background(), "sess-123")
	C(ctx).Info().Msg("ctx-msg")
	C(context.Background()).Info().Msg("ctx-empty")

	out := buf.String()

	for _, want := range []string{
		"root-msg", "named-msg", "ctx-msg", "ctx-empty",
		"component=", "planner",
		"session_id=", "sess-123",
		"service=", "bibliofind",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q\nfull output:\n%s", want, out)
		}
	}
}

func TestWithSession_EmptyIDLeavesContextUntouched(t *testing.T) {
	ctx := WithSession(context.Background(), "")
	if ctx.Value(keySessionID) != nil {
		t.Fatalf("expected no session_id value in context for empty id")
	}
}
