package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/samcharles93/luachat/internal/version"
)

func TestPrintVersion(t *testing.T) {
	t.Parallel()

	info := version.Info{Version: "v0.3.0", Commit: "0123456789abcdef", GoVersion: "go1.26.0", Modified: true}

	t.Run("text", func(t *testing.T) {
		var out bytes.Buffer
		if err := printVersion(&out, info, false); err != nil {
			t.Fatal(err)
		}
		got := out.String()
		for _, want := range []string{"v0.3.0 (0123456789ab-dirty)", "0123456789abcdef", "go1.26.0"} {
			if !strings.Contains(got, want) {
				t.Errorf("output missing %q:\n%s", want, got)
			}
		}
		if strings.Contains(got, "built") {
			t.Errorf("empty build time printed:\n%s", got)
		}
	})

	t.Run("json", func(t *testing.T) {
		var out bytes.Buffer
		if err := printVersion(&out, info, true); err != nil {
			t.Fatal(err)
		}
		var got version.Info
		if err := json.Unmarshal(out.Bytes(), &got); err != nil {
			t.Fatalf("decode %q: %v", out.String(), err)
		}
		if got != info {
			t.Fatalf("got %+v, want %+v", got, info)
		}
	})
}
