package prompt

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/samcharles93/luachat/internal/chat"
)

func TestLoad(t *testing.T) {
	t.Parallel()

	want := []chat.Turn{
		{Role: chat.RoleSystem, Message: "You write Lua."},
		{Role: chat.RoleUser, Message: "hi"},
		{Role: "observer", Message: "note"},
	}
	files := map[string]string{
		"prompt.yaml": "content:\n  - role: system\n    message: You write Lua.\n  - role: User\n    message: hi\n  - role: observer\n    message: note\n",
		"prompt.jsonc": `{
	// the system prompt
	"content": [
		{"role": "system", "message": "You write Lua."},
		{"role": "user", "message": "hi"},
		{"role": "observer", "message": "note"}, /* trailing comma */
	]
}`,
	}
	dir := t.TempDir()
	for name, body := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}
			got, err := Load(path)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("got %+v\nwant %+v", got, want)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	if _, err := Parse([]byte("other: 1\n"), ".yaml"); !errors.Is(err, ErrNoContent) {
		t.Fatalf("expected ErrNoContent, got %v", err)
	}
	if _, err := Parse([]byte(`{"content":[{"message":"x"}]}`), ".json"); err == nil {
		t.Fatalf("expected missing role error")
	}
	if _, err := Parse([]byte("content: [unclosed"), ".yml"); err == nil {
		t.Fatalf("expected yaml error")
	}
}
