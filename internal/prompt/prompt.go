// Package prompt loads the initial turns of a conversation from a file. The
// file holds a list of {role, message} entries under the "content" key, in
// YAML or JSON with comments.
package prompt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/samcharles93/luachat/internal/chat"
)

// ErrNoContent is returned for a prompt file without a "content" list.
var ErrNoContent = errors.New("prompt file has no content")

type file struct {
	Content []chat.Turn `json:"content" yaml:"content"`
}

// Load reads the turns in path. Files ending in .json or .jsonc are parsed as
// JSONC; anything else as YAML.
func Load(path string) ([]chat.Turn, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt: %w", err)
	}
	turns, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("prompt %s: %w", path, err)
	}
	return turns, nil
}

// Parse decodes prompt data. ext selects the format as in Load.
func Parse(data []byte, ext string) ([]chat.Turn, error) {
	var f file
	switch strings.ToLower(ext) {
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), &f); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	}
	if len(f.Content) == 0 {
		return nil, ErrNoContent
	}
	for i, t := range f.Content {
		if t.Role == "" {
			return nil, fmt.Errorf("content[%d]: missing role", i)
		}
	}
	return f.Content, nil
}
