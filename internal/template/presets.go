package template

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/samcharles93/luachat/internal/chat"
)

var chatML = Preset{
	Name:         "chatml",
	HeaderPrefix: "<|im_start|>",
	HeaderSuffix: "\n",
	EndOfContent: "<|im_end|>\n",
	Stops:        []string{"<|im_end|>"},
}

var presets = map[string]Preset{
	"chatml": chatML,
	"qwen":   named(chatML, "qwen"),
	"hermes2pro": {
		Name:         "hermes2pro",
		HeaderPrefix: "<|im_start|>",
		HeaderSuffix: "\n",
		EndOfContent: "<|im_end|>\n",
		Stops:        []string{"<|im_end|>", "<|im_start|>"},
	},
	"llama3": {
		Name:         "llama3",
		HeaderPrefix: "<|start_header_id|>",
		HeaderSuffix: "<|end_header_id|>\n\n",
		EndOfContent: "<|eot_id|>",
		Stops:        []string{"<|eot_id|>", "<|end_of_text|>"},
	},
	"gemma2": {
		Name:         "gemma2",
		HeaderPrefix: "<start_of_turn>",
		HeaderSuffix: "\n",
		EndOfContent: "<end_of_turn>\n",
		Stops:        []string{"<end_of_turn>"},
		RoleNames:    map[chat.Role]string{chat.RoleAssistant: "model"},
	},
}

func named(p Preset, name string) Preset {
	p.Name = name
	return p
}

// Lookup returns the preset registered under name.
func Lookup(name string) (Preset, error) {
	p, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Preset{}, fmt.Errorf("%q: %w (known: %s)", name, ErrUnknownPreset, strings.Join(Names(), ", "))
	}
	p.Stops = slices.Clone(p.Stops)
	p.RoleNames = maps.Clone(p.RoleNames)
	return p, nil
}

// Names lists the registered presets in sorted order.
func Names() []string {
	return slices.Sorted(maps.Keys(presets))
}
