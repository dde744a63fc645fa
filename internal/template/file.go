package template

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a custom Preset from a YAML file. A preset may extend a
// registered one through the "base" key, overriding only the fields it sets.
//
//	base: chatml
//	name: mychatml
//	stops: ["<|im_end|>", "</s>"]
func LoadFile(path string) (Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Preset{}, fmt.Errorf("read template: %w", err)
	}

	var head struct {
		Base string `yaml:"base"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return Preset{}, fmt.Errorf("parse template %s: %w", path, err)
	}

	var p Preset
	if head.Base != "" {
		if p, err = Lookup(head.Base); err != nil {
			return Preset{}, fmt.Errorf("template %s: %w", path, err)
		}
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Preset{}, fmt.Errorf("parse template %s: %w", path, err)
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := p.Validate(); err != nil {
		return Preset{}, err
	}
	return p, nil
}

// Resolve returns a registered preset by name, or loads one from a file when
// name looks like a path.
func Resolve(name string) (Preset, error) {
	if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") || strings.ContainsRune(name, os.PathSeparator) {
		return LoadFile(name)
	}
	return Lookup(name)
}
