package configtree

import (
	_ "embed"
	"fmt"
	"os"

	"bot-dashboard/internal/domain"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// LoadDefaults returns the built-in default configuration tree. When path is
// set, the file at path is decoded and laid over the built-in tree leaf by
// leaf.
func LoadDefaults(path string) (domain.ConfigTree, error) {
	base, err := decode(defaultsYAML)
	if err != nil {
		return nil, fmt.Errorf("decode built-in defaults: %w", err)
	}
	if path == "" {
		return base, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read defaults %s: %w", path, err)
	}
	override, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode defaults %s: %w", path, err)
	}
	return overlay(base, override, nil), nil
}

// MustDefaults returns the built-in defaults and panics if the embedded file
// is broken.
func MustDefaults() domain.ConfigTree {
	tree, err := LoadDefaults("")
	if err != nil {
		panic(err)
	}
	return tree
}

func decode(data []byte) (domain.ConfigTree, error) {
	tree := domain.ConfigTree{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

func overlay(base, override domain.ConfigTree, prefix []string) domain.ConfigTree {
	out := base
	for k, v := range override {
		path := append(append([]string(nil), prefix...), k)
		if sub, ok := v.(map[string]any); ok {
			out = overlay(out, sub, path)
			continue
		}
		out = Update(out, path, v)
	}
	return out
}
