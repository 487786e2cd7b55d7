// Package configtree applies immutable updates to nested configuration trees.
package configtree

import (
	"strings"

	"bot-dashboard/internal/domain"
)

// Update returns a copy of tree with the value at path replaced. Every map
// on the path is shallow-copied, siblings are shared with tree, and tree
// itself is never modified. Missing or non-map intermediate nodes are
// replaced by new maps. An empty path returns tree unchanged.
func Update(tree domain.ConfigTree, path []string, value any) domain.ConfigTree {
	if len(path) == 0 {
		return tree
	}

	out := make(domain.ConfigTree, len(tree)+1)
	for k, v := range tree {
		out[k] = v
	}

	head := path[0]
	if len(path) == 1 {
		out[head] = value
		return out
	}

	child, _ := tree[head].(map[string]any)
	out[head] = Update(child, path[1:], value)
	return out
}

// Get returns the value at path and whether it exists.
func Get(tree domain.ConfigTree, path []string) (any, bool) {
	if len(path) == 0 {
		return tree, tree != nil
	}
	var node any = tree
	for _, key := range path {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		node, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return node, true
}

// ParsePath splits a dotted path such as "common.leverage".
func ParsePath(dotted string) []string {
	dotted = strings.TrimSpace(dotted)
	if dotted == "" {
		return nil
	}
	parts := strings.Split(dotted, ".")
	path := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			path = append(path, p)
		}
	}
	return path
}

// Clone deep-copies the map structure of tree. Slices are copied one level.
func Clone(tree domain.ConfigTree) domain.ConfigTree {
	if tree == nil {
		return nil
	}
	out := make(domain.ConfigTree, len(tree))
	for k, v := range tree {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return Clone(t)
	case []any:
		cp := make([]any, len(t))
		for i, e := range t {
			cp[i] = cloneValue(e)
		}
		return cp
	default:
		return v
	}
}
