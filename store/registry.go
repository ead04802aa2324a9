// Package store holds the registry of record backends.
// Backend packages register a factory under a type name in their init functions,
// and callers create backends from configuration by that name.
package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/bobg/hashio"
)

// Factory creates a backend from a configuration map.
type Factory func(context.Context, map[string]interface{}) (hashio.Backend, error)

var registry = make(map[string]Factory)

// Register makes a backend type available to Create.
func Register(key string, f Factory) {
	registry[key] = f
}

// Create produces a backend of the type registered under key.
func Create(ctx context.Context, key string, conf map[string]interface{}) (hashio.Backend, error) {
	f, ok := registry[key]
	if !ok {
		return nil, fmt.Errorf("key %s not found in registry", key)
	}
	return f(ctx, conf)
}

// Types lists the registered backend types.
func Types() []string {
	result := make([]string, 0, len(registry))
	for k := range registry {
		result = append(result, k)
	}
	sort.Strings(result)
	return result
}
