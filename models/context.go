package models

import (
	"encoding/json"
	"sort"
	"sync"
)

// Context is the run-scoped store of step outputs, keyed by step id.
// It only grows: an id can be published once.
type Context struct {
	mu      sync.RWMutex
	entries map[string]map[string]any
	order   []string
}

func NewContext() *Context {
	return &Context{entries: make(map[string]map[string]any)}
}

// Publish stores the output of the step identified by id.
func (c *Context) Publish(id string, output map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[id]; exists {
		return ErrContextDuplicate(id)
	}
	if output == nil {
		output = map[string]any{}
	}
	c.entries[id] = output
	c.order = append(c.order, id)
	return nil
}

// Lookup returns the output published under id.
func (c *Context) Lookup(id string) (map[string]any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out, ok := c.entries[id]
	return out, ok
}

// Keys returns the published ids in publication order.
func (c *Context) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, len(c.order))
	copy(keys, c.order)
	return keys
}

func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Snapshot returns a deep copy of every published output.
func (c *Context) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := make(map[string]any, len(c.entries))
	for id, out := range c.entries {
		snap[id] = DeepCopy(out)
	}
	return snap
}

// ContextView is the step-local view of the Context: alias -> copy of the
// referenced output. Steps can not write through it.
type ContextView map[string]map[string]any

// Get returns the output bound to alias.
func (v ContextView) Get(alias string) (map[string]any, bool) {
	out, ok := v[alias]
	return out, ok
}

// Aliases returns the bound aliases, sorted.
func (v ContextView) Aliases() []string {
	aliases := make([]string, 0, len(v))
	for a := range v {
		aliases = append(aliases, a)
	}
	sort.Strings(aliases)
	return aliases
}

// Plain converts the view to a generic map, as handed to scripts and jq.
func (v ContextView) Plain() map[string]any {
	out := make(map[string]any, len(v))
	for alias, value := range v {
		out[alias] = DeepCopy(value)
	}
	return out
}

// DeepCopy clones JSON-like values (maps, slices, scalars). Other values
// are round-tripped through encoding/json.
func DeepCopy[T any](v T) T {
	copied, ok := deepCopyValue(any(v)).(T)
	if !ok {
		return v
	}
	return copied
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = deepCopyValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item).(map[string]any)
		}
		return out
	case string, bool, float64, float32, int, int64, int32, uint, uint64, json.Number:
		return val
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return val
		}
		var out any
		if err := json.Unmarshal(b, &out); err != nil {
			return val
		}
		return out
	}
}
