// Package tools implements the actions the task planner can schedule.
package tools

import (
	"context"
	"fmt"
	"sort"
)

// Tool executes named actions.
type Tool interface {
	Name() string
	Actions() []string
	Call(ctx context.Context, action string, params map[string]any) (string, error)
}

// Registry dispatches calls by tool name.
type Registry struct {
	byName map[string]Tool
}

// NewRegistry registers tools; nil entries are skipped.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{byName: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if t == nil {
			continue
		}
		r.byName[t.Name()] = t
	}
	return r
}

// Names returns registered tool names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Has(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.byName[name]
	return ok
}

// Call runs action on the named tool.
func (r *Registry) Call(ctx context.Context, tool, action string, params map[string]any) (string, error) {
	if r == nil {
		return "", fmt.Errorf("tool registry is not configured")
	}
	t, ok := r.byName[tool]
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", tool)
	}
	if params == nil {
		params = map[string]any{}
	}
	return t.Call(ctx, action, params)
}

// Describe lists each tool with its actions, for planning prompts.
func (r *Registry) Describe() map[string][]string {
	out := make(map[string][]string, len(r.byName))
	for name, t := range r.byName {
		out[name] = t.Actions()
	}
	return out
}

func unknownAction(tool, action string) error {
	return fmt.Errorf("unknown action: %s in %s", action, tool)
}
