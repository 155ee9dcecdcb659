package planner

import (
	"context"
	"strings"
)

var simpleVerbs = map[string]string{
	"open":   "launch_app",
	"launch": "launch_app",
	"start":  "launch_app",
	"close":  "close_app",
}

// SimpleStep returns the single system_control step for "open|launch|start
// <known app>" and "close <known app>".
func (p *Planner) SimpleStep(text string) (Step, bool) {
	if p.apps == nil {
		return Step{}, false
	}
	verb, rest, ok := strings.Cut(strings.TrimSpace(text), " ")
	if !ok {
		return Step{}, false
	}
	action, ok := simpleVerbs[strings.ToLower(verb)]
	if !ok {
		return Step{}, false
	}
	app := strings.ToLower(strings.TrimSpace(strings.TrimRight(rest, ".!?")))
	app = strings.TrimPrefix(app, "the ")
	if app == "" || !p.apps.Known(app) {
		return Step{}, false
	}
	return Step{Tool: "system_control", Action: action, Params: map[string]any{"app_name": app}}, true
}

// IsSimple reports whether text can run without planning.
func (p *Planner) IsSimple(text string) bool {
	_, ok := p.SimpleStep(text)
	return ok
}

// ExecuteSimple runs a simple command without consulting the model.
func (p *Planner) ExecuteSimple(ctx context.Context, text string) (Result, error) {
	step, ok := p.SimpleStep(text)
	if !ok {
		return Result{Text: NoActionRequired}, nil
	}
	return p.Run(ctx, Plan{Steps: []Step{step}})
}
