// Package router decides whether an utterance is a desktop task and, if so,
// hands it to the planner.
package router

import (
	"context"
	"log/slog"
	"strings"

	"github.com/anay-go/anay/pkg/assistant/planner"
)

// TaskKeywords are the prefixes that mark an utterance as a task.
var TaskKeywords = []string{
	"open", "launch", "start", "close", "shut down", "restart",
	"type", "click", "scroll", "press",
	"search", "browse", "go to",
	"create file", "delete", "read", "write", "folder",
}

// Executor is the planner surface the router needs.
type Executor interface {
	IsSimple(text string) bool
	ExecuteSimple(ctx context.Context, text string) (planner.Result, error)
	Execute(ctx context.Context, text string) (planner.Result, error)
}

type Router struct {
	exec     Executor
	keywords []string
	logger   *slog.Logger
}

// New creates a router. A nil executor disables routing.
func New(exec Executor, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{exec: exec, keywords: TaskKeywords, logger: logger}
}

// IsTask reports whether text starts with a task keyword.
func (r *Router) IsTask(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, k := range r.keywords {
		if strings.HasPrefix(lower, k) {
			return true
		}
	}
	return false
}

// Route executes text when it looks like a task. handled is false for
// conversational input and for tasks the planner found nothing to do for.
func (r *Router) Route(ctx context.Context, text string) (handled bool, reply string) {
	if r == nil || r.exec == nil || !r.IsTask(text) {
		return false, ""
	}
	r.logger.Info("routing to planner", "text", text)

	var (
		res planner.Result
		err error
	)
	if r.exec.IsSimple(text) {
		res, err = r.exec.ExecuteSimple(ctx, text)
	} else {
		res, err = r.exec.Execute(ctx, text)
	}
	if err != nil {
		r.logger.Error("command routing failed", "error", err)
		return true, "Command execution failed: " + err.Error()
	}
	if res.NoAction() {
		return false, ""
	}
	return true, res.Text
}
