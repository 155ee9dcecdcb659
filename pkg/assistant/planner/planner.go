// Package planner turns a natural-language request into tool steps and runs
// them.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/anay-go/anay/pkg/assistant/execctx"
	"github.com/anay-go/anay/pkg/assistant/safety"
	"github.com/anay-go/anay/pkg/assistant/tools"
	"github.com/anay-go/anay/pkg/core"
	"github.com/anay-go/anay/pkg/core/types"
)

// NoActionRequired is the result text when the request is conversational.
const NoActionRequired = "NO_ACTION_REQUIRED"

const (
	planTemperature = 0.1
	planMaxTokens   = 1024
)

// Step is one tool invocation.
type Step struct {
	Tool   string         `json:"tool"`
	Action string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
}

// Plan is an ordered list of steps. An empty plan means nothing to do.
type Plan struct {
	Steps []Step `json:"steps"`
}

// Result is the outcome of executing a request.
type Result struct {
	Text    string `json:"text"`
	Steps   int    `json:"steps"`
	Blocked bool   `json:"blocked,omitempty"`
	Failed  bool   `json:"failed,omitempty"`
}

// NoAction reports whether the request produced no plan.
func (r Result) NoAction() bool { return r.Text == NoActionRequired }

// AppCatalog reports whether an app name is a known launch target.
type AppCatalog interface {
	Known(app string) bool
}

// Config wires a Planner. LLM may be nil, in which case every request other
// than a simple command yields NoActionRequired.
type Config struct {
	LLM       core.Provider
	Model     string
	Tools     *tools.Registry
	Guard     *safety.Guard
	Context   *execctx.Store
	Apps      AppCatalog
	Workspace string
	Logger    *slog.Logger
}

// Planner plans and executes desktop tasks.
type Planner struct {
	llm       core.Provider
	model     string
	tools     *tools.Registry
	guard     *safety.Guard
	ctx       *execctx.Store
	apps      AppCatalog
	workspace string
	logger    *slog.Logger
}

func New(cfg Config) *Planner {
	p := &Planner{
		llm:       cfg.LLM,
		model:     cfg.Model,
		tools:     cfg.Tools,
		guard:     cfg.Guard,
		ctx:       cfg.Context,
		apps:      cfg.Apps,
		workspace: cfg.Workspace,
		logger:    cfg.Logger,
	}
	if p.guard == nil {
		p.guard = safety.Default()
	}
	if p.ctx == nil {
		p.ctx = execctx.NewMemory()
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Execute resolves references, plans and runs the request. The returned
// error is non-nil only when ctx ends.
func (p *Planner) Execute(ctx context.Context, prompt string) (Result, error) {
	current := p.ctx.Get()
	refined := ResolveReferences(prompt, current)
	p.logger.Info("planning task", "prompt", prompt, "refined", refined)

	plan := p.GeneratePlan(ctx, refined, current)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if len(plan.Steps) == 0 {
		p.logger.Info("no execution steps; treating as conversational")
		return Result{Text: NoActionRequired}, nil
	}
	return p.Run(ctx, plan)
}

// Run executes plan steps in order. The first safety block or step error
// stops execution.
func (p *Planner) Run(ctx context.Context, plan Plan) (Result, error) {
	var messages []string
	for i, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return Result{Steps: i}, err
		}
		if ok, reason := p.guard.Validate(step.Tool, step.Action, step.Params); !ok {
			p.logger.Warn("safety block", "tool", step.Tool, "action", step.Action, "reason", reason)
			return Result{Text: "I couldn't complete the task because: " + reason, Steps: i, Blocked: true}, nil
		}

		msg, err := p.tools.Call(ctx, step.Tool, step.Action, step.Params)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return Result{Steps: i}, err
			}
			p.logger.Error("step failed", "tool", step.Tool, "action", step.Action, "error", err)
			return Result{Text: fmt.Sprintf("Error executing step %s: %v", step.Action, err), Steps: i, Failed: true}, nil
		}
		if msg = strings.TrimSpace(msg); msg != "" {
			messages = append(messages, msg)
		}
	}

	summary := "Done."
	if len(messages) > 0 {
		summary = strings.Join(messages, " and ")
	}
	if err := p.ctx.Update(map[string]string{execctx.LastTaskSummary: summary}); err != nil {
		p.logger.Warn("persist task summary", "error", err)
	}
	return Result{Text: summary, Steps: len(plan.Steps)}, nil
}

// GeneratePlan asks the model for a JSON plan. Any failure yields an empty
// plan.
func (p *Planner) GeneratePlan(ctx context.Context, prompt string, current execctx.Context) Plan {
	if p.llm == nil {
		p.logger.Warn("no language model configured for planning")
		return Plan{}
	}
	resp, err := p.llm.Generate(ctx, &types.ChatRequest{
		Model:       p.model,
		System:      SystemPrompt(current, p.workspace),
		Messages:    []types.Message{types.UserMessage(userPrompt(prompt))},
		Temperature: types.Float64(planTemperature),
		MaxTokens:   planMaxTokens,
	})
	if err != nil {
		p.logger.Error("planning request failed", "error", err)
		return Plan{}
	}
	plan, err := ParsePlan(resp.Text)
	if err != nil {
		p.logger.Error("plan parse failed", "error", err, "raw", resp.Text)
		return Plan{}
	}
	return plan
}

var (
	reFileRef = regexp.MustCompile(`(?i)\b(it|that file|the file)\b`)
	reAppRef  = regexp.MustCompile(`(?i)\bthat app\b`)
	reCloseIt = regexp.MustCompile(`(?i)^\s*close it\b`)
)

// ResolveReferences replaces pronouns with the files and apps recorded in
// the execution context.
func ResolveReferences(text string, c execctx.Context) string {
	lower := strings.ToLower(text)
	file := c.TargetFile()
	app := c.LastOpenedApp

	if app != "" && reCloseIt.MatchString(text) {
		return reCloseIt.ReplaceAllLiteralString(text, "close "+app)
	}
	if file != "" && (strings.Contains(lower, " it") || strings.Contains(lower, "that file") || strings.Contains(lower, "the file")) {
		text = reFileRef.ReplaceAllLiteralString(text, `the file "`+file+`"`)
	}
	if file != "" && (strings.Contains(lower, "fix the code") || strings.Contains(lower, "modify the code")) {
		text = strings.ReplaceAll(text, "the code", `the code in "`+file+`"`)
	}
	if app != "" && strings.Contains(lower, "that app") {
		text = reAppRef.ReplaceAllLiteralString(text, app)
	}
	return text
}
