package planner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/anay-go/anay/pkg/assistant/execctx"
	"github.com/anay-go/anay/pkg/assistant/tools"
	"github.com/anay-go/anay/pkg/core/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeLLM struct {
	mu   sync.Mutex
	text string
	err  error
	reqs []*types.ChatRequest
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) Generate(_ context.Context, req *types.ChatRequest) (*types.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &types.ChatResponse{Text: f.text}, nil
}

type call struct {
	action string
	params map[string]any
}

type fakeTool struct {
	name  string
	msgs  map[string]string
	errs  map[string]error
	calls []call
}

func (f *fakeTool) Name() string      { return f.name }
func (f *fakeTool) Actions() []string { return nil }

func (f *fakeTool) Call(_ context.Context, action string, params map[string]any) (string, error) {
	f.calls = append(f.calls, call{action, params})
	if err := f.errs[action]; err != nil {
		return "", err
	}
	return f.msgs[action], nil
}

type apps map[string]bool

func (a apps) Known(app string) bool { return a[app] }

func newPlanner(llm *fakeLLM, ts ...tools.Tool) (*Planner, *execctx.Store) {
	store := execctx.NewMemory()
	cfg := Config{
		Tools:     tools.NewRegistry(ts...),
		Context:   store,
		Apps:      apps{"notepad": true, "spotify": true},
		Workspace: "/home/anay",
	}
	if llm != nil {
		cfg.LLM = llm
	}
	return New(cfg), store
}

func TestParsePlan(t *testing.T) {
	raw := "Sure!\n```json\n{\"steps\": [{\"tool\": \"system_control\", \"action\": \"launch_app\", \"params\": {\"app_name\": \"notepad\"}}]}\n```"
	plan, err := ParsePlan(raw)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	require.Equal(t, "launch_app", plan.Steps[0].Action)
	require.Equal(t, "notepad", plan.Steps[0].Params["app_name"])

	plan, err = ParsePlan(`{ "steps": [] }`)
	require.NoError(t, err)
	require.Empty(t, plan.Steps)

	_, err = ParsePlan("I cannot help with that")
	require.Error(t, err)
}

func TestExecuteRunsPlan(t *testing.T) {
	llm := &fakeLLM{text: `{"steps": [
		{"tool": "system_control", "action": "launch_app", "params": {"app_name": "notepad"}},
		{"tool": "input_controller", "action": "wait", "params": {"seconds": 1}},
		{"tool": "file_manager", "action": "write_file", "params": {"path": "/home/anay/a.txt", "content": "hi"}}
	]}`}
	sys := &fakeTool{name: "system_control", msgs: map[string]string{"launch_app": "Launched notepad"}}
	input := &fakeTool{name: "input_controller"}
	files := &fakeTool{name: "file_manager", msgs: map[string]string{"write_file": "Successfully wrote to /home/anay/a.txt"}}
	p, store := newPlanner(llm, sys, input, files)

	res, err := p.Execute(context.Background(), "open notepad and write hi")
	require.NoError(t, err)
	require.Equal(t, "Launched notepad and Successfully wrote to /home/anay/a.txt", res.Text)
	require.Equal(t, 3, res.Steps)
	require.False(t, res.NoAction())
	require.Equal(t, res.Text, store.Get().LastTaskSummary)

	require.Len(t, llm.reqs, 1)
	req := llm.reqs[0]
	require.InDelta(t, 0.1, *req.Temperature, 1e-9)
	require.Equal(t, 1024, req.MaxTokens)
	require.Contains(t, req.System, `"last_task_summary"`)
	require.Contains(t, req.System, "/home/anay/Desktop")
	require.Equal(t, "User Request: open notepad and write hi\nJSON Plan:", req.Messages[0].Content)
}

func TestExecuteNoSteps(t *testing.T) {
	tests := []struct {
		name string
		llm  *fakeLLM
	}{
		{"empty plan", &fakeLLM{text: `{"steps": []}`}},
		{"unparseable", &fakeLLM{text: "Here is a joke"}},
		{"llm error", &fakeLLM{err: errors.New("boom")}},
		{"no llm", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newPlanner(tt.llm)
			res, err := p.Execute(context.Background(), "tell me a joke")
			require.NoError(t, err)
			require.True(t, res.NoAction())
		})
	}
}

func TestExecuteSafetyBlock(t *testing.T) {
	llm := &fakeLLM{text: `{"steps": [
		{"tool": "system_control", "action": "launch_app", "params": {"app_name": "notepad"}},
		{"tool": "file_manager", "action": "delete_item", "params": {"path": "/home/anay/a.txt"}}
	]}`}
	files := &fakeTool{name: "file_manager"}
	sys := &fakeTool{name: "system_control"}
	p, store := newPlanner(llm, files, sys)

	res, err := p.Execute(context.Background(), "open notepad then delete a.txt")
	require.NoError(t, err)
	require.True(t, res.Blocked)
	require.True(t, strings.HasPrefix(res.Text, "I couldn't complete the task because: "))
	require.Contains(t, res.Text, "Deleting files requires explicit confirmation")
	require.Len(t, sys.calls, 1)
	require.Empty(t, files.calls)
	require.Empty(t, store.Get().LastTaskSummary)
}

func TestExecuteStepError(t *testing.T) {
	llm := &fakeLLM{text: `{"steps": [
		{"tool": "file_manager", "action": "read_file", "params": {"path": "/home/anay/missing.txt"}},
		{"tool": "system_control", "action": "launch_app", "params": {"app_name": "notepad"}}
	]}`}
	files := &fakeTool{name: "file_manager", errs: map[string]error{"read_file": errors.New("no such file")}}
	sys := &fakeTool{name: "system_control"}
	p, _ := newPlanner(llm, files, sys)

	res, err := p.Execute(context.Background(), "read missing.txt")
	require.NoError(t, err)
	require.True(t, res.Failed)
	require.Equal(t, "Error executing step read_file: no such file", res.Text)
	require.Empty(t, sys.calls)
}

func TestExecuteUnknownTool(t *testing.T) {
	llm := &fakeLLM{text: `{"steps": [{"tool": "teleporter", "action": "beam", "params": {}}]}`}
	p, _ := newPlanner(llm)

	res, err := p.Execute(context.Background(), "beam me up")
	require.NoError(t, err)
	require.Equal(t, "Error executing step beam: unknown tool: teleporter", res.Text)
}

func TestExecuteOnlySilentStepsSaysDone(t *testing.T) {
	llm := &fakeLLM{text: `{"steps": [{"tool": "input_controller", "action": "press_key", "params": {"key": "enter"}}]}`}
	p, _ := newPlanner(llm, &fakeTool{name: "input_controller"})

	res, err := p.Execute(context.Background(), "press enter")
	require.NoError(t, err)
	require.Equal(t, "Done.", res.Text)
}

func TestExecuteCanceled(t *testing.T) {
	llm := &fakeLLM{text: `{"steps": [{"tool": "input_controller", "action": "press_key", "params": {"key": "enter"}}]}`}
	p, _ := newPlanner(llm, &fakeTool{name: "input_controller"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Execute(ctx, "press enter")
	require.ErrorIs(t, err, context.Canceled)
}

func TestSimpleCommands(t *testing.T) {
	sys := &fakeTool{name: "system_control", msgs: map[string]string{
		"launch_app": "Launched spotify",
		"close_app":  "Closed 1 instances of spotify",
	}}
	llm := &fakeLLM{text: `{"steps": []}`}
	p, _ := newPlanner(llm, sys)

	require.True(t, p.IsSimple("Open Spotify"))
	require.True(t, p.IsSimple("close notepad."))
	require.False(t, p.IsSimple("open my project folder"))
	require.False(t, p.IsSimple("open"))
	require.False(t, p.IsSimple("play spotify"))

	res, err := p.ExecuteSimple(context.Background(), "launch spotify")
	require.NoError(t, err)
	require.Equal(t, "Launched spotify", res.Text)

	res, err = p.ExecuteSimple(context.Background(), "close spotify")
	require.NoError(t, err)
	require.Equal(t, "Closed 1 instances of spotify", res.Text)
	require.Equal(t, "close_app", sys.calls[1].action)
	require.Equal(t, "spotify", sys.calls[1].params["app_name"])
	require.Empty(t, llm.reqs)
}

func TestResolveReferences(t *testing.T) {
	c := execctx.Context{
		LastCreatedFile:  "/w/created.txt",
		LastModifiedFile: "/w/modified.py",
		LastOpenedApp:    "notepad",
	}
	tests := []struct {
		name string
		in   string
		ctx  execctx.Context
		want string
	}{
		{"it", "open it", c, `open the file "/w/modified.py"`},
		{"that file", "Delete that file now", c, `Delete the file "/w/modified.py" now`},
		{"fix the code", "fix the code", c, `fix the code in "/w/modified.py"`},
		{"that app", "close that app", c, "close notepad"},
		{"close it", "close it", c, "close notepad"},
		{"no context", "open it", execctx.Context{}, "open it"},
		{"created only", "read the file", execctx.Context{LastCreatedFile: "/w/new.md"}, `read the file "/w/new.md"`},
		{"no pronoun", "edit notes", c, "edit notes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ResolveReferences(tt.in, tt.ctx))
		})
	}
}
