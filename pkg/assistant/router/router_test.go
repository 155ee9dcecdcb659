package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anay-go/anay/pkg/assistant/planner"
)

type fakeExecutor struct {
	simple     bool
	result     planner.Result
	err        error
	simpleRuns int
	planRuns   int
}

func (f *fakeExecutor) IsSimple(string) bool { return f.simple }

func (f *fakeExecutor) ExecuteSimple(context.Context, string) (planner.Result, error) {
	f.simpleRuns++
	return f.result, f.err
}

func (f *fakeExecutor) Execute(context.Context, string) (planner.Result, error) {
	f.planRuns++
	return f.result, f.err
}

func TestIsTask(t *testing.T) {
	r := New(&fakeExecutor{}, nil)
	for _, in := range []string{"Open Chrome", "  launch calculator", "shut down the pc", "go to github.com", "Create file notes.txt"} {
		require.True(t, r.IsTask(in), in)
	}
	for _, in := range []string{"tell me a joke", "can you open chrome", "what is the weather"} {
		require.False(t, r.IsTask(in), in)
	}
}

func TestRoute(t *testing.T) {
	ctx := context.Background()

	t.Run("conversational", func(t *testing.T) {
		exec := &fakeExecutor{}
		handled, reply := New(exec, nil).Route(ctx, "tell me a joke")
		require.False(t, handled)
		require.Empty(t, reply)
		require.Zero(t, exec.planRuns+exec.simpleRuns)
	})

	t.Run("simple", func(t *testing.T) {
		exec := &fakeExecutor{simple: true, result: planner.Result{Text: "Launched chrome"}}
		handled, reply := New(exec, nil).Route(ctx, "open chrome")
		require.True(t, handled)
		require.Equal(t, "Launched chrome", reply)
		require.Equal(t, 1, exec.simpleRuns)
		require.Zero(t, exec.planRuns)
	})

	t.Run("planned", func(t *testing.T) {
		exec := &fakeExecutor{result: planner.Result{Text: "Done."}}
		handled, reply := New(exec, nil).Route(ctx, "type hello world")
		require.True(t, handled)
		require.Equal(t, "Done.", reply)
		require.Equal(t, 1, exec.planRuns)
	})

	t.Run("no action", func(t *testing.T) {
		exec := &fakeExecutor{result: planner.Result{Text: planner.NoActionRequired}}
		handled, _ := New(exec, nil).Route(ctx, "search your feelings")
		require.False(t, handled)
	})

	t.Run("failure", func(t *testing.T) {
		exec := &fakeExecutor{err: errors.New("context canceled")}
		handled, reply := New(exec, nil).Route(ctx, "open chrome")
		require.True(t, handled)
		require.Equal(t, "Command execution failed: context canceled", reply)
	})

	t.Run("disabled", func(t *testing.T) {
		handled, _ := New(nil, nil).Route(ctx, "open chrome")
		require.False(t, handled)
	})
}
