package tools

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
)

// Runner starts a detached process.
type Runner interface {
	Start(ctx context.Context, name string, args ...string) error
}

// ExecRunner starts processes with os/exec and does not wait for them.
type ExecRunner struct{}

func (ExecRunner) Start(ctx context.Context, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	return cmd.Process.Release()
}

// openerCommand returns the platform command that opens a URL or file with
// its default handler.
func openerCommand(goos, target string) (string, []string) {
	switch goos {
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}
	case "darwin":
		return "open", []string{target}
	default:
		return "xdg-open", []string{target}
	}
}

func currentOS() string { return runtime.GOOS }
