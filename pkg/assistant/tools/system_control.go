package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shirou/gopsutil/process"

	"github.com/anay-go/anay/pkg/assistant/execctx"
)

// ProcessKiller terminates processes by name and reports how many it killed.
type ProcessKiller interface {
	KillByName(ctx context.Context, name string) (int, error)
}

// SystemControl launches and closes applications and handles power actions.
type SystemControl struct {
	apps   map[string]string
	runner Runner
	killer ProcessKiller
	ctx    *execctx.Store
	goos   string
	logger *slog.Logger
}

// SystemOption configures a SystemControl.
type SystemOption func(*SystemControl)

func WithRunner(r Runner) SystemOption {
	return func(s *SystemControl) {
		if r != nil {
			s.runner = r
		}
	}
}

func WithProcessKiller(k ProcessKiller) SystemOption {
	return func(s *SystemControl) {
		if k != nil {
			s.killer = k
		}
	}
}

func WithSystemLogger(l *slog.Logger) SystemOption {
	return func(s *SystemControl) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithOS overrides the platform used to pick launch commands.
func WithOS(goos string) SystemOption {
	return func(s *SystemControl) {
		if goos != "" {
			s.goos = goos
		}
	}
}

// NewSystemControl creates a system tool with the given app alias table.
func NewSystemControl(apps map[string]string, ctx *execctx.Store, opts ...SystemOption) *SystemControl {
	table := make(map[string]string, len(apps))
	for k, v := range apps {
		table[strings.ToLower(strings.TrimSpace(k))] = v
	}
	if ctx == nil {
		ctx = execctx.NewMemory()
	}
	s := &SystemControl{
		apps:   table,
		runner: ExecRunner{},
		killer: gopsutilKiller{},
		ctx:    ctx,
		goos:   currentOS(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SystemControl) Name() string { return "system_control" }

func (s *SystemControl) Actions() []string {
	return []string{"launch_app", "close_app", "shutdown"}
}

func (s *SystemControl) Call(ctx context.Context, action string, params map[string]any) (string, error) {
	switch action {
	case "launch_app", "open_app":
		app, err := requireString(params, "app_name", "name", "app")
		if err != nil {
			return "", err
		}
		return s.LaunchApp(ctx, app)
	case "close_app":
		app, err := requireString(params, "app_name", "name", "app")
		if err != nil {
			return "", err
		}
		return s.CloseApp(ctx, app)
	case "shutdown":
		return s.Shutdown(ctx)
	default:
		return "", unknownAction(s.Name(), action)
	}
}

// Command returns the launch command for an app name, falling back to the
// name itself.
func (s *SystemControl) Command(app string) string {
	if cmd, ok := s.apps[strings.ToLower(strings.TrimSpace(app))]; ok {
		return cmd
	}
	return strings.TrimSpace(app)
}

// Known reports whether app is in the alias table.
func (s *SystemControl) Known(app string) bool {
	_, ok := s.apps[strings.ToLower(strings.TrimSpace(app))]
	return ok
}

func (s *SystemControl) LaunchApp(ctx context.Context, app string) (string, error) {
	cmd := s.Command(app)
	if cmd == "" {
		return "", fmt.Errorf("launch: empty app name")
	}
	var err error
	switch s.goos {
	case "windows":
		err = s.runner.Start(ctx, "cmd", "/C", "start", "", cmd)
	case "darwin":
		err = s.runner.Start(ctx, "open", "-a", cmd)
	default:
		fields := strings.Fields(cmd)
		err = s.runner.Start(ctx, fields[0], fields[1:]...)
	}
	if err != nil {
		return "", fmt.Errorf("launch %s: %w", app, err)
	}
	remember(s.ctx, s.logger, s.Name(), map[string]string{execctx.LastOpenedApp: app})
	return "Launched " + app, nil
}

// CloseApp kills every process whose name contains the app's command name.
func (s *SystemControl) CloseApp(ctx context.Context, app string) (string, error) {
	target := processName(s.Command(app))
	n, err := s.killer.KillByName(ctx, target)
	if err != nil {
		return "", fmt.Errorf("close %s: %w", app, err)
	}
	if n == 0 {
		return "No running process found for " + app, nil
	}
	return fmt.Sprintf("Closed %d instances of %s", n, app), nil
}

func (s *SystemControl) Shutdown(ctx context.Context) (string, error) {
	var err error
	switch s.goos {
	case "windows":
		err = s.runner.Start(ctx, "shutdown", "/s", "/t", "10")
	default:
		err = s.runner.Start(ctx, "shutdown", "-h", "+1")
	}
	if err != nil {
		return "", fmt.Errorf("shutdown: %w", err)
	}
	return "Initiating shutdown in 10s", nil
}

// processName reduces a launch command like "spotify:" or "calc.exe" to the
// string matched against running process names.
func processName(cmd string) string {
	cmd = strings.ToLower(strings.TrimSpace(cmd))
	if fields := strings.Fields(cmd); len(fields) > 0 {
		cmd = fields[0]
	}
	cmd = strings.TrimSuffix(cmd, ":")
	cmd = strings.TrimSuffix(cmd, ".exe")
	return cmd
}

type gopsutilKiller struct{}

func (gopsutilKiller) KillByName(ctx context.Context, name string) (int, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return 0, err
	}
	name = strings.ToLower(name)
	killed := 0
	for _, p := range procs {
		pname, err := p.NameWithContext(ctx)
		if err != nil || !strings.Contains(strings.ToLower(pname), name) {
			continue
		}
		if err := p.KillWithContext(ctx); err == nil {
			killed++
		}
	}
	return killed, nil
}
