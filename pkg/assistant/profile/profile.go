// Package profile loads the assistant's persona and tool settings from an
// optional YAML file.
package profile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPersona is the system prompt used for conversational turns.
const DefaultPersona = `You are ANAY, a highly capable and helpful AI assistant. You speak English only and stay professional and friendly.

Rules:
1. Never claim you did something unless it was actually executed.
2. Never invent file paths; use real absolute paths.
3. Never pretend to run commands; only acknowledge what was executed.
4. Admit it when you do not know something.
5. Wait for command results before describing them.

You can answer questions, remember the conversation, and run real system actions such as creating and reading files, launching apps, opening websites and playing music. Be truthful above all.`

// Profile configures the assistant.
type Profile struct {
	Name string `yaml:"name"`

	// Persona is the system prompt for conversational turns.
	Persona string `yaml:"persona"`

	// MemoryPairs bounds how many user/assistant pairs are remembered.
	MemoryPairs int `yaml:"memory_pairs"`

	// Workspace confines file tools. Empty means the user's home directory.
	Workspace string `yaml:"workspace"`

	// Apps maps spoken app names to the command that launches them.
	Apps map[string]string `yaml:"apps"`

	Safety Safety `yaml:"safety"`
}

// Safety lists the terms the safety guard matches against.
type Safety struct {
	CriticalPaths  []string `yaml:"critical_paths"`
	SensitiveTerms []string `yaml:"sensitive_terms"`
	PurchaseTerms  []string `yaml:"purchase_terms"`
	PowerActions   []string `yaml:"power_actions"`
}

// DefaultApps is the built-in launcher table.
func DefaultApps() map[string]string {
	return map[string]string{
		"calculator": "calc.exe",
		"notepad":    "notepad.exe",
		"chrome":     "chrome.exe",
		"explorer":   "explorer.exe",
		"cmd":        "cmd.exe",
		"spotify":    "spotify.exe",
		"code":       "code",
		"vscode":     "code",
		"vs code":    "code",
		"cursor":     "Cursor.exe",
	}
}

// DefaultSafety returns the built-in safety lists.
func DefaultSafety() Safety {
	return Safety{
		CriticalPaths: []string{
			`C:\Windows`, `C:\Program Files`, `C:\Program Files (x86)`,
			"C:/Windows", "C:/Program Files",
			"/bin", "/sbin", "/usr/bin", "/usr/sbin", "/etc",
		},
		SensitiveTerms: []string{"credit card", "cvv", "password", "social security"},
		PurchaseTerms:  []string{"buy", "checkout"},
		PowerActions:   []string{"shutdown", "restart", "format"},
	}
}

// Default returns the built-in profile.
func Default() Profile {
	return Profile{
		Name:        "ANAY",
		Persona:     DefaultPersona,
		MemoryPairs: 10,
		Apps:        DefaultApps(),
		Safety:      DefaultSafety(),
	}
}

// Load reads a profile from path, layering it over Default. An empty path
// or a missing file yields the defaults.
func Load(path string) (Profile, error) {
	p := Default()
	path = strings.TrimSpace(path)
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over Default.
func Parse(data []byte) (Profile, error) {
	var in Profile
	if err := yaml.Unmarshal(data, &in); err != nil {
		return Profile{}, fmt.Errorf("parse profile: %w", err)
	}
	return merge(Default(), in), nil
}

func merge(base, in Profile) Profile {
	if s := strings.TrimSpace(in.Name); s != "" {
		base.Name = s
	}
	if s := strings.TrimSpace(in.Persona); s != "" {
		base.Persona = s
	}
	if in.MemoryPairs > 0 {
		base.MemoryPairs = in.MemoryPairs
	}
	if s := strings.TrimSpace(in.Workspace); s != "" {
		base.Workspace = s
	}
	for name, cmd := range in.Apps {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || strings.TrimSpace(cmd) == "" {
			continue
		}
		base.Apps[name] = cmd
	}
	if len(in.Safety.CriticalPaths) > 0 {
		base.Safety.CriticalPaths = in.Safety.CriticalPaths
	}
	if len(in.Safety.SensitiveTerms) > 0 {
		base.Safety.SensitiveTerms = in.Safety.SensitiveTerms
	}
	if len(in.Safety.PurchaseTerms) > 0 {
		base.Safety.PurchaseTerms = in.Safety.PurchaseTerms
	}
	if len(in.Safety.PowerActions) > 0 {
		base.Safety.PowerActions = in.Safety.PowerActions
	}
	return base
}
