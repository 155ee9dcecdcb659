// Package safety vets planned tool calls before they touch the machine.
package safety

import (
	"fmt"
	"strings"

	"github.com/anay-go/anay/pkg/assistant/profile"
)

// Guard validates actions against the configured keyword lists.
type Guard struct {
	criticalPaths  []string
	sensitiveTerms []string
	purchaseTerms  []string
	powerActions   []string
}

// New creates a guard from profile settings.
func New(cfg profile.Safety) *Guard {
	return &Guard{
		criticalPaths:  cfg.CriticalPaths,
		sensitiveTerms: lowerAll(cfg.SensitiveTerms),
		purchaseTerms:  lowerAll(cfg.PurchaseTerms),
		powerActions:   lowerAll(cfg.PowerActions),
	}
}

// Default returns a guard with the built-in lists.
func Default() *Guard {
	return New(profile.DefaultSafety())
}

var deleteActions = map[string]bool{
	"delete":      true,
	"remove":      true,
	"delete_item": true,
}

// Validate reports whether tool may run action with params. When it may
// not, reason explains why.
func (g *Guard) Validate(tool, action string, params map[string]any) (ok bool, reason string) {
	switch tool {
	case "file_manager":
		path := stringParam(params, "path")
		if deleteActions[strings.ToLower(action)] {
			return false, fmt.Sprintf("⚠️ SAFETY ALERT: Deleting files requires explicit confirmation. Action: %s on %s", action, path)
		}
		if path != "" {
			for _, critical := range g.criticalPaths {
				if hasPathPrefix(path, critical) {
					return false, fmt.Sprintf("⛔ BLOCKED: Cannot modify system critical paths: %s", critical)
				}
			}
		}

	case "system_control":
		subject := strings.ToLower(action + " " + stringParam(params, "command"))
		if containsAny(subject, g.powerActions) {
			return false, "⚠️ SAFETY ALERT: System power actions require confirmation."
		}

	case "browser_agent", "input_controller":
		text := strings.ToLower(flatten(params))
		if containsAny(text, g.sensitiveTerms) {
			return false, "⛔ BLOCKED: Sensitive data detection. I cannot type passwords or restricted info."
		}
		if containsAny(text, g.purchaseTerms) {
			return false, "⚠️ SAFETY ALERT: It looks like you're buying something. Please confirm action."
		}
	}
	return true, "Safe"
}

// AskConfirmation formats a permission request for a blocked action.
func AskConfirmation(description string) string {
	return fmt.Sprintf("✋ WAIT! I need your permission to: %s. Should I proceed? (Yes/No)", description)
}

func hasPathPrefix(path, prefix string) bool {
	norm := func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, `\`, "/"))
	}
	return strings.HasPrefix(norm(path), norm(prefix))
}

func stringParam(params map[string]any, key string) string {
	if v, ok := params[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

func flatten(params map[string]any) string {
	var b strings.Builder
	for k, v := range params {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fmt.Sprint(v))
		b.WriteByte(' ')
	}
	return b.String()
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
