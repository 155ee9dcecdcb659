package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnsupported is returned by the default injector.
var ErrUnsupported = errors.New("input injection is not supported on this host")

// Injector synthesizes keyboard and mouse input.
type Injector interface {
	TypeText(ctx context.Context, text string) error
	PressKey(ctx context.Context, key string) error
	Hotkey(ctx context.Context, keys []string) error
	Click(ctx context.Context, x, y *int, button string, clicks int) error
	MoveMouse(ctx context.Context, x, y int) error
	Scroll(ctx context.Context, amount int) error
}

type unsupportedInjector struct{}

func (unsupportedInjector) TypeText(context.Context, string) error               { return ErrUnsupported }
func (unsupportedInjector) PressKey(context.Context, string) error               { return ErrUnsupported }
func (unsupportedInjector) Hotkey(context.Context, []string) error               { return ErrUnsupported }
func (unsupportedInjector) Click(context.Context, *int, *int, string, int) error { return ErrUnsupported }
func (unsupportedInjector) MoveMouse(context.Context, int, int) error            { return ErrUnsupported }
func (unsupportedInjector) Scroll(context.Context, int) error                    { return ErrUnsupported }

const maxWait = 60 * time.Second

// InputController drives keyboard, mouse and media keys through an Injector.
type InputController struct {
	inj Injector
}

// NewInputController wraps inj; nil selects an injector that reports
// ErrUnsupported.
func NewInputController(inj Injector) *InputController {
	if inj == nil {
		inj = unsupportedInjector{}
	}
	return &InputController{inj: inj}
}

func (c *InputController) Name() string { return "input_controller" }

func (c *InputController) Actions() []string {
	return []string{
		"type_text", "press_key", "hotkey", "click", "move_mouse", "scroll", "wait",
		"media_play_pause", "media_next", "media_prev", "volume_up", "volume_down",
	}
}

var mediaKeys = map[string]string{
	"media_play_pause": "playpause",
	"media_next":       "nexttrack",
	"media_prev":       "prevtrack",
	"volume_up":        "volumeup",
	"volume_down":      "volumedown",
}

// Call returns an empty message on success; input actions have nothing to
// report.
func (c *InputController) Call(ctx context.Context, action string, params map[string]any) (string, error) {
	var err error
	switch action {
	case "type_text":
		err = c.inj.TypeText(ctx, stringParam(params, "text"))
	case "press_key":
		var key string
		if key, err = requireString(params, "key"); err == nil {
			err = c.inj.PressKey(ctx, strings.ToLower(key))
		}
	case "hotkey":
		keys := stringsParam(params, "keys")
		if len(keys) == 0 {
			return "", fmt.Errorf("missing required parameter %q", "keys")
		}
		err = c.inj.Hotkey(ctx, keys)
	case "click":
		button := stringParam(params, "button")
		if button == "" {
			button = "left"
		}
		err = c.inj.Click(ctx, optionalInt(params, "x"), optionalInt(params, "y"), button, intParam(params, "clicks", 1))
	case "move_mouse":
		err = c.inj.MoveMouse(ctx, intParam(params, "x", 0), intParam(params, "y", 0))
	case "scroll":
		err = c.inj.Scroll(ctx, intParam(params, "amount", 0))
	case "wait":
		err = Wait(ctx, floatParam(params, "seconds", 1))
	default:
		key, ok := mediaKeys[action]
		if !ok {
			return "", unknownAction(c.Name(), action)
		}
		err = c.inj.PressKey(ctx, key)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", action, err)
	}
	return "", nil
}

// Wait sleeps for seconds, capped at one minute, or until ctx is done.
func Wait(ctx context.Context, seconds float64) error {
	if seconds <= 0 {
		return nil
	}
	d := time.Duration(seconds * float64(time.Second))
	if d > maxWait {
		d = maxWait
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
