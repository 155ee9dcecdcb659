package tools

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Browser opens URLs with the platform's default handler.
type Browser struct {
	runner Runner
	goos   string
}

func NewBrowser(runner Runner) *Browser {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Browser{runner: runner, goos: currentOS()}
}

func (b *Browser) Name() string { return "browser_agent" }

func (b *Browser) Actions() []string { return []string{"open_url", "search"} }

func (b *Browser) Call(ctx context.Context, action string, params map[string]any) (string, error) {
	switch action {
	case "open_url", "open_website":
		raw, err := requireString(params, "url")
		if err != nil {
			return "", err
		}
		return b.OpenURL(ctx, raw)
	case "search", "search_google":
		query, err := requireString(params, "query")
		if err != nil {
			return "", err
		}
		return b.Search(ctx, query, stringParam(params, "site", "engine"))
	default:
		return "", unknownAction(b.Name(), action)
	}
}

func (b *Browser) OpenURL(ctx context.Context, raw string) (string, error) {
	u := NormalizeURL(raw)
	if err := b.open(ctx, u); err != nil {
		return "", err
	}
	return "Opened " + u, nil
}

// Search opens a results page. site "youtube" searches YouTube; anything
// else uses Google.
func (b *Browser) Search(ctx context.Context, query, site string) (string, error) {
	var u, engine string
	switch strings.ToLower(strings.TrimSpace(site)) {
	case "youtube":
		u, engine = "https://www.youtube.com/results?search_query="+url.QueryEscape(query), "YouTube"
	default:
		u, engine = "https://www.google.com/search?q="+url.QueryEscape(query), "Google"
	}
	if err := b.open(ctx, u); err != nil {
		return "", err
	}
	return fmt.Sprintf("Searched %s for %s", engine, query), nil
}

func (b *Browser) open(ctx context.Context, target string) error {
	name, args := openerCommand(b.goos, target)
	if err := b.runner.Start(ctx, name, args...); err != nil {
		return fmt.Errorf("open %s: %w", target, err)
	}
	return nil
}

// NormalizeURL adds an https scheme to bare hosts.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return "https://" + raw
}
