// Package intent recognises desktop commands in what the user said, so the
// client can act on them even when the language model is unavailable.
package intent

import (
	"regexp"
	"strconv"
	"strings"
)

// Type names a recognised command.
type Type string

const (
	LaunchApp     Type = "launch_app"
	CreateFile    Type = "create_file"
	ReadFile      Type = "read_file"
	OpenFile      Type = "open_file"
	OpenFolder    Type = "open_folder"
	CaptureScreen Type = "capture_screen"
	AnalyzeScreen Type = "analyze_screen"
	ActiveWindow  Type = "get_active_window"
	PlaySpotify   Type = "play_spotify"
	SystemInfo    Type = "system_info"
	BatteryStatus Type = "battery_status"
	RunningProcs  Type = "running_processes"
	TypeText      Type = "type_text"
	PressKey      Type = "press_key"
	Hotkey        Type = "hotkey"
	ClickMouse    Type = "click_mouse"
	Scroll        Type = "scroll"
	OpenBrowser   Type = "open_browser"
)

const (
	defaultScrollClicks = 3
	defaultFileLocation = "desktop"
)

// Command is a recognised action with its arguments. Only the fields that
// apply to Type are set.
type Command struct {
	Type      Type     `json:"type"`
	Name      string   `json:"name,omitempty"`
	Path      string   `json:"path,omitempty"`
	Content   string   `json:"content,omitempty"`
	Query     string   `json:"query,omitempty"`
	URL       string   `json:"url,omitempty"`
	Text      string   `json:"text,omitempty"`
	Key       string   `json:"key,omitempty"`
	Keys      []string `json:"keys,omitempty"`
	X         *int     `json:"x,omitempty"`
	Y         *int     `json:"y,omitempty"`
	Button    string   `json:"button,omitempty"`
	Clicks    int      `json:"clicks,omitempty"`
	Direction string   `json:"direction,omitempty"`
}

// KnownApps are matched, in order, for launch_app.
var KnownApps = []string{
	"notepad", "calculator", "paint", "vscode", "chrome", "brave",
	"firefox", "edge", "spotify", "whatsapp", "telegram", "discord",
	"vlc", "word", "excel", "powerpoint",
}

var typoFixes = strings.NewReplacer(
	"oprn", "open",
	"opne", "open",
	"sptify", "spotify",
	"whtsapp", "whatsapp",
	"comapnies", "companies",
)

var (
	reFilenameNamed  = regexp.MustCompile(`(?i)file\s+(?:called|named)?\s*([\w\-.]+\.\w+)`)
	reFilenameSimple = regexp.MustCompile(`(?i)([\w\-]+\.txt|[\w\-]+\.py|[\w\-]+\.json)`)
	reFileContent    = regexp.MustCompile(`(?i)(?:with|containing|add|and add)\s+(.+?)\s*$`)
	reTrailingPlace  = regexp.MustCompile(`(?i)\s+(?:on|in|to)\s+(?:desktop|d drive|c drive|documents).*$`)
	reOpenFilePath   = regexp.MustCompile(`(?i)(?:open\s+file|file)\s+(.+?)$`)
	reSpotifyQuery   = regexp.MustCompile(`(?i)play\s+(.+?)(?:\s+on\s+spotify|$)`)
	reOnSpotify      = regexp.MustCompile(`(?i)\s+on\s+spotify$`)
	reTypeText       = regexp.MustCompile(`(?i)(?:type|write)\s+(.+?)$`)
	rePressKey       = regexp.MustCompile(`(?i)(?:press|hit)\s+(\w+)`)
	reHotkey         = regexp.MustCompile(`(?i)((?:ctrl|alt|shift|win)(?:\+\w+)+)`)
	reClickAt        = regexp.MustCompile(`(?i)click\s+(?:at\s+)?\(?([0-9]+)\s*,\s*([0-9]+)\)?`)
	reScrollAmount   = regexp.MustCompile(`(?i)scroll\s+(?:down|up)?\s*([0-9]+)`)
)

const topITCompanies = `1. Microsoft
2. Apple
3. Amazon
4. Alphabet (Google)
5. Meta Platforms
6. NVIDIA
7. Oracle
8. IBM
9. Salesforce
10. Accenture`

// Extract finds a command in userMessage. aiResponse is accepted so callers
// can pass the model's reply; matching is driven by the user's words.
// It returns nil when nothing matches.
func Extract(userMessage, aiResponse string) *Command {
	if strings.TrimSpace(userMessage) == "" {
		return nil
	}
	msg := typoFixes.Replace(strings.ToLower(strings.TrimSpace(userMessage)))

	for _, match := range []func(string, string) *Command{
		matchLaunchApp,
		matchCreateFile,
		matchReadFile,
		matchOpenFile,
		matchOpenFolder,
		matchScreen,
		matchSpotify,
		matchSystem,
		matchKeyboard,
		matchMouse,
		matchBrowser,
	} {
		if cmd := match(msg, userMessage); cmd != nil {
			return cmd
		}
	}
	return nil
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func matchLaunchApp(msg, _ string) *Command {
	if !containsAny(msg, "open", "launch", "start") {
		return nil
	}
	for _, app := range KnownApps {
		if strings.Contains(msg, app) {
			return &Command{Type: LaunchApp, Name: app}
		}
	}
	return nil
}

func matchCreateFile(msg, raw string) *Command {
	if !containsAny(msg, "create file", "make file", "make a") {
		return nil
	}
	m := reFilenameNamed.FindStringSubmatch(raw)
	if m == nil {
		m = reFilenameSimple.FindStringSubmatch(raw)
	}
	if m == nil {
		return nil
	}
	filename := m[1]

	location := defaultFileLocation
	switch {
	case containsAny(msg, "d drive", "d:"):
		location = `D:\`
	case containsAny(msg, "c drive", "c:"):
		location = `C:\`
	case strings.Contains(msg, "desktop"):
		location = "desktop"
	case strings.Contains(msg, "documents"):
		location = "documents"
	case strings.Contains(msg, "downloads"):
		location = "downloads"
	}

	var content string
	if containsAny(msg, "with", "containing", "add") {
		if cm := reFileContent.FindStringSubmatch(raw); cm != nil {
			content = reTrailingPlace.ReplaceAllString(strings.TrimSpace(cm[1]), "")
		}
	}
	if strings.Contains(msg, "top 10") && containsAny(msg, "it comp", "companies") {
		content = topITCompanies
	}

	path := location + "/" + filename
	if strings.HasSuffix(location, `\`) {
		path = location + filename
	}
	return &Command{Type: CreateFile, Path: path, Content: content}
}

// restAfter returns the words following the first word equal to one of
// keys, case-insensitively.
func restAfter(raw string, keys ...string) (string, bool) {
	parts := strings.Fields(raw)
	for i, part := range parts {
		lower := strings.ToLower(part)
		for _, k := range keys {
			if lower == k && i+1 < len(parts) {
				return strings.Join(parts[i+1:], " "), true
			}
		}
	}
	return "", false
}

func matchReadFile(msg, raw string) *Command {
	if !containsAny(msg, "read file", "show file", "file content") {
		return nil
	}
	if path, ok := restAfter(raw, "file"); ok {
		return &Command{Type: ReadFile, Path: path}
	}
	return nil
}

func matchOpenFile(msg, raw string) *Command {
	if !containsAny(msg, "open file", "file open") || strings.Contains(msg, "it") {
		return nil
	}
	if m := reOpenFilePath.FindStringSubmatch(raw); m != nil {
		return &Command{Type: OpenFile, Path: strings.TrimSpace(m[1])}
	}
	return nil
}

func matchOpenFolder(msg, raw string) *Command {
	if !containsAny(msg, "folder", "directory") {
		return nil
	}
	if path, ok := restAfter(raw, "folder", "directory"); ok {
		return &Command{Type: OpenFolder, Path: path}
	}
	return nil
}

func matchScreen(msg, _ string) *Command {
	switch {
	case containsAny(msg, "screenshot", "capture screen", "screen capture"):
		return &Command{Type: CaptureScreen}
	case containsAny(msg, "what's on my screen", "what is on my screen", "analyze screen", "explain screen", "describe screen", "see my screen"):
		return &Command{Type: AnalyzeScreen}
	case containsAny(msg, "active window", "current window", "what window"):
		return &Command{Type: ActiveWindow}
	}
	return nil
}

func matchSpotify(msg, raw string) *Command {
	if !strings.Contains(msg, "spotify") && !(strings.Contains(msg, "play") && containsAny(msg, "song", "music", "track", "bars")) {
		return nil
	}
	if m := reSpotifyQuery.FindStringSubmatch(raw); m != nil {
		query := reOnSpotify.ReplaceAllString(strings.TrimSpace(m[1]), "")
		return &Command{Type: PlaySpotify, Query: query}
	}
	return &Command{Type: PlaySpotify}
}

func matchSystem(msg, _ string) *Command {
	switch {
	case containsAny(msg, "system info", "system status", "computer info", "pc info", "system stats"):
		return &Command{Type: SystemInfo}
	case strings.Contains(msg, "battery"):
		return &Command{Type: BatteryStatus}
	case containsAny(msg, "running processes", "what's running", "active processes", "task manager"):
		return &Command{Type: RunningProcs}
	}
	return nil
}

func matchKeyboard(msg, raw string) *Command {
	if containsAny(msg, "type ", "write ") {
		if m := reTypeText.FindStringSubmatch(raw); m != nil {
			return &Command{Type: TypeText, Text: strings.TrimSpace(m[1])}
		}
	}
	if containsAny(msg, "press ", "hit ") {
		if m := rePressKey.FindStringSubmatch(raw); m != nil {
			return &Command{Type: PressKey, Key: strings.ToLower(m[1])}
		}
	}
	if strings.Contains(msg, "+") && containsAny(msg, "ctrl", "alt", "shift", "win") {
		if m := reHotkey.FindStringSubmatch(raw); m != nil {
			return &Command{Type: Hotkey, Keys: strings.Split(strings.ToLower(m[1]), "+")}
		}
	}
	return nil
}

func matchMouse(msg, raw string) *Command {
	if strings.Contains(msg, "click") {
		cmd := &Command{Type: ClickMouse, Button: "left", Clicks: 1}
		if m := reClickAt.FindStringSubmatch(raw); m != nil {
			x, _ := strconv.Atoi(m[1])
			y, _ := strconv.Atoi(m[2])
			cmd.X, cmd.Y = &x, &y
		}
		return cmd
	}
	if strings.Contains(msg, "scroll") {
		down := strings.Contains(msg, "down")
		clicks := defaultScrollClicks
		if down {
			clicks = -defaultScrollClicks
		}
		if m := reScrollAmount.FindStringSubmatch(raw); m != nil {
			amount, _ := strconv.Atoi(m[1])
			clicks = amount
			if down {
				clicks = -amount
			}
		}
		return &Command{Type: Scroll, Clicks: clicks, Direction: "vertical"}
	}
	return nil
}

var browserFiller = map[string]bool{
	"open": true, "browser": true, "in": true, "please": true,
	"search": true, "then": true, "and": true,
}

var knownSites = []struct {
	keys []string
	url  string
}{
	{[]string{"youtube"}, "https://www.youtube.com"},
	{[]string{"google"}, "https://www.google.com"},
	{[]string{"facebook"}, "https://www.facebook.com"},
	{[]string{"twitter", "x.com"}, "https://www.x.com"},
	{[]string{"instagram"}, "https://www.instagram.com"},
	{[]string{"github"}, "https://www.github.com"},
}

func matchBrowser(msg, raw string) *Command {
	if !containsAny(msg, ".com", ".in", ".org", "youtube", "google", "facebook", "twitter", "instagram") {
		return nil
	}

	var kept []string
	for _, word := range strings.Fields(raw) {
		if browserFiller[strings.ToLower(word)] {
			continue
		}
		kept = append(kept, word)
	}
	lower := strings.ToLower(strings.Join(kept, " "))

	for _, site := range knownSites {
		if containsAny(lower, site.keys...) {
			return &Command{Type: OpenBrowser, URL: site.url}
		}
	}
	for _, word := range kept {
		w := strings.ToLower(word)
		if strings.HasPrefix(w, "http://") || strings.HasPrefix(w, "https://") {
			return &Command{Type: OpenBrowser, URL: word}
		}
		if strings.Contains(word, ".") && !strings.HasPrefix(word, "/") && !strings.HasSuffix(word, ".") {
			return &Command{Type: OpenBrowser, URL: "https://" + word}
		}
	}
	return nil
}
