package intent

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want *Command
	}{
		{"launch app", "open notepad", &Command{Type: LaunchApp, Name: "notepad"}},
		{"typo fix", "Oprn chrome please", &Command{Type: LaunchApp, Name: "chrome"}},
		{"launch beats spotify", "start spotify and play", &Command{Type: LaunchApp, Name: "spotify"}},
		{"create file with content", "create file called notes.txt on desktop with hello world",
			&Command{Type: CreateFile, Path: "desktop/notes.txt", Content: "hello world"}},
		{"create file on d drive", "make a file report.py in d drive",
			&Command{Type: CreateFile, Path: `D:\report.py`}},
		{"create file top companies", "create file companies.txt in documents with top 10 IT comapnies",
			&Command{Type: CreateFile, Path: "documents/companies.txt", Content: topITCompanies}},
		{"read file", "read file C:/notes/todo.txt", &Command{Type: ReadFile, Path: "C:/notes/todo.txt"}},
		{"open file", "open file report.txt", &Command{Type: OpenFile, Path: "report.txt"}},
		{"open folder", "open folder Downloads", &Command{Type: OpenFolder, Path: "Downloads"}},
		{"screenshot", "take a screenshot", &Command{Type: CaptureScreen}},
		{"analyze screen", "what is on my screen", &Command{Type: AnalyzeScreen}},
		{"active window", "which is the active window", &Command{Type: ActiveWindow}},
		{"spotify query", "play Blinding Lights on spotify", &Command{Type: PlaySpotify, Query: "Blinding Lights"}},
		{"spotify no query", "spotify", &Command{Type: PlaySpotify}},
		{"system info", "show system info", &Command{Type: SystemInfo}},
		{"battery", "how much battery do I have", &Command{Type: BatteryStatus}},
		{"processes", "what's running right now", &Command{Type: RunningProcs}},
		{"type text", "type hello world", &Command{Type: TypeText, Text: "hello world"}},
		{"press key", "press Enter", &Command{Type: PressKey, Key: "enter"}},
		{"hotkey", "ctrl+shift+t please", &Command{Type: Hotkey, Keys: []string{"ctrl", "shift", "t"}}},
		{"click coords", "click at 100, 200", &Command{Type: ClickMouse, X: intPtr(100), Y: intPtr(200), Button: "left", Clicks: 1}},
		{"click here", "click", &Command{Type: ClickMouse, Button: "left", Clicks: 1}},
		{"scroll down amount", "scroll down 5", &Command{Type: Scroll, Clicks: -5, Direction: "vertical"}},
		{"scroll up", "scroll up", &Command{Type: Scroll, Clicks: 3, Direction: "vertical"}},
		{"scroll down default", "scroll down", &Command{Type: Scroll, Clicks: -3, Direction: "vertical"}},
		{"known site", "open youtube", &Command{Type: OpenBrowser, URL: "https://www.youtube.com"}},
		{"instagram", "open instagram", &Command{Type: OpenBrowser, URL: "https://www.instagram.com"}},
		{"domain", "visit example.org", &Command{Type: OpenBrowser, URL: "https://example.org"}},
		{"no command", "tell me a joke", nil},
		{"empty", "   ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Extract(tt.in, ""))
		})
	}
}

func TestFallback(t *testing.T) {
	require.Equal(t, "✅ Opening browser: https://www.google.com", Fallback(&Command{Type: OpenBrowser, URL: "https://www.google.com"}, true))
	require.Equal(t, "✅ Opening Spotify - lofi", Fallback(&Command{Type: PlaySpotify, Query: "lofi"}, false))
	require.Equal(t, "✅ Opening Spotify", Fallback(&Command{Type: PlaySpotify}, false))
	require.Equal(t, "✅ Launching notepad", Fallback(&Command{Type: LaunchApp, Name: "notepad"}, false))
	require.Equal(t, "✅ Attempting to open file", Fallback(&Command{Type: OpenFile}, false))
	require.Equal(t, "✅ Attempting to open folder", Fallback(&Command{Type: OpenFolder}, false))
	require.Equal(t, "✅ Executing command", Fallback(&Command{Type: Scroll}, false))
	require.Contains(t, Fallback(nil, true), "trouble connecting to the API")
	require.Contains(t, Fallback(nil, false), "trouble responding")
}
