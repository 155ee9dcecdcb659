package intent

// Fallback returns the reply spoken when the language model fails. With a
// recognised command the reply acknowledges it; otherwise it apologises.
// upstream selects the wording for failures reported by the provider API.
func Fallback(cmd *Command, upstream bool) string {
	if cmd == nil {
		if upstream {
			return "Sorry, I'm having trouble connecting to the API right now. However, I can still execute system commands for you."
		}
		return "Sorry, I'm having trouble responding right now. However, I can still execute system commands for you."
	}

	switch cmd.Type {
	case OpenBrowser:
		return "✅ Opening browser: " + cmd.URL
	case PlaySpotify:
		if cmd.Query != "" {
			return "✅ Opening Spotify - " + cmd.Query
		}
		return "✅ Opening Spotify"
	case LaunchApp:
		return "✅ Launching " + cmd.Name
	case OpenFile:
		return "✅ Attempting to open file"
	case OpenFolder:
		return "✅ Attempting to open folder"
	default:
		return "✅ Executing command"
	}
}
